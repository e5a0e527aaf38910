/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo records reversible editing operations.
//
// Every entry carries the inverse of one mutation as a closure. Undoing an entry runs that
// closure; whatever the closure registers while it runs lands on the redo stack, and the
// same happens the other way round while redoing. This keeps add/remove pairs symmetric
// without the manager knowing anything about documents.
package undo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNothingToUndo and ErrNothingToRedo are returned when the matching stack is empty.
var (
	ErrNothingToUndo = errors.New("undo: nothing to undo")
	ErrNothingToRedo = errors.New("undo: nothing to redo")
)

// Operation performs one inverse mutation.
type Operation func(ctx context.Context) error

// Entry is one (label, inverse operation) pair.
type Entry struct {
	Label string
	Op    Operation
	// CoalesceKey merges consecutive registrations with the same key inside Config.MinInterval.
	// The oldest entry is kept since its inverse restores the earliest state.
	CoalesceKey string
	TS          time.Time
}

// Delegate is told about changes so it can track dirty state.
type Delegate interface {
	DidRegisterChange()
	DidUndo()
	DidRedo()
}

// Config controls depth caps and coalescing behavior.
type Config struct {
	// MaxDepth limits the number of undo entries kept (0 means unlimited).
	MaxDepth int
	// MinInterval coalesces entries with the same CoalesceKey registered within the interval.
	// Zero disables coalescing.
	MinInterval time.Duration
}

// Manager provides undo/redo stacks of inverse operations.
// Stack bookkeeping is safe for concurrent use; the operations themselves run without the lock held
// so they can register their own inverses.
type Manager struct {
	cfg Config
	mu  sync.Mutex

	undo []Entry
	redo []Entry

	undoing  bool
	redoing  bool
	barrier  bool
	delegate Delegate
	now      func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	return &Manager{cfg: cfg, now: time.Now}
}

// SetDelegate installs the change observer; nil removes it.
func (m *Manager) SetDelegate(d Delegate) {
	m.mu.Lock()
	m.delegate = d
	m.mu.Unlock()
}

// Delegate returns the installed change observer.
func (m *Manager) Delegate() Delegate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delegate
}

// Register records the inverse of a mutation that just succeeded.
// While undoing, the entry is pushed to the redo stack; while redoing, it goes back to the undo
// stack; otherwise it is a new change and clears the redo stack.
func (m *Manager) Register(label string, op Operation) {
	m.RegisterEntry(Entry{Label: label, Op: op})
}

// RegisterEntry is Register with full control over the entry.
func (m *Manager) RegisterEntry(e Entry) {
	if e.Op == nil {
		return
	}
	if e.TS.IsZero() {
		e.TS = m.now()
	}
	m.mu.Lock()
	switch {
	case m.undoing:
		m.redo = append(m.redo, e)
		m.mu.Unlock()
		return
	case m.redoing:
		m.undo = append(m.undo, e)
		m.enforceCapsLocked()
		m.mu.Unlock()
		return
	}
	// Any new change invalidates redo. Discarding it is always a change of its own.
	discarded := len(m.redo) > 0
	m.redo = nil
	if !discarded && m.coalesceLocked(e) {
		m.mu.Unlock()
		return
	}
	m.barrier = false
	m.undo = append(m.undo, e)
	m.enforceCapsLocked()
	d := m.delegate
	m.mu.Unlock()
	if d != nil {
		d.DidRegisterChange()
	}
}

func (m *Manager) coalesceLocked(e Entry) bool {
	if m.cfg.MinInterval <= 0 || e.CoalesceKey == "" || m.barrier {
		return false
	}
	n := len(m.undo)
	if n == 0 {
		return false
	}
	last := m.undo[n-1]
	if last.CoalesceKey != e.CoalesceKey || e.TS.Sub(last.TS) >= m.cfg.MinInterval {
		return false
	}
	// keep the older inverse, refresh the timestamp so a burst keeps merging
	last.TS = e.TS
	m.undo[n-1] = last
	return true
}

// Barrier stops the next registration from coalescing with the current top entry.
// Documents call it after a save so a post-save edit is always its own undo step. Undo and Redo
// set it as well.
func (m *Manager) Barrier() {
	m.mu.Lock()
	m.barrier = true
	m.mu.Unlock()
}

// Undo pops the top undo entry and runs it. On failure the entry is put back.
func (m *Manager) Undo(ctx context.Context) error {
	m.mu.Lock()
	if m.undoing || m.redoing {
		m.mu.Unlock()
		return errors.New("undo: already undoing or redoing")
	}
	n := len(m.undo)
	if n == 0 {
		m.mu.Unlock()
		return ErrNothingToUndo
	}
	e := m.undo[n-1]
	m.undo = m.undo[:n-1]
	m.undoing = true
	m.mu.Unlock()

	err := e.Op(ctx)

	m.mu.Lock()
	m.undoing = false
	if err != nil {
		m.undo = append(m.undo, e)
		m.mu.Unlock()
		return fmt.Errorf("undo %q: %w", e.Label, err)
	}
	m.barrier = true
	d := m.delegate
	m.mu.Unlock()
	if d != nil {
		d.DidUndo()
	}
	return nil
}

// Redo pops the top redo entry and runs it. On failure the entry is put back.
func (m *Manager) Redo(ctx context.Context) error {
	m.mu.Lock()
	if m.undoing || m.redoing {
		m.mu.Unlock()
		return errors.New("undo: already undoing or redoing")
	}
	n := len(m.redo)
	if n == 0 {
		m.mu.Unlock()
		return ErrNothingToRedo
	}
	e := m.redo[n-1]
	m.redo = m.redo[:n-1]
	m.redoing = true
	m.mu.Unlock()

	err := e.Op(ctx)

	m.mu.Lock()
	m.redoing = false
	if err != nil {
		m.redo = append(m.redo, e)
		m.mu.Unlock()
		return fmt.Errorf("redo %q: %w", e.Label, err)
	}
	m.barrier = true
	d := m.delegate
	m.mu.Unlock()
	if d != nil {
		d.DidRedo()
	}
	return nil
}

func (m *Manager) UndoCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo)
}

func (m *Manager) RedoCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo)
}

func (m *Manager) CanUndo() bool { return m.UndoCount() > 0 }
func (m *Manager) CanRedo() bool { return m.RedoCount() > 0 }

// IsUndoing reports whether an undo operation is running right now.
func (m *Manager) IsUndoing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.undoing
}

// IsRedoing reports whether a redo operation is running right now.
func (m *Manager) IsRedoing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.redoing
}

// UndoLabel returns the label of the entry Undo would run, or "".
func (m *Manager) UndoLabel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return ""
	}
	return m.undo[len(m.undo)-1].Label
}

// RedoLabel returns the label of the entry Redo would run, or "".
func (m *Manager) RedoLabel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return ""
	}
	return m.redo[len(m.redo)-1].Label
}

// Clear drops both stacks.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.undo = nil
	m.redo = nil
	m.mu.Unlock()
}

func (m *Manager) enforceCapsLocked() {
	if m.cfg.MaxDepth > 0 && len(m.undo) > m.cfg.MaxDepth {
		// drop the oldest extras
		toDrop := len(m.undo) - m.cfg.MaxDepth
		m.undo = append([]Entry{}, m.undo[toDrop:]...)
	}
}
