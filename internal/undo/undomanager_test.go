/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"context"
	"errors"
	"testing"
	"time"
)

type counter struct{ changes, undos, redos int }

func (c *counter) DidRegisterChange() { c.changes++ }
func (c *counter) DidUndo()           { c.undos++ }
func (c *counter) DidRedo()           { c.redos++ }

// toggle models a document with one boolean so inverse ops can re-register each other.
type toggle struct {
	m  *Manager
	on bool
}

func (tg *toggle) set(v bool) {
	prev := tg.on
	tg.on = v
	tg.m.Register("toggle", func(context.Context) error {
		tg.set(prev)
		return nil
	})
}

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{})
	c := &counter{}
	m.SetDelegate(c)
	tg := &toggle{m: m}

	tg.set(true)
	if !m.CanUndo() || m.CanRedo() || c.changes != 1 {
		t.Fatalf("after set: undo=%d redo=%d changes=%d", m.UndoCount(), m.RedoCount(), c.changes)
	}
	if err := m.Undo(context.Background()); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if tg.on || m.UndoCount() != 0 || m.RedoCount() != 1 {
		t.Fatalf("undo did not move the inverse to redo: on=%v undo=%d redo=%d", tg.on, m.UndoCount(), m.RedoCount())
	}
	if err := m.Redo(context.Background()); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if !tg.on || m.UndoCount() != 1 || m.RedoCount() != 0 {
		t.Fatalf("redo did not restore: on=%v undo=%d redo=%d", tg.on, m.UndoCount(), m.RedoCount())
	}
	if c.changes != 1 || c.undos != 1 || c.redos != 1 {
		t.Fatalf("delegate calls = %+v", *c)
	}
}

func TestNewChangeClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	tg := &toggle{m: m}
	tg.set(true)
	if err := m.Undo(context.Background()); err != nil {
		t.Fatal(err)
	}
	tg.set(true)
	if m.CanRedo() {
		t.Fatalf("redo stack should be discarded by a new change")
	}
	if !errors.Is(m.Redo(context.Background()), ErrNothingToRedo) {
		t.Fatalf("expected ErrNothingToRedo")
	}
}

func TestFailedUndoKeepsEntry(t *testing.T) {
	m := NewManager(Config{})
	boom := errors.New("boom")
	m.Register("broken", func(context.Context) error { return boom })
	if err := m.Undo(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if m.UndoCount() != 1 || m.UndoLabel() != "broken" {
		t.Fatalf("failed entry should stay on the undo stack")
	}
}

func TestIsUndoingDuringOperation(t *testing.T) {
	m := NewManager(Config{})
	var seen bool
	m.Register("probe", func(context.Context) error {
		seen = m.IsUndoing() && !m.IsRedoing()
		return nil
	})
	if err := m.Undo(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatalf("IsUndoing should be true while the entry runs")
	}
	if m.IsUndoing() {
		t.Fatalf("IsUndoing should reset afterwards")
	}
}

func TestCoalesce(t *testing.T) {
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	c := &counter{}
	m.SetDelegate(c)
	t0 := time.Now()
	m.RegisterEntry(Entry{Label: "1", CoalesceKey: "title", TS: t0, Op: func(context.Context) error { return nil }})
	m.RegisterEntry(Entry{Label: "2", CoalesceKey: "title", TS: t0.Add(10 * time.Millisecond), Op: func(context.Context) error { return nil }})
	if m.UndoCount() != 1 || m.UndoLabel() != "1" {
		t.Fatalf("expected coalesced to the first entry, got count=%d label=%q", m.UndoCount(), m.UndoLabel())
	}
	if c.changes != 1 {
		t.Fatalf("coalesced registration must not count as a change, got %d", c.changes)
	}

	m.Barrier()
	m.RegisterEntry(Entry{Label: "3", CoalesceKey: "title", TS: t0.Add(20 * time.Millisecond), Op: func(context.Context) error { return nil }})
	if m.UndoCount() != 2 {
		t.Fatalf("barrier should prevent coalescing, got %d", m.UndoCount())
	}
}

func TestCoalesceNeverSwallowsChangeAfterUndo(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Minute})
	c := &counter{}
	m.SetDelegate(c)
	noop := func(context.Context) error { return nil }
	t0 := time.Now()
	m.RegisterEntry(Entry{Label: "value", CoalesceKey: "value", TS: t0, Op: noop})
	m.RegisterEntry(Entry{Label: "other", CoalesceKey: "other", TS: t0, Op: noop})
	if err := m.Undo(context.Background()); err != nil {
		t.Fatal(err)
	}
	// "value" is on top again and inside the window; the new change must still count
	m.RegisterEntry(Entry{Label: "value again", CoalesceKey: "value", TS: t0.Add(time.Second), Op: noop})
	if c.changes != 3 {
		t.Fatalf("registration after undo must notify the delegate, got %d changes", c.changes)
	}
	if m.UndoCount() != 2 || m.CanRedo() {
		t.Fatalf("expected a separate entry and an empty redo stack, got undo=%d redo=%d", m.UndoCount(), m.RedoCount())
	}

	// the barrier set by Undo is consumed by the first normal registration
	m.RegisterEntry(Entry{Label: "value burst", CoalesceKey: "value", TS: t0.Add(2 * time.Second), Op: noop})
	if m.UndoCount() != 2 || c.changes != 3 {
		t.Fatalf("later edits should coalesce again, got undo=%d changes=%d", m.UndoCount(), c.changes)
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxDepth: 2})
	for i := 0; i < 10; i++ {
		m.Register("x", func(context.Context) error { return nil })
	}
	if m.UndoCount() != 2 {
		t.Fatalf("expected MaxDepth cap to limit to 2, got %d", m.UndoCount())
	}
	m.Clear()
	if m.CanUndo() || m.CanRedo() {
		t.Fatalf("Clear should drop both stacks")
	}
}
