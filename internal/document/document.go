/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package document provides the generic document lifecycle shared by every editor document:
// url identity, dirty tracking driven by the undo manager, saving through a writer, and the
// controller that keeps track of open documents.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"
	"strings"
	"sync"

	applog "reeleditor/internal/log"
	"reeleditor/internal/undo"
)

// ErrWriteFailure wraps errors returned by a DataWriter.
var ErrWriteFailure = errors.New("write failure")

// UnsavedChangesReason is what CanClose reports for a dirty document.
const UnsavedChangesReason = "You have unsaved changes"

// DataWriter persists document content at a path.
type DataWriter interface {
	Write(ctx context.Context, content []byte, path string) error
}

// DataWriterFunc adapts a function to DataWriter.
type DataWriterFunc func(ctx context.Context, content []byte, path string) error

func (f DataWriterFunc) Write(ctx context.Context, content []byte, path string) error {
	return f(ctx, content, path)
}

// Document tracks the url, undo history and change count of one open document.
type Document struct {
	url  string
	undo *undo.Manager
	log  *slog.Logger

	mu          sync.Mutex
	changeCount float64
}

// New creates a document and registers it as the delegate of um.
func New(url string, um *undo.Manager) *Document {
	if um == nil {
		um = undo.NewManager(undo.Config{})
	}
	d := &Document{url: url, undo: um, log: applog.WithComponent("document").With(slog.String("url", url))}
	um.SetDelegate(d)
	return d
}

func (d *Document) URL() string { return d.url }

// Title is the last segment of the url.
func (d *Document) Title() string {
	u := strings.TrimRight(d.url, "/")
	if u == "" {
		return ""
	}
	return path.Base(u)
}

func (d *Document) UndoManager() *undo.Manager { return d.undo }

// ChangeCount is the number of changes since the last save. It is negative after undoing past
// the save and +Inf once the saved state can no longer be reached.
func (d *Document) ChangeCount() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.changeCount
}

func (d *Document) IsDirty() bool { return d.ChangeCount() != 0 }

// CanClose returns "" when the document can close, and the reason otherwise.
func (d *Document) CanClose() string {
	if d.IsDirty() {
		return UnsavedChangesReason
	}
	return ""
}

func (d *Document) DidRegisterChange() {
	d.mu.Lock()
	defer d.mu.Unlock()
	// behind the save with nothing to redo: the clean state is gone for good
	if d.changeCount < 0 && !d.undo.CanRedo() {
		d.changeCount = math.Inf(1)
		d.log.Debug("change count pinned")
		return
	}
	d.changeCount++
}

func (d *Document) DidUndo() {
	d.mu.Lock()
	d.changeCount--
	d.mu.Unlock()
}

func (d *Document) DidRedo() {
	d.mu.Lock()
	d.changeCount++
	d.mu.Unlock()
}

func (d *Document) CanUndo() bool     { return d.undo.CanUndo() }
func (d *Document) CanRedo() bool     { return d.undo.CanRedo() }
func (d *Document) UndoLabel() string { return d.undo.UndoLabel() }
func (d *Document) RedoLabel() string { return d.undo.RedoLabel() }

func (d *Document) Undo(ctx context.Context) error { return d.undo.Undo(ctx) }
func (d *Document) Redo(ctx context.Context) error { return d.undo.Redo(ctx) }

// Save hands content to w and resets the change count once the write succeeded.
func (d *Document) Save(ctx context.Context, content []byte, location string, w DataWriter) error {
	if err := w.Write(ctx, content, location); err != nil {
		d.log.Warn("save failed", slog.String("path", location), slog.Any("err", err))
		return fmt.Errorf("save %s: %w: %w", location, ErrWriteFailure, err)
	}
	d.mu.Lock()
	d.changeCount = 0
	d.mu.Unlock()
	d.undo.Barrier()
	d.log.Info("saved", slog.String("path", location), slog.Int("bytes", len(content)))
	return nil
}

// Close releases resources. The generic document holds none.
func (d *Document) Close() error { return nil }
