/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package document

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reeleditor/internal/undo"
)

func change(d *Document) {
	d.UndoManager().Register("change", func(ctx context.Context) error {
		change(d)
		return nil
	})
}

func TestChangeCountFollowsUndo(t *testing.T) {
	d := New("/p/ui/main.reel", nil)
	ctx := context.Background()
	assert.Equal(t, "main.reel", d.Title())
	assert.False(t, d.IsDirty())
	assert.Equal(t, "", d.CanClose())

	change(d)
	assert.Equal(t, 1.0, d.ChangeCount())
	assert.Equal(t, UnsavedChangesReason, d.CanClose())

	require.NoError(t, d.Undo(ctx))
	assert.Equal(t, 0.0, d.ChangeCount())
	assert.False(t, d.IsDirty())

	require.NoError(t, d.Redo(ctx))
	assert.Equal(t, 1.0, d.ChangeCount())
}

func TestChangeCountPinnedAfterUndoPastSave(t *testing.T) {
	d := New("/p/ui/main.reel", undo.NewManager(undo.Config{}))
	ctx := context.Background()
	change(d)
	var written []byte
	w := DataWriterFunc(func(_ context.Context, content []byte, _ string) error {
		written = content
		return nil
	})
	require.NoError(t, d.Save(ctx, []byte("x"), "/p/ui/main.reel", w))
	assert.Equal(t, []byte("x"), written)
	assert.Equal(t, 0.0, d.ChangeCount())

	require.NoError(t, d.Undo(ctx))
	assert.Equal(t, -1.0, d.ChangeCount())
	assert.True(t, d.IsDirty())

	change(d)
	assert.True(t, math.IsInf(d.ChangeCount(), 1))

	require.NoError(t, d.Undo(ctx))
	assert.True(t, math.IsInf(d.ChangeCount(), 1))
	assert.True(t, d.IsDirty())
}

func TestSaveFailureKeepsCount(t *testing.T) {
	d := New("/p/ui/main.reel", nil)
	change(d)
	boom := errors.New("disk full")
	err := d.Save(context.Background(), nil, "/p", DataWriterFunc(func(context.Context, []byte, string) error { return boom }))
	assert.ErrorIs(t, err, ErrWriteFailure)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, d.ChangeCount())
}
