/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	applog "reeleditor/internal/log"
)

// Change is a modification of a watched reel file.
type Change struct {
	Path string
	Op   fsnotify.Op
}

// Removed reports whether the file went away.
func (c Change) Removed() bool {
	return c.Op.Has(fsnotify.Remove) || c.Op.Has(fsnotify.Rename)
}

// Watcher reports changes of one reel's html file. Lock, temp and backup files are ignored.
type Watcher struct {
	file    string
	watcher *fsnotify.Watcher
	log     *slog.Logger
}

// NewWatcher starts watching the reel directory at location.
func NewWatcher(location string) (*Watcher, error) {
	file, err := ReelFile(location)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(file)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", location, err)
	}
	return &Watcher{
		file:    file,
		watcher: fw,
		log:     applog.WithComponent("storage").With(slog.String("watch", file)),
	}, nil
}

// File is the watched html file.
func (w *Watcher) File() string { return w.file }

// Run calls fn for every change until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, fn func(Change)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			fn(Change{Path: w.file, Op: event.Op})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", slog.Any("err", err))
		}
	}
}

func (w *Watcher) Close() error { return w.watcher.Close() }
