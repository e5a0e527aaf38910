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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"reeleditor/internal/config"
)

const page = `<html><head></head><body><div data-montage-id="main"></div></body></html>`

func TestReelFile(t *testing.T) {
	got, err := ReelFile("file:///pkg/ui/main.reel/")
	if err != nil {
		t.Fatalf("ReelFile error: %v", err)
	}
	if want := filepath.FromSlash("/pkg/ui/main.reel/main.html"); got != want {
		t.Fatalf("ReelFile got %q want %q", got, want)
	}
	for _, bad := range []string{"/pkg/ui/main", "/pkg/.reel"} {
		if _, err := ReelFile(bad); !errors.Is(err, ErrNotReel) {
			t.Fatalf("ReelFile(%q) expected ErrNotReel, got %v", bad, err)
		}
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	loc := filepath.Join(root, "ui", "main.reel")
	path, _ := ReelFile(loc)
	w := NewFileWriter(config.StorageConfig{Backups: true}, nil)
	ctx := context.Background()

	if err := w.Write(ctx, []byte(page), path); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	got, err := FileSource{}.ReadReel(ctx, loc)
	if err != nil {
		t.Fatalf("ReadReel error: %v", err)
	}
	if got != page {
		t.Fatalf("ReadReel got %q", got)
	}
	// no backup for the first write
	if list, _ := Backups(path); len(list) != 0 {
		t.Fatalf("expected no backups, got %v", list)
	}
	// no temp files left behind
	ents, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left: %s", e.Name())
		}
	}
}

func TestWriteCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	path, _ := ReelFile(filepath.Join(root, "main.reel"))
	w := NewFileWriter(config.StorageConfig{Backups: true}, nil)
	ctx := context.Background()
	if err := w.Write(ctx, []byte("one"), path); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := w.Write(ctx, []byte("two"), path); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	list, err := Backups(path)
	if err != nil {
		t.Fatalf("Backups error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one backup, got %d", len(list))
	}
	b, _ := os.ReadFile(list[0])
	if string(b) != "one" {
		t.Fatalf("backup content %q", string(b))
	}
}

func TestReadFallsBackToLatestBackup(t *testing.T) {
	root := t.TempDir()
	loc := filepath.Join(root, "main.reel")
	path, _ := ReelFile(loc)
	w := NewFileWriter(config.StorageConfig{Backups: true}, nil)
	ctx := context.Background()
	for _, s := range []string{"first", "second", "third"} {
		if err := w.Write(ctx, []byte(s), path); err != nil {
			t.Fatalf("Write error: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	// corrupt the current file
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	got, err := FileSource{}.ReadReel(ctx, loc)
	if err != nil {
		t.Fatalf("ReadReel error: %v", err)
	}
	if got != "second" {
		t.Fatalf("expected latest backup, got %q", got)
	}

	if _, err := (FileSource{}).ReadReel(ctx, filepath.Join(root, "none.reel")); err == nil {
		t.Fatalf("expected error for a missing reel without backups")
	}
}

func TestWriteWaitsForLock(t *testing.T) {
	root := t.TempDir()
	path, _ := ReelFile(filepath.Join(root, "main.reel"))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	held := flock.New(filepath.Join(filepath.Dir(path), ".main.html.lock"))
	if err := held.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer func() { _ = held.Unlock() }()

	w := &FileWriter{LockTimeout: 100 * time.Millisecond}
	err := w.Write(context.Background(), []byte("x"), path)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("file must not be written while locked")
	}
}

func TestPackageRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"name":"app"}`), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
	loc := filepath.Join(root, "ui", "deep", "main.reel")
	if got := PackageRoot(loc); got != root {
		t.Fatalf("PackageRoot got %q want %q", got, root)
	}
	bare := filepath.Join(t.TempDir(), "main.reel")
	if got := PackageRoot(bare); got != filepath.Dir(bare) {
		t.Fatalf("PackageRoot without package.json got %q", got)
	}
}
