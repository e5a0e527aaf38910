/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigFile, path)
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Editor.SelectObjectsOnAddition || cfg.Editor.UndoMaxDepth != 500 {
		t.Fatalf("unexpected editor defaults: %#v", cfg.Editor)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Editor.SelectObjectsOnAddition = false
	cfg.Storage.History = true
	cfg.Storage.KeepRevisions = 7
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Editor.SelectObjectsOnAddition || !got.Storage.History || got.Storage.KeepRevisions != 7 {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}

func TestLoadReportsMalformedFile(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("editor: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Editor.UndoMaxDepth != Defaults().Editor.UndoMaxDepth {
		t.Fatalf("defaults should survive a malformed file: %#v", cfg.Editor)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/reel.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/reel.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvSelectOnAdd, "off")
	t.Setenv(EnvUndoMaxDepth, "12")
	t.Setenv(EnvUndoCoalesceMs, "300")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogSource, "1")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Editor.SelectObjectsOnAddition {
		t.Fatalf("select on add should be overridden to false")
	}
	if cfg.Editor.UndoMaxDepth != 12 || cfg.Editor.CoalesceWindow() != 300*time.Millisecond {
		t.Fatalf("undo overrides not applied: %#v", cfg.Editor)
	}
	if cfg.Logging.Level != "error" || !cfg.Logging.Source {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
	if env, ok := EnvOverrideFor("editor.undo_max_depth"); !ok || env != EnvUndoMaxDepth {
		t.Fatalf("EnvOverrideFor = %q,%v", env, ok)
	}
	if _, ok := EnvOverrideFor("storage.history"); ok {
		t.Fatalf("storage.history is not overridden")
	}
}
