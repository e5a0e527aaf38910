/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reeleditor/internal/crash"
	"reeleditor/internal/editing"
	"reeleditor/internal/serialization"
	"reeleditor/internal/storage"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("REEL_CONFIG", filepath.Join(t.TempDir(), "config.yaml"))
	t.Setenv("REEL_LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "main.reel")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	g := &globals{crash: &crash.Target{}}
	cmd := newRootCmd(g)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, strings.Join(args, " "))
	return out
}

func load(t *testing.T, reel string) *editing.ReelDocument {
	t.Helper()
	d, err := editing.LoadReel(context.Background(), reel, storage.FileSource{}, editing.DefaultOptions())
	require.NoError(t, err)
	return d
}

func TestVersion(t *testing.T) {
	setupEnv(t)
	assert.Contains(t, mustRun(t, "version"), "Reel Editor")
}

func TestEditingCommands(t *testing.T) {
	reel := setupEnv(t)
	out := mustRun(t, "new", reel)
	assert.Contains(t, out, "created")
	_, err := run(t, "new", reel)
	assert.Error(t, err)

	assert.Contains(t, mustRun(t, "show", reel), "owner")

	out = mustRun(t, "add-component", reel, "ui/button.reel", "--markup", "<button>Go</button>")
	assert.Contains(t, out, "added button1 #button1")
	mustRun(t, "set", reel, "button1", "value", `"Go"`)
	mustRun(t, "add-object", reel, "app/model", "--label", "model", "-p", "{name: Ada, size: 3}")
	mustRun(t, "bind", reel, "button1", "label", "model", "name", "--one-way")

	d := load(t, reel)
	button := d.EditingProxy("button1")
	require.NotNil(t, button)
	v, _ := button.GetObjectProperty("value")
	assert.Equal(t, "Go", v)
	b, ok := button.Binding("label")
	require.True(t, ok)
	assert.Equal(t, "@model.name", b.Source)
	assert.True(t, b.OneWay)
	name, _ := d.EditingProxy("model").GetObjectProperty("name")
	assert.Equal(t, "Ada", name)
	require.NotNil(t, d.Template().ElementByID("button1"))

	show := mustRun(t, "show", reel)
	assert.Contains(t, show, "label <- @model.name")
	assert.Contains(t, show, "#button1")

	mustRun(t, "unbind", reel, "button1", "label")
	mustRun(t, "remove", reel, "button1")
	d = load(t, reel)
	assert.Nil(t, d.EditingProxy("button1"))
	assert.Nil(t, d.Template().ElementByID("button1"))

	_, err = run(t, "set", reel, "ghost", "x", "1")
	assert.Error(t, err)

	backups, err := storage.Backups(filepath.Join(reel, "main.html"))
	require.NoError(t, err)
	assert.NotEmpty(t, backups)
}

func TestDryRunDoesNotWrite(t *testing.T) {
	reel := setupEnv(t)
	mustRun(t, "new", reel)
	before, err := os.ReadFile(filepath.Join(reel, "main.html"))
	require.NoError(t, err)

	out := mustRun(t, "add-object", reel, "app/model", "--dry-run")
	assert.Contains(t, out, `"model1"`)
	after, err := os.ReadFile(filepath.Join(reel, "main.html"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApplyWithUndo(t *testing.T) {
	reel := setupEnv(t)
	mustRun(t, "new", reel)
	steps := filepath.Join(t.TempDir(), "steps.yaml")
	require.NoError(t, os.WriteFile(steps, []byte(`steps:
  - op: add-object
    module: app/model
    label: model
    properties: {name: Ada}
  - op: set
    label: model
    property: name
    value: Grace
  - op: undo
  - op: add-component
    module: ui/text.reel
    markup: "<span></span>"
  - op: bind
    label: text1
    path: value
    bound: model
    bound_path: name
    one_way: true
  - op: set
    label: text1
    property: target
    value: {"@": model}
`), 0o644))

	out := mustRun(t, "apply", reel, steps)
	assert.Contains(t, out, "3: undid Set Property")

	d := load(t, reel)
	name, _ := d.EditingProxy("model").GetObjectProperty("name")
	assert.Equal(t, "Ada", name)
	text := d.EditingProxy("text1")
	require.NotNil(t, text)
	_, ok := text.Binding("value")
	assert.True(t, ok)
	target, _ := text.GetObjectProperty("target")
	assert.Equal(t, serialization.ObjectRef{Label: "model"}, target)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steps:\n  - op: redo\n"), 0o644))
	_, err := run(t, "apply", reel, bad)
	assert.ErrorContains(t, err, "nothing to redo")
}

func TestLiveMode(t *testing.T) {
	reel := setupEnv(t)
	mustRun(t, "new", reel)
	out := mustRun(t, "--live", "add-component", reel, "ui/button.reel", "--markup", "<button></button>")
	assert.Contains(t, out, "added button1")
	d := load(t, reel)
	assert.NotNil(t, d.EditingProxy("button1"))
}

func TestHistory(t *testing.T) {
	reel := setupEnv(t)
	t.Setenv("REEL_HISTORY", "true")
	mustRun(t, "new", reel)
	mustRun(t, "add-object", reel, "app/model")
	mustRun(t, "add-object", reel, "app/model")

	out := mustRun(t, "history", reel)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 2)

	id := strings.Fields(lines[1])[0]
	out = mustRun(t, "history", reel, "--restore", id)
	assert.Contains(t, out, "restored revision "+id)
	d := load(t, reel)
	assert.NotNil(t, d.EditingProxy("model1"))
	assert.Nil(t, d.EditingProxy("model2"))
}

func TestConfigShowsOverrides(t *testing.T) {
	setupEnv(t)
	t.Setenv("REEL_UNDO_MAX_DEPTH", "7")
	out := mustRun(t, "config")
	assert.Contains(t, out, "undo_max_depth: 7")
	assert.Contains(t, out, "editor.undo_max_depth overridden by REEL_UNDO_MAX_DEPTH")
}
