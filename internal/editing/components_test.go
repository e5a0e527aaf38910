/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reeleditor/internal/dom"
	"reeleditor/internal/serialization"
	"reeleditor/internal/template"
)

func TestAddComponentBuildsElementUnderOwner(t *testing.T) {
	d := newDoc(t)
	ctx := context.Background()
	p, err := d.AddComponent(ctx, "", object("ui/button.reel", "label", "Go"), `<button class="b">Go</button>`, "", "")
	require.NoError(t, err)
	assert.Equal(t, "button1", p.Label())
	assert.True(t, p.IsComponent())

	el := d.Template().ElementByID("button1")
	require.NotNil(t, el)
	assert.Same(t, el, p.Element())
	owner, err := d.OwnerElement()
	require.NoError(t, err)
	assert.Same(t, owner, el.Parent)
	assert.Equal(t, "b", dom.Attr(el, "class"))

	props, _ := serializedUnit(t, d, "button1").Get("properties")
	m := props.(*serialization.Map)
	element, _ := m.Get("element")
	assert.Equal(t, serialization.ElementRef{ID: "button1"}, element)
	identifier, _ := m.Get("identifier")
	assert.Equal(t, "button1", identifier)

	require.NoError(t, d.Undo(ctx))
	assert.Nil(t, d.Template().ElementByID("button1"))
	assert.Nil(t, d.EditingProxy("button1"))

	require.NoError(t, d.Redo(ctx))
	el = d.Template().ElementByID("button1")
	require.NotNil(t, el)
	assert.Same(t, owner, el.Parent)
	assert.Same(t, p, d.EditingProxy("button1"))
}

func TestAddComponentUsesExistingElement(t *testing.T) {
	d := newDoc(t)
	ctx := context.Background()
	p, err := d.AddComponent(ctx, "heading", object("ui/text.reel"), "", "title", "head")
	require.NoError(t, err)
	assert.Same(t, d.Template().ElementByID("title"), p.Element())
	v, _ := p.GetObjectProperty("identifier")
	assert.Equal(t, "head", v)
}

func TestRemoveComponentUndoRestoresElementInPlace(t *testing.T) {
	d := newDoc(t)
	ctx := context.Background()
	before, err := d.Template().HTML()
	require.NoError(t, err)
	serialized := d.Serialization()

	title := d.EditingProxy("title")
	require.NoError(t, d.RemoveComponent(ctx, title))
	assert.Nil(t, d.Template().ElementByID("title"))
	html, err := d.Template().HTML()
	require.NoError(t, err)
	assert.NotContains(t, html, "<h1")
	assert.Contains(t, title.Markup, `data-montage-id="title"`)

	require.NoError(t, d.Undo(ctx))
	after, err := d.Template().HTML()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, serialized, d.Serialization())
	assert.Same(t, title, d.EditingProxy("title"))

	require.NoError(t, d.Redo(ctx))
	assert.Nil(t, d.Template().ElementByID("title"))
}

func TestRemoveObjectDelegatesForComponents(t *testing.T) {
	d := newDoc(t)
	var seen []EventType
	d.Subscribe(DidRemoveComponent, func(e Event) { seen = append(seen, e.Type) })
	require.NoError(t, d.RemoveObject(context.Background(), d.EditingProxy("title")))
	assert.Equal(t, []EventType{DidRemoveComponent}, seen)
	assert.Equal(t, undoRemoveComponent, d.UndoLabel())
}

func TestForeignProxyIsRejected(t *testing.T) {
	d, other := newDoc(t), newDoc(t)
	ctx := context.Background()
	err := d.RemoveObject(ctx, other.EditingProxy("title"))
	assert.ErrorIs(t, err, ErrNotInDocument)
	assert.ErrorIs(t, d.SetOwnedObjectProperty(ctx, other.EditingProxy("title"), "x", 1), ErrNotInDocument)
	assert.False(t, d.CanUndo())
}

func TestOwnerElementErrors(t *testing.T) {
	noOwner, err := template.Parse(`<html><head><script type="text/montage-serialization">
{"thing": {"prototype": "ui/text.reel"}}
</script></head><body></body></html>`)
	require.NoError(t, err)
	d, err := NewReelDocument("/p/a.reel", noOwner, DefaultOptions())
	require.NoError(t, err)
	_, err = d.OwnerElement()
	assert.ErrorIs(t, err, ErrResolution)
	assert.Contains(t, err.Error(), "no element specified")

	_, err = d.AddComponent(context.Background(), "", object("ui/button.reel"), "<button></button>", "", "")
	assert.ErrorIs(t, err, ErrResolution)
	assert.Len(t, d.EditingProxyMap(), 1)
	assert.False(t, d.CanUndo())

	missing, err := template.Parse(`<html><head><script type="text/montage-serialization">
{"owner": {"prototype": "ui/main.reel", "properties": {"element": {"#": "gone"}}}}
</script></head><body></body></html>`)
	require.NoError(t, err)
	d, err = NewReelDocument("/p/a.reel", missing, DefaultOptions())
	require.NoError(t, err)
	_, err = d.OwnerElement()
	assert.ErrorIs(t, err, ErrResolution)
	assert.Contains(t, err.Error(), "could not be found")
}

func TestBindings(t *testing.T) {
	d := newDoc(t)
	ctx := context.Background()
	title, conv := d.EditingProxy("title"), d.EditingProxy("converter")
	model, err := d.AddObject(ctx, "model", object("app/model"))
	require.NoError(t, err)

	var infos []*BindingInfo
	d.Subscribe(DidDefineBinding, func(e Event) { infos = append(infos, e.Binding) })
	require.NoError(t, d.DefineObjectBinding(ctx, title, "value", model, "name", true, conv))

	unit := serializedUnit(t, d, "title")
	assert.Equal(t, []string{"prototype", "properties", "bindings", "custom"}, unit.Keys())
	raw, _ := unit.Get("bindings")
	bound, _ := raw.(*serialization.Map).Get("value")
	bm := bound.(*serialization.Map)
	src, _ := bm.Get("<-")
	assert.Equal(t, "@model.name", src)
	c, _ := bm.Get("converter")
	assert.Equal(t, serialization.ObjectRef{Label: "converter"}, c)

	require.Len(t, infos, 1)
	assert.Same(t, model, infos[0].Bound)
	assert.Equal(t, "name", infos[0].BoundPath)
	assert.Same(t, conv, infos[0].Converter)
	assert.True(t, infos[0].OneWay)

	require.NoError(t, d.CancelObjectBinding(ctx, title, "value"))
	_, ok := title.Binding("value")
	assert.False(t, ok)
	assert.False(t, serializedUnit(t, d, "title").Has("bindings"))

	require.NoError(t, d.Undo(ctx))
	b, ok := title.Binding("value")
	require.True(t, ok)
	assert.Equal(t, "@model.name", b.Source)
	assert.Equal(t, "converter", b.Converter)

	require.NoError(t, d.Undo(ctx))
	_, ok = title.Binding("value")
	assert.False(t, ok)
}

func TestRedefineBindingUndoRestoresPrevious(t *testing.T) {
	d := newDoc(t)
	ctx := context.Background()
	title, owner := d.EditingProxy("title"), d.EditingProxy("owner")
	require.NoError(t, d.DefineObjectBinding(ctx, title, "value", owner, "a", false, nil))
	require.NoError(t, d.DefineObjectBinding(ctx, title, "value", owner, "b", true, nil))
	require.NoError(t, d.Undo(ctx))
	b, ok := title.Binding("value")
	require.True(t, ok)
	assert.Equal(t, "@owner.a", b.Source)
	assert.False(t, b.OneWay)
	assert.Equal(t, "<->", b.Arrow())
}

func TestBindingErrors(t *testing.T) {
	tpl, err := template.Parse(strings.Replace(fixture, `"custom": {"z": [1, 2]}`,
		`"custom": {"z": [1, 2]}, "bindings": {"value": {"<-": "@ghost.name"}, "other": {"<-": "@owner.x", "converter": {"@": "nobody"}}}`, 1))
	require.NoError(t, err)
	d, err := NewReelDocument("/pkg/ui/main.reel", tpl, DefaultOptions())
	require.NoError(t, err)
	ctx := context.Background()
	title, owner := d.EditingProxy("title"), d.EditingProxy("owner")

	assert.ErrorIs(t, d.CancelObjectBinding(ctx, title, "value"), ErrResolution)
	assert.ErrorIs(t, d.CancelObjectBinding(ctx, title, "other"), ErrResolution)
	assert.ErrorIs(t, d.CancelObjectBinding(ctx, title, "missing"), ErrInvalidBinding)
	assert.ErrorIs(t, d.DefineObjectBinding(ctx, title, "", owner, "x", true, nil), ErrInvalidBinding)

	other := newDoc(t)
	assert.ErrorIs(t, d.DefineObjectBinding(ctx, title, "value", other.EditingProxy("owner"), "x", true, nil), ErrResolution)
	assert.False(t, d.CanUndo())
	_, ok := title.Binding("value")
	assert.True(t, ok)
}

func TestSave(t *testing.T) {
	d := newDoc(t)
	ctx := context.Background()
	_, err := d.AddObject(ctx, "", object("foo/bar"))
	require.NoError(t, err)

	var gotPath string
	var gotContent []byte
	w := DataWriterFunc(func(_ context.Context, content []byte, path string) error {
		gotPath, gotContent = path, content
		return nil
	})

	for _, bad := range []string{"/pkg/ui/main", "main.reel", "/pkg/ui/.reel"} {
		assert.ErrorIs(t, d.Save(ctx, bad, w), ErrInvalidLocation, bad)
	}
	assert.True(t, d.IsDirty())

	require.NoError(t, d.Save(ctx, "/pkg/ui/main.reel/", w))
	assert.Equal(t, "/pkg/ui/main.reel/main.html", gotPath)
	assert.Contains(t, string(gotContent), `"bar1"`)
	assert.Contains(t, string(gotContent), "text/montage-serialization")
	assert.False(t, d.IsDirty())

	reopened, err := template.Parse(string(gotContent))
	require.NoError(t, err)
	d2, err := NewReelDocument("/pkg/ui/main.reel", reopened, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, d.Serialization(), d2.Serialization())

	_, err = d.AddObject(ctx, "", object("foo/bar"))
	require.NoError(t, err)
	boom := errors.New("disk full")
	err = d.Save(ctx, "/pkg/ui/main.reel", DataWriterFunc(func(context.Context, []byte, string) error { return boom }))
	assert.ErrorIs(t, err, ErrWriteFailure)
	assert.ErrorIs(t, err, boom)
	assert.True(t, d.IsDirty())
}

type mapSource map[string]string

func (m mapSource) ReadReel(_ context.Context, url string) (string, error) {
	s, ok := m[url]
	if !ok {
		return "", errors.New("not found")
	}
	return s, nil
}

func TestLoadReel(t *testing.T) {
	src := mapSource{"/pkg/ui/main.reel": fixture}
	d, err := LoadReel(context.Background(), "/pkg/ui/main.reel", src, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "/pkg/ui/main.reel", d.URL())
	assert.Len(t, d.EditingProxies(), 3)

	_, err = LoadReel(context.Background(), "/pkg/ui/other.reel", src, DefaultOptions())
	assert.Error(t, err)
}

func TestUpdateSelectionCandidateOffline(t *testing.T) {
	d := newDoc(t)
	ctx := context.Background()
	title := d.EditingProxy("title")
	text := title.Element().FirstChild
	require.NotNil(t, text)

	assert.Same(t, title, d.UpdateSelectionCandidate(text))
	assert.Same(t, title, d.UpdateSelectionCandidate(title.Element()))

	owner, err := d.OwnerElement()
	require.NoError(t, err)
	assert.Nil(t, d.UpdateSelectionCandidate(owner.Parent))

	inner, err := d.AddComponent(ctx, "", object("ui/icon.reel"), "<i></i>", "", "")
	require.NoError(t, err)
	dom.Detach(inner.Element())
	title.Element().AppendChild(inner.Element())
	d.ClearSelectedObjects()
	assert.Same(t, title, d.UpdateSelectionCandidate(inner.Element()))

	d.SelectObject(title)
	assert.Same(t, inner, d.UpdateSelectionCandidate(inner.Element()))

	other := newDoc(t)
	assert.Nil(t, d.UpdateSelectionCandidate(other.EditingProxy("title").Element()))
}
