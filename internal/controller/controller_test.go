/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reeleditor/internal/dom"
	"reeleditor/internal/proppath"
	"reeleditor/internal/serialization"
	"reeleditor/internal/stage"
	"reeleditor/internal/template"
)

const reel = `<html><head><script type="text/montage-serialization">
{
    "owner": {"prototype": "ui/main.reel", "properties": {"element": {"#": "main"}}},
    "existing": {"prototype": "ui/text.reel", "properties": {"element": {"#": "txt"}}}
}
</script></head><body><div data-montage-id="main"><p data-montage-id="txt"></p></div></body></html>`

func newController(t *testing.T, loader stage.Loader) *EditingController {
	t.Helper()
	tpl, err := template.Parse(reel)
	require.NoError(t, err)
	s, err := stage.NewFrame(stage.NewRegistry(loader)).Load(context.Background(), "pkg", tpl)
	require.NoError(t, err)
	return New(s)
}

func TestAddObjectIdentifiers(t *testing.T) {
	c := newController(t, stage.OpenLoader())
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		o, err := c.AddObject(ctx, "foo/bar", "Bar", nil)
		require.NoError(t, err)
		ids = append(ids, o.Identifier())
	}
	assert.Equal(t, []string{"bar1", "bar2", "bar3"}, ids)

	o2, _ := c.Session().Object("bar2")
	require.NoError(t, c.RemoveObject(ctx, o2))
	o, err := c.AddObject(ctx, "foo/bar", "Bar", nil)
	require.NoError(t, err)
	assert.Equal(t, "bar4", o.Identifier())
}

func TestAddObjectFailures(t *testing.T) {
	c := newController(t, stage.NewStaticLoader("ui/main.reel", "ui/text.reel"))
	ctx := context.Background()
	_, err := c.AddObject(ctx, "foo/bar", "Bar", nil)
	assert.ErrorIs(t, err, stage.ErrResolution)

	c = newController(t, stage.OpenLoader())
	boom := errors.New("boom")
	var created stage.Object
	_, err = c.AddObject(ctx, "foo/bar", "Bar", func(o stage.Object) error {
		created = o
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, created.Alive())
	_, ok := c.Session().Object("bar1")
	assert.False(t, ok)
}

func TestAddComponentFromMarkup(t *testing.T) {
	c := newController(t, stage.OpenLoader())
	ctx := context.Background()

	_, err := c.AddComponent(ctx, "", serialization.NewObject("prototype", "ui/button.reel"), "", "", "")
	assert.ErrorIs(t, err, ErrMissingLabel)

	added, err := c.AddComponent(ctx, "button1", serialization.NewObject("prototype", "ui/button.reel"), `<button>Go</button>`, "", "")
	require.NoError(t, err)
	assert.Equal(t, "button1", added.Label)
	assert.Equal(t, "button1", added.Component.Identifier())
	assert.True(t, added.Component.NeedsDraw())
	assert.Equal(t, c.Owner(), added.Component.Parent())

	el := dom.FindByID(c.Session().Document(), "button1")
	require.NotNil(t, el)
	assert.Equal(t, c.OwnerElement(), el.Parent)
	assert.Equal(t, added.Component, c.ComponentForElement(el))

	ref, ok := added.Serialization.Properties().Get("element")
	require.True(t, ok)
	assert.Equal(t, serialization.ElementRef{ID: "button1"}, ref)
}

func TestRemoveComponentRestoresOriginal(t *testing.T) {
	c := newController(t, stage.OpenLoader())
	ctx := context.Background()
	existing, ok := c.Session().Object("existing")
	require.True(t, ok)
	comp := existing.(stage.Component)

	el, err := c.RemoveComponent(ctx, comp, nil)
	require.NoError(t, err)
	assert.Nil(t, el.Parent)
	assert.Nil(t, dom.FindByID(c.Session().Document(), "txt"))
	assert.False(t, comp.Alive())
	assert.Empty(t, c.Owner().Children())

	_, err = c.RemoveComponent(ctx, comp, nil)
	assert.ErrorIs(t, err, stage.ErrResolution)

	added, err := c.AddComponent(ctx, "again", serialization.NewObject("prototype", "ui/text.reel"), "<p></p>", "again", "")
	require.NoError(t, err)
	orig, err := dom.ElementFromMarkup("<p>orig</p>", "orig")
	require.NoError(t, err)
	_, err = c.RemoveComponent(ctx, added.Component, orig)
	require.NoError(t, err)
	assert.Equal(t, c.OwnerElement(), dom.FindByID(c.Session().Document(), "orig").Parent)
}

func TestSetComponentPropertyAndExport(t *testing.T) {
	c := newController(t, stage.OpenLoader())
	ctx := context.Background()
	existing, _ := c.Session().Object("existing")
	require.NoError(t, c.SetComponentProperty(ctx, existing, "value", "hello"))
	v, ok := existing.Property(proppath.MustParse("value"))
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	g, err := c.Export()
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "existing"}, g.Labels())
	desc, _ := g.Get("existing")
	v, ok = desc.Properties().Get("value")
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	existing.Destroy()
	assert.ErrorIs(t, c.SetComponentProperty(ctx, existing, "value", "x"), stage.ErrResolution)
}
