/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package serialization

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reeleditor/internal/proppath"
)

const sample = `{
    "owner": {
        "prototype": "ui/main.reel",
        "properties": {
            "element": {"#": "main"},
            "title": "<b>Hi</b> & co"
        }
    },
    "zeta": {
        "object": "core/converter",
        "custom": {"z": 1, "a": [1.50, true, null]},
        "properties": {"n": 10}
    },
    "alpha": {
        "prototype": "ui/button.reel",
        "bindings": {
            "value": {"<-": "@zeta.n", "converter": {"@": "zeta"}, "serializable": false}
        },
        "listeners": [{"type": "action", "listener": {"@": "owner"}}]
    }
}`

func TestParseKeepsOrderAndReferences(t *testing.T) {
	g, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "zeta", "alpha"}, g.Labels())
	assert.Equal(t, []string{"owner", "alpha", "zeta"}, g.SortedLabels())

	owner, ok := g.Get("owner")
	require.True(t, ok)
	assert.Equal(t, "ui/main.reel", owner.ExportID())
	el, ok := owner.Properties().Get("element")
	require.True(t, ok)
	assert.Equal(t, ElementRef{ID: "main"}, el)

	zeta, _ := g.Get("zeta")
	assert.Equal(t, TypeObject, zeta.TypeKey)
	require.Len(t, zeta.Units, 2)
	assert.IsType(t, &OpaqueUnit{}, zeta.Units[0])
	assert.IsType(t, &PropertiesUnit{}, zeta.Units[1])
}

func TestMarshalRoundTripPreservesUnknownUnits(t *testing.T) {
	g, err := Parse([]byte(sample))
	require.NoError(t, err)
	out, err := MarshalIndent(g)
	require.NoError(t, err)

	assert.Contains(t, string(out), `"title": "<b>Hi</b> & co"`)
	assert.Contains(t, string(out), `1.50`)

	again, err := Parse(out)
	require.NoError(t, err)
	assert.True(t, Equal(g, again))

	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	zeta := generic["zeta"].(map[string]any)
	assert.Equal(t, map[string]any{"z": float64(1), "a": []any{1.5, true, nil}}, zeta["custom"])
}

func TestBindingsDecode(t *testing.T) {
	g, err := Parse([]byte(sample))
	require.NoError(t, err)
	alpha, _ := g.Get("alpha")
	bu := alpha.Bindings()
	require.NotNil(t, bu)
	b, ok := bu.Get("value")
	require.True(t, ok)
	assert.True(t, b.OneWay)
	assert.Equal(t, "@zeta.n", b.Source)
	assert.Equal(t, "zeta", b.Converter)

	raw, err := Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"<-":"@zeta.n","converter":{"@":"zeta"},"serializable":false}`, string(raw))

	label, path, err := ParseSource(b.Source)
	require.NoError(t, err)
	assert.Equal(t, "zeta", label)
	assert.Equal(t, "n", path)
}

func TestMalformedBindingsStayOpaque(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"prototype":"a/b","bindings":{"x":{"oops":1}}}`))
	require.NoError(t, err)
	assert.Nil(t, obj.Bindings())
	assert.IsType(t, &OpaqueUnit{}, obj.Unit(UnitBindings))
	raw, err := Marshal(obj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prototype":"a/b","bindings":{"x":{"oops":1}}}`, string(raw))
}

func TestParseSourceErrors(t *testing.T) {
	for _, s := range []string{"", "zeta.n", "@zeta", "@.n", "@zeta."} {
		_, _, err := ParseSource(s)
		assert.ErrorIsf(t, err, ErrBindingDescriptor, "source %q", s)
	}
}

func TestEnsurePropertiesGoesFirst(t *testing.T) {
	obj := NewObject(TypePrototype, "x/y")
	obj.EnsureBindings().Set("a", Binding{Source: "@b.c"})
	obj.EnsureProperties().Set("k", "v")
	assert.Equal(t, UnitProperties, obj.Units[0].Name())
	assert.Equal(t, []string{"prototype", "properties", "bindings"}, obj.Map().Keys())
}

func TestCloneIsDeep(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"prototype":"a/b","properties":{"nested":{"v":1}}}`))
	require.NoError(t, err)
	cp := obj.Clone()
	require.NoError(t, Assign(cp.Properties(), proppath.MustParse("nested.v"), 2))
	v, _ := Lookup(obj.Properties(), proppath.MustParse("nested.v"))
	assert.Equal(t, json.Number("1"), v)
}

func TestLookupAndAssign(t *testing.T) {
	props := MapOf("element", ElementRef{ID: "main"}, "list", []any{"a", "b"})
	v, ok := Lookup(props, proppath.MustParse("element.property('#')"))
	require.True(t, ok)
	assert.Equal(t, "main", v)

	v, ok = Lookup(props, proppath.MustParse("list.1"))
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = Lookup(props, proppath.MustParse("missing.x"))
	assert.False(t, ok)

	require.NoError(t, Assign(props, proppath.MustParse("element.property('#')"), "other"))
	v, _ = props.Get("element")
	assert.Equal(t, ElementRef{ID: "other"}, v)

	require.NoError(t, Assign(props, proppath.MustParse("a.b.c"), true))
	v, ok = Lookup(props, proppath.MustParse("a.b.c"))
	require.True(t, ok)
	assert.Equal(t, true, v)

	assert.ErrorIs(t, Assign(props, proppath.MustParse("list.x"), 1), ErrPath)
	assert.True(t, Remove(props, proppath.MustParse("a.b.c")))
	assert.False(t, Remove(props, proppath.MustParse("a.b.c")))
}

func TestMapDeleteKeepsOrder(t *testing.T) {
	m := MapOf("a", 1, "b", 2, "c", 3)
	assert.True(t, m.Delete("b"))
	m.Set("b", 4)
	m.Set("a", 5)
	assert.Equal(t, []string{"a", "c", "b"}, m.Keys())
	raw, err := Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"a":5,"c":3,"b":4}`, string(raw))
}

func TestLabelLess(t *testing.T) {
	ls := []string{"zed", "owner", "Alpha", "beta"}
	SortLabels(ls)
	assert.Equal(t, []string{"owner", "Alpha", "beta", "zed"}, ls)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate([]byte(sample)))
	assert.ErrorIs(t, Validate([]byte(`{"a": {"prototype": 3}}`)), ErrInvalid)
	assert.ErrorIs(t, Validate([]byte(`{"a": {"prototype": "x", "object": "y"}}`)), ErrInvalid)
	assert.ErrorIs(t, Validate([]byte(`{"a": {"prototype": "x", "bindings": {"v": {"<-": "@b.c", "converter": "nope"}}}}`)), ErrInvalid)
}
