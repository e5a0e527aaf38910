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
	"errors"
	"fmt"
	"regexp"
)

const (
	OneWayArrow = "<-"
	TwoWayArrow = "<->"
)

var ErrBindingDescriptor = errors.New("serialization: invalid binding descriptor")

// Binding is one entry of a bindings unit:
//
//	{"<-": "@label.path", "converter": {"@": "conv"}}
type Binding struct {
	OneWay    bool
	Source    string
	Converter string
	// Extra keeps keys the editor does not interpret, in order.
	Extra *Map
}

func (b Binding) Arrow() string {
	if b.OneWay {
		return OneWayArrow
	}
	return TwoWayArrow
}

func (b Binding) Clone() Binding {
	b.Extra = b.Extra.Clone()
	return b
}

// Map returns the JSON shape of the binding.
func (b Binding) Map() *Map {
	m := NewMap()
	m.Set(b.Arrow(), b.Source)
	if b.Converter != "" {
		m.Set("converter", ObjectRef{Label: b.Converter})
	}
	for _, k := range b.Extra.Keys() {
		v, _ := b.Extra.Get(k)
		m.Set(k, CloneValue(v))
	}
	return m
}

func (b Binding) MarshalJSON() ([]byte, error) { return b.Map().MarshalJSON() }

// DecodeBinding reads a binding from its decoded JSON shape.
func DecodeBinding(v any) (Binding, error) {
	m, ok := v.(*Map)
	if !ok {
		return Binding{}, fmt.Errorf("%w: expected object, got %T", ErrBindingDescriptor, v)
	}
	var (
		b     Binding
		found bool
	)
	for _, k := range m.Keys() {
		val, _ := m.Get(k)
		switch k {
		case OneWayArrow, TwoWayArrow:
			s, ok := val.(string)
			if !ok || found {
				return Binding{}, fmt.Errorf("%w: bad %q entry", ErrBindingDescriptor, k)
			}
			b.OneWay, b.Source, found = k == OneWayArrow, s, true
		case "converter":
			ref, ok := val.(ObjectRef)
			if !ok {
				return Binding{}, fmt.Errorf("%w: converter must be an object reference", ErrBindingDescriptor)
			}
			b.Converter = ref.Label
		default:
			if b.Extra == nil {
				b.Extra = NewMap()
			}
			b.Extra.Set(k, val)
		}
	}
	if !found {
		return Binding{}, fmt.Errorf("%w: missing %q or %q", ErrBindingDescriptor, OneWayArrow, TwoWayArrow)
	}
	return b, nil
}

var sourcePattern = regexp.MustCompile(`^@([^.\s]+)\.(\S.*)$`)

// ParseSource splits "@label.path" into label and path.
func ParseSource(source string) (label, path string, err error) {
	m := sourcePattern.FindStringSubmatch(source)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrBindingDescriptor, source)
	}
	return m[1], m[2], nil
}

func FormatSource(label, path string) string {
	return "@" + label + "." + path
}

// BindingsUnit maps a bound property path to its binding, keeping order.
type BindingsUnit struct {
	paths  []string
	values map[string]Binding
}

func NewBindingsUnit() *BindingsUnit {
	return &BindingsUnit{values: map[string]Binding{}}
}

func (u *BindingsUnit) Name() string { return "bindings" }

func (u *BindingsUnit) Len() int {
	if u == nil {
		return 0
	}
	return len(u.paths)
}

func (u *BindingsUnit) Paths() []string {
	if u == nil {
		return nil
	}
	return append([]string(nil), u.paths...)
}

func (u *BindingsUnit) Get(path string) (Binding, bool) {
	if u == nil {
		return Binding{}, false
	}
	b, ok := u.values[path]
	return b, ok
}

func (u *BindingsUnit) Set(path string, b Binding) {
	if u.values == nil {
		u.values = map[string]Binding{}
	}
	if _, ok := u.values[path]; !ok {
		u.paths = append(u.paths, path)
	}
	u.values[path] = b
}

func (u *BindingsUnit) Delete(path string) bool {
	if _, ok := u.values[path]; !ok {
		return false
	}
	delete(u.values, path)
	for i, p := range u.paths {
		if p == path {
			u.paths = append(u.paths[:i], u.paths[i+1:]...)
			break
		}
	}
	return true
}

func (u *BindingsUnit) Clone() Unit {
	out := NewBindingsUnit()
	for _, p := range u.paths {
		out.Set(p, u.values[p].Clone())
	}
	return out
}

func (u *BindingsUnit) Value() any {
	m := NewMap()
	for _, p := range u.paths {
		m.Set(p, u.values[p].Map())
	}
	return m
}

func (u *BindingsUnit) MarshalJSON() ([]byte, error) { return encode(u.Value()) }

func decodeBindings(v any) (*BindingsUnit, error) {
	m, ok := v.(*Map)
	if !ok {
		return nil, fmt.Errorf("%w: bindings must be an object", ErrBindingDescriptor)
	}
	u := NewBindingsUnit()
	for _, p := range m.Keys() {
		raw, _ := m.Get(p)
		b, err := DecodeBinding(raw)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", p, err)
		}
		u.Set(p, b)
	}
	return u, nil
}
