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
	"strconv"

	"reeleditor/internal/proppath"
)

var ErrPath = errors.New("serialization: path does not address a value")

// Lookup resolves p against v.
func Lookup(v any, p proppath.Path) (any, bool) {
	cur := v
	for _, seg := range p {
		step := seg.Step()
		switch t := cur.(type) {
		case *Map:
			next, ok := t.Get(step)
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(step)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			cur = t[i]
		case ObjectRef:
			if step != "@" {
				return nil, false
			}
			cur = t.Label
		case ElementRef:
			if step != "#" {
				return nil, false
			}
			cur = t.ID
		default:
			return nil, false
		}
	}
	return cur, true
}

// Assign sets the value at p inside m, creating intermediate maps as needed.
// Assigning "@" or "#" below a reference rewrites the reference.
func Assign(m *Map, p proppath.Path, v any) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty path", ErrPath)
	}
	head, rest := p.Head()
	if len(rest) == 0 {
		m.Set(head, v)
		return nil
	}
	child, ok := m.Get(head)
	if !ok || child == nil {
		child = NewMap()
		m.Set(head, child)
	}
	switch t := child.(type) {
	case *Map:
		return Assign(t, rest, v)
	case ObjectRef, ElementRef:
		if len(rest) != 1 {
			return fmt.Errorf("%w: %s", ErrPath, p)
		}
		s, isString := v.(string)
		key := rest[0].Step()
		if _, isObj := t.(ObjectRef); isObj && key == "@" && isString {
			m.Set(head, ObjectRef{Label: s})
			return nil
		}
		if _, isEl := t.(ElementRef); isEl && key == "#" && isString {
			m.Set(head, ElementRef{ID: s})
			return nil
		}
		return fmt.Errorf("%w: %s", ErrPath, p)
	default:
		return fmt.Errorf("%w: %s crosses a %T", ErrPath, p, child)
	}
}

// Remove deletes the value at p and reports whether something was removed.
func Remove(m *Map, p proppath.Path) bool {
	if len(p) == 0 {
		return false
	}
	head, rest := p.Head()
	if len(rest) == 0 {
		return m.Delete(head)
	}
	child, ok := m.Get(head)
	if !ok {
		return false
	}
	cm, ok := child.(*Map)
	if !ok {
		return false
	}
	return Remove(cm, rest)
}
