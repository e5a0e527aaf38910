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
	"fmt"
	"sort"
)

// OwnerLabel is the label of the root component of a reel.
const OwnerLabel = "owner"

// Graph is a serialization: label to object description, in order.
type Graph struct {
	labels  []string
	objects map[string]*Object
}

func NewGraph() *Graph {
	return &Graph{objects: map[string]*Object{}}
}

// Parse decodes a serialization string.
func Parse(data []byte) (*Graph, error) {
	v, err := DecodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("parse serialization: %w", err)
	}
	m, ok := v.(*Map)
	if !ok {
		return nil, fmt.Errorf("parse serialization: expected object, got %T", v)
	}
	g := NewGraph()
	for _, label := range m.Keys() {
		raw, _ := m.Get(label)
		desc, ok := raw.(*Map)
		if !ok {
			return nil, fmt.Errorf("parse serialization: %q is not an object", label)
		}
		obj, err := ObjectFromMap(desc)
		if err != nil {
			return nil, fmt.Errorf("parse serialization: %q: %w", label, err)
		}
		g.Set(label, obj)
	}
	return g, nil
}

func (g *Graph) Len() int { return len(g.labels) }

func (g *Graph) Labels() []string { return append([]string(nil), g.labels...) }

// SortedLabels returns the labels with the owner first and the rest in lexicographic order.
func (g *Graph) SortedLabels() []string {
	ls := g.Labels()
	SortLabels(ls)
	return ls
}

func (g *Graph) Get(label string) (*Object, bool) {
	o, ok := g.objects[label]
	return o, ok
}

func (g *Graph) Set(label string, o *Object) {
	if g.objects == nil {
		g.objects = map[string]*Object{}
	}
	if _, ok := g.objects[label]; !ok {
		g.labels = append(g.labels, label)
	}
	g.objects[label] = o
}

func (g *Graph) Delete(label string) bool {
	if _, ok := g.objects[label]; !ok {
		return false
	}
	delete(g.objects, label)
	for i, l := range g.labels {
		if l == label {
			g.labels = append(g.labels[:i], g.labels[i+1:]...)
			break
		}
	}
	return true
}

func (g *Graph) Clone() *Graph {
	out := NewGraph()
	for _, l := range g.labels {
		out.Set(l, g.objects[l].Clone())
	}
	return out
}

func (g *Graph) Map() *Map {
	m := NewMap()
	for _, l := range g.labels {
		m.Set(l, g.objects[l].Map())
	}
	return m
}

func (g *Graph) MarshalJSON() ([]byte, error) { return g.Map().MarshalJSON() }

// String renders the graph the way it is stored in templates.
func (g *Graph) String() string {
	b, err := MarshalIndent(g)
	if err != nil {
		return ""
	}
	return string(b)
}

// LabelLess orders labels with the owner first, then lexicographically.
func LabelLess(a, b string) bool {
	if a == b {
		return false
	}
	if a == OwnerLabel {
		return true
	}
	if b == OwnerLabel {
		return false
	}
	return a < b
}

func SortLabels(labels []string) {
	sort.Slice(labels, func(i, j int) bool { return LabelLess(labels[i], labels[j]) })
}
