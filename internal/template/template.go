/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package template models a reel template: an HTML document whose
// <script type="text/montage-serialization"> element carries the object graph.
package template

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"reeleditor/internal/dom"
	"reeleditor/internal/serialization"
)

const SerializationType = "text/montage-serialization"

const blank = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
</head>
<body>
</body>
</html>`

type Template struct {
	doc *html.Node
}

// Parse reads a template from markup.
func Parse(markup string) (*Template, error) {
	doc, err := dom.Parse(markup)
	if err != nil {
		return nil, err
	}
	return &Template{doc: doc}, nil
}

// New returns an empty template with the given serialization.
func New(objects string) *Template {
	t, err := Parse(blank)
	if err != nil {
		panic(err)
	}
	if objects != "" {
		t.SetObjectsString(objects)
	}
	return t
}

func (t *Template) Document() *html.Node { return t.doc }

func (t *Template) Body() *html.Node { return dom.FindTag(t.doc, atom.Body) }

func (t *Template) script() *html.Node {
	return dom.First(t.doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Script && strings.EqualFold(dom.Attr(n, "type"), SerializationType)
	})
}

// ObjectsString returns the raw serialization, or "" when the template has none.
func (t *Template) ObjectsString() string {
	s := t.script()
	if s == nil {
		return ""
	}
	var b strings.Builder
	for c := s.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// SetObjectsString replaces the serialization, creating the script element in <head> if needed.
func (t *Template) SetObjectsString(objects string) {
	s := t.script()
	if s == nil {
		s = &html.Node{
			Type:     html.ElementNode,
			Data:     "script",
			DataAtom: atom.Script,
			Attr:     []html.Attribute{{Key: "type", Val: SerializationType}},
		}
		parent := dom.FindTag(t.doc, atom.Head)
		if parent == nil {
			parent = t.doc
		}
		parent.AppendChild(s)
	}
	for c := s.FirstChild; c != nil; {
		next := c.NextSibling
		s.RemoveChild(c)
		c = next
	}
	s.AppendChild(&html.Node{Type: html.TextNode, Data: "\n" + objects + "\n"})
}

// Objects parses the serialization. A template without one yields an empty graph.
func (t *Template) Objects() (*serialization.Graph, error) {
	raw := strings.TrimSpace(t.ObjectsString())
	if raw == "" {
		return serialization.NewGraph(), nil
	}
	g, err := serialization.Parse([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("template objects: %w", err)
	}
	return g, nil
}

// ElementByID finds an element of the template by data-montage-id.
func (t *Template) ElementByID(id string) *html.Node { return dom.FindByID(t.doc, id) }

// HTML renders the whole template.
func (t *Template) HTML() (string, error) { return dom.Render(t.doc) }

func (t *Template) Clone() *Template { return &Template{doc: dom.Clone(t.doc)} }
