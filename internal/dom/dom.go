/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package dom holds small helpers over golang.org/x/net/html nodes used by the template and the
// live stage documents. Elements are addressed by their data-montage-id attribute.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const IDAttr = "data-montage-id"

var ErrNoElement = errors.New("dom: markup contains no element")

// Parse parses a full HTML document.
func Parse(markup string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// MontageID returns the data-montage-id of n.
func MontageID(n *html.Node) string { return Attr(n, IDAttr) }

// Walk visits root and its descendants depth-first until fn returns false.
func Walk(root *html.Node, fn func(*html.Node) bool) bool {
	if root == nil {
		return true
	}
	if !fn(root) {
		return false
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// First returns the first element below root (root included) that matches.
func First(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindByID returns the element whose data-montage-id is id.
func FindByID(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	return First(root, func(n *html.Node) bool { return MontageID(n) == id })
}

// FindTag returns the first element with the given tag.
func FindTag(root *html.Node, a atom.Atom) *html.Node {
	return First(root, func(n *html.Node) bool { return n.DataAtom == a })
}

// ElementFromMarkup builds a detached element from markup and tags it with id. Empty markup
// yields a bare div.
func ElementFromMarkup(markup, id string) (*html.Node, error) {
	var el *html.Node
	if strings.TrimSpace(markup) == "" {
		el = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	} else {
		ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
		nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
		if err != nil {
			return nil, fmt.Errorf("parse markup: %w", err)
		}
		for _, n := range nodes {
			if n.Type == html.ElementNode {
				el = n
				break
			}
		}
		if el == nil {
			return nil, ErrNoElement
		}
	}
	if id != "" {
		SetAttr(el, IDAttr, id)
	}
	return el, nil
}

// Render serializes n and its children.
func Render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// OuterHTML is Render for a single element.
func OuterHTML(n *html.Node) string {
	s, err := Render(n)
	if err != nil {
		return ""
	}
	return s
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Append moves child to the end of parent.
func Append(parent, child *html.Node) {
	Detach(child)
	parent.AppendChild(child)
}

// Replace puts repl where old is and detaches old.
func Replace(old, repl *html.Node) {
	if old.Parent == nil {
		return
	}
	Detach(repl)
	old.Parent.InsertBefore(repl, old)
	old.Parent.RemoveChild(old)
}

// Contains reports whether n is ancestor or n itself lies below it.
func Contains(ancestor, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Clone deep-copies n. The copy is detached.
func Clone(n *html.Node) *html.Node {
	cp := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cp.AppendChild(Clone(c))
	}
	return cp
}
