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
	"golang.org/x/net/html"

	"reeleditor/internal/dom"
	"reeleditor/internal/stage"
)

func without(list []*Proxy, p *Proxy) []*Proxy {
	out := list[:0:0]
	for _, q := range list {
		if q != p {
			out = append(out, q)
		}
	}
	return out
}

// SelectedObjects returns the selection in selection order.
func (d *ReelDocument) SelectedObjects() []*Proxy {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Proxy(nil), d.selected...)
}

// SelectObject appends p to the selection. Proxies of other documents and duplicates are ignored.
func (d *ReelDocument) SelectObject(p *Proxy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p == nil || d.proxies[p.label] != p {
		return
	}
	for _, q := range d.selected {
		if q == p {
			return
		}
	}
	d.selected = append(d.selected, p)
}

// DeselectObject removes p from the selection.
func (d *ReelDocument) DeselectObject(p *Proxy) {
	d.mu.Lock()
	d.selected = without(d.selected, p)
	d.mu.Unlock()
}

func (d *ReelDocument) ClearSelectedObjects() {
	d.mu.Lock()
	d.selected = nil
	d.mu.Unlock()
}

// selectionElement is the element hit testing sees for p: the live element when attached,
// the template element otherwise.
func (d *ReelDocument) selectionElement(p *Proxy) *html.Node {
	if d.LiveController() != nil {
		if comp, ok := p.StageObject().(stage.Component); ok {
			return comp.Element()
		}
		return nil
	}
	return p.Element()
}

func (d *ReelDocument) proxyForElement(n *html.Node) *Proxy {
	if ctl := d.LiveController(); ctl != nil {
		if comp := ctl.ComponentForElement(n); comp != nil {
			return d.EditingProxyForObject(comp)
		}
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.proxies {
		if p.Element() == n {
			return p
		}
	}
	return nil
}

func (d *ReelDocument) selectionOwnerElement() *html.Node {
	if ctl := d.LiveController(); ctl != nil {
		return ctl.OwnerElement()
	}
	el, err := d.OwnerElement()
	if err != nil {
		return nil
	}
	return el
}

// UpdateSelectionCandidate walks from node towards the owner element and returns the proxy of
// the highest component found below the owner or below an already selected element. It returns
// nil for nodes outside this document's owner element.
func (d *ReelDocument) UpdateSelectionCandidate(node *html.Node) *Proxy {
	owner := d.selectionOwnerElement()
	if node == nil || owner == nil || !dom.Contains(owner, node) {
		return nil
	}
	selected := map[*html.Node]bool{}
	for _, p := range d.SelectedObjects() {
		if el := d.selectionElement(p); el != nil {
			selected[el] = true
		}
	}
	candidate := d.proxyForElement(node)
	for cur := node; cur != nil && cur != owner && !selected[cur]; cur = cur.Parent {
		if p := d.proxyForElement(cur); p != nil {
			candidate = p
		}
	}
	return candidate
}
