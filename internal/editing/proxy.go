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
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"reeleditor/internal/proppath"
	"reeleditor/internal/serialization"
	"reeleditor/internal/stage"
)

// Proxy is the editor's stand-in for one serialized object. It owns a copy of the object's
// description and optionally points at the live instance and the template element.
type Proxy struct {
	label    string
	exportID string
	doc      *ReelDocument
	events   dispatcher

	mu       sync.RWMutex
	desc     *serialization.Object
	live     stage.Object
	element  *html.Node
	dispatch bool

	// Markup and ElementID let a removed component be inserted again.
	Markup    string
	ElementID string
	// anchor remembers where a removed template element sat.
	anchorParent *html.Node
	anchorNext   *html.Node
}

// NewProxy creates a proxy. exportID defaults to the description's module id.
func NewProxy(label string, desc *serialization.Object, exportID string, doc *ReelDocument) (*Proxy, error) {
	if label == "" {
		return nil, ErrMissingLabel
	}
	if desc == nil {
		desc = serialization.NewObject(serialization.TypePrototype, exportID)
	}
	if exportID == "" {
		exportID = desc.ExportID()
	}
	return &Proxy{label: label, exportID: exportID, desc: desc, doc: doc, dispatch: true}, nil
}

func (p *Proxy) Label() string           { return p.label }
func (p *Proxy) ExportID() string        { return p.exportID }
func (p *Proxy) Document() *ReelDocument { return p.doc }

// MarshalJSON writes the proxy as a reference to its label.
func (p *Proxy) MarshalJSON() ([]byte, error) {
	return serialization.ObjectRef{Label: p.label}.MarshalJSON()
}

// Serialization returns a copy of the description.
func (p *Proxy) Serialization() *serialization.Object {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.desc.Clone()
}

// OriginalSerializationMap returns the whole description, unknown units included.
func (p *Proxy) OriginalSerializationMap() *serialization.Map {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.desc.Map()
}

// Properties returns a copy of the properties unit, or an empty map.
func (p *Proxy) Properties() *serialization.Map {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if props := p.desc.Properties(); props != nil {
		return props.Clone()
	}
	return serialization.NewMap()
}

// StageObject returns the associated live object, or nil when there is none or it is gone.
func (p *Proxy) StageObject() stage.Object {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.live == nil || !p.live.Alive() {
		return nil
	}
	return p.live
}

func (p *Proxy) SetStageObject(o stage.Object) {
	p.mu.Lock()
	p.live = o
	p.mu.Unlock()
}

// Element is the template element of a component proxy.
func (p *Proxy) Element() *html.Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.element
}

func (p *Proxy) SetElement(el *html.Node) {
	p.mu.Lock()
	p.element = el
	p.mu.Unlock()
}

// IsComponent reports whether the proxy stands for a component.
func (p *Proxy) IsComponent() bool {
	if p.Element() != nil || stage.IsReel(p.exportID) {
		return true
	}
	_, ok := p.GetObjectProperty("element")
	return ok
}

func (p *Proxy) PropertyChangeDispatchingEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dispatch
}

func (p *Proxy) SetPropertyChangeDispatchingEnabled(on bool) {
	p.mu.Lock()
	p.dispatch = on
	p.mu.Unlock()
}

// Subscribe registers fn for proxy level events. An empty typ receives all of them.
func (p *Proxy) Subscribe(typ EventType, fn Handler) func() { return p.events.subscribe(typ, fn) }

// GetObjectProperty reads a value below the properties unit.
func (p *Proxy) GetObjectProperty(expr string) (any, bool) {
	path, err := proppath.Parse(expr)
	if err != nil {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := serialization.Lookup(p.desc.Properties(), path)
	return serialization.CloneValue(v), ok
}

// GetPath reads a value anywhere in the description, e.g. "properties.element.property('#')".
func (p *Proxy) GetPath(expr string) (any, bool) {
	path, err := proppath.Parse(expr)
	if err != nil {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return serialization.Lookup(p.desc.Map(), path)
}

// SetObjectProperty writes a value below the properties unit, mirroring it onto the live object
// first. A failed mirror leaves the proxy untouched.
func (p *Proxy) SetObjectProperty(expr string, value any) error {
	path, err := proppath.Parse(expr)
	if err != nil {
		return err
	}
	if err := p.mirror(path, value); err != nil {
		return err
	}
	return p.setLocal(path, value, true)
}

func (p *Proxy) mirror(path proppath.Path, value any) error {
	live := p.StageObject()
	if live == nil {
		return nil
	}
	if err := live.SetProperty(path, value); err != nil {
		return fmt.Errorf("set %s on %s: %w", path, p.label, err)
	}
	return nil
}

func (p *Proxy) setLocal(path proppath.Path, value any, notify bool) error {
	p.mu.Lock()
	err := serialization.Assign(p.desc.EnsureProperties(), path, serialization.CloneValue(value))
	dispatch := p.dispatch
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if notify && dispatch {
		p.emit(Event{Type: DidChangeObjectProperty, Target: p, Property: path.String(), Value: value})
	}
	return nil
}

func (p *Proxy) emit(e Event) {
	if p.doc != nil {
		p.doc.emit(&p.events, e)
		return
	}
	p.events.dispatch(e)
}

// revertPoint returns the shortest prefix of path that writing path creates, with its current
// value. It is path itself when every parent already holds a value.
func (p *Proxy) revertPoint(path proppath.Path) (string, any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	props := p.desc.Properties()
	for n := 1; n < len(path); n++ {
		v, ok := serialization.Lookup(props, path[:n])
		if !ok || v == nil {
			return path[:n].String(), v, ok
		}
	}
	v, ok := serialization.Lookup(props, path)
	return path.String(), serialization.CloneValue(v), ok
}

// deleteObjectProperty removes a value below the properties unit.
func (p *Proxy) deleteObjectProperty(path proppath.Path) {
	p.mu.Lock()
	if props := p.desc.Properties(); props != nil {
		serialization.Remove(props, path)
	}
	p.mu.Unlock()
}

// SetObjectProperties applies every key of bag in sorted order and emits one
// didChangeObjectProperties event.
func (p *Proxy) SetObjectProperties(bag *serialization.Map) error {
	keys := bag.SortedKeys()
	paths := make([]proppath.Path, len(keys))
	for i, k := range keys {
		paths[i] = proppath.Keys(k)
	}
	before := p.Properties()
	for i, path := range paths {
		v, _ := bag.Get(keys[i])
		if err := p.mirror(path, v); err != nil {
			for _, done := range paths[:i] {
				prev, _ := serialization.Lookup(before, done)
				_ = p.mirror(done, prev)
			}
			return err
		}
	}
	for i, path := range paths {
		v, _ := bag.Get(keys[i])
		if err := p.setLocal(path, v, false); err != nil {
			return err
		}
	}
	if p.PropertyChangeDispatchingEnabled() {
		p.emit(Event{Type: DidChangeObjectProperties, Target: p, Properties: bag.Clone()})
	}
	return nil
}

// Binding returns the binding at path.
func (p *Proxy) Binding(path string) (serialization.Binding, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.desc.Bindings().Get(path)
	if !ok {
		return serialization.Binding{}, false
	}
	return b.Clone(), true
}

// DefineObjectBinding stores b at path and mirrors it onto a live Binder.
func (p *Proxy) DefineObjectBinding(path string, b serialization.Binding) error {
	if live, ok := p.StageObject().(stage.Binder); ok {
		if err := live.DefineBinding(path, b); err != nil {
			return fmt.Errorf("define binding %s on %s: %w", path, p.label, err)
		}
	}
	p.mu.Lock()
	p.desc.EnsureBindings().Set(path, b.Clone())
	p.mu.Unlock()
	return nil
}

// CancelObjectBinding removes the binding at path and returns it.
func (p *Proxy) CancelObjectBinding(path string) (serialization.Binding, error) {
	b, ok := p.Binding(path)
	if !ok {
		return serialization.Binding{}, fmt.Errorf("%w: no binding at %q on %s", ErrInvalidBinding, path, p.label)
	}
	if live, ok := p.StageObject().(stage.Binder); ok {
		if err := live.CancelBinding(path); err != nil {
			return serialization.Binding{}, fmt.Errorf("cancel binding %s on %s: %w", path, p.label, err)
		}
	}
	p.mu.Lock()
	if bu := p.desc.Bindings(); bu != nil {
		bu.Delete(path)
		if bu.Len() == 0 {
			p.desc.RemoveUnit(serialization.UnitBindings)
		}
	}
	p.mu.Unlock()
	return b, nil
}
