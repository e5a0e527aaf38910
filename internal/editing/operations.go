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
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"reeleditor/internal/dom"
	applog "reeleditor/internal/log"
	"reeleditor/internal/proppath"
	"reeleditor/internal/serialization"
	"reeleditor/internal/stage"
	"reeleditor/internal/undo"
)

const (
	undoAddObject       = "Add Object"
	undoRemoveObject    = "Remove Object"
	undoAddComponent    = "Add Component"
	undoRemoveComponent = "Remove Component"
	undoSetProperty     = "Set Property"
	undoDefineBinding   = "Define Binding"
	undoCancelBinding   = "Cancel Binding"
)

func (d *ReelDocument) dispatch(e Event) {
	um := d.UndoManager()
	e.Undone, e.Redone = um.IsUndoing(), um.IsRedoing()
	d.emit(&d.events, e)
}

// GenerateLabel returns the next free label for an object of module exportID.
func (d *ReelDocument) GenerateLabel(exportID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return nextLabel(LabelBase(exportID), d.labelsLocked())
}

func (d *ReelDocument) putProxy(p *Proxy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, taken := d.proxies[p.label]; taken {
		return fmt.Errorf("%q: %w", p.label, ErrDuplicateLabel)
	}
	d.proxies[p.label] = p
	return nil
}

func (d *ReelDocument) deleteProxy(p *Proxy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.proxies, p.label)
	d.selected = without(d.selected, p)
}

func (d *ReelDocument) checkFree(label string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, taken := d.proxies[label]; taken {
		return fmt.Errorf("%q: %w", label, ErrDuplicateLabel)
	}
	return nil
}

func (d *ReelDocument) checkOwned(p *Proxy) error {
	if !d.has(p) {
		label := "<nil>"
		if p != nil {
			label = p.label
		}
		return fmt.Errorf("%s: %w", label, ErrNotInDocument)
	}
	return nil
}

func (d *ReelDocument) selectAdded(p *Proxy) {
	if !d.opts.Editor.SelectObjectsOnAddition {
		return
	}
	d.mu.Lock()
	d.selected = []*Proxy{p}
	d.mu.Unlock()
}

// AddObject adds a plain object described by desc. An empty label is generated from the module id.
func (d *ReelDocument) AddObject(ctx context.Context, label string, desc *serialization.Object) (*Proxy, error) {
	if desc == nil {
		return nil, errors.New("add object: description is required")
	}
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()
	desc = desc.Clone()
	if label == "" {
		label = d.GenerateLabel(desc.ExportID())
	}
	p, err := NewProxy(label, desc, "", d)
	if err != nil {
		return nil, err
	}
	if err := d.insertObject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *ReelDocument) insertObject(ctx context.Context, p *Proxy) error {
	log := applog.WithOperation(d.log, "add_object")
	if err := d.checkFree(p.label); err != nil {
		return fmt.Errorf("add object: %w", err)
	}
	if ctl := d.LiveController(); ctl != nil {
		props := p.Properties()
		obj, err := ctl.AddObject(ctx, p.exportID, stage.ModuleName(p.exportID), func(o stage.Object) error {
			for _, k := range props.Keys() {
				v, _ := props.Get(k)
				if err := o.SetProperty(proppath.Keys(k), v); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("add object %q: %w", p.label, err)
		}
		p.SetStageObject(obj)
	}
	if err := d.putProxy(p); err != nil {
		return err
	}
	d.UndoManager().Register(undoAddObject, func(ctx context.Context) error { return d.removeObject(ctx, p) })
	d.rebuildSerialization()
	d.dispatch(Event{Type: DidAddObject, Target: p})
	d.selectAdded(p)
	log.Debug("added", slog.String("label", p.label), slog.String("module", p.exportID))
	return nil
}

// RemoveObject removes p. Component proxies are removed like RemoveComponent does.
func (d *ReelDocument) RemoveObject(ctx context.Context, p *Proxy) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	return d.removeObject(ctx, p)
}

func (d *ReelDocument) removeObject(ctx context.Context, p *Proxy) error {
	if err := d.checkOwned(p); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	if p.IsComponent() {
		return d.removeComponent(ctx, p)
	}
	if ctl := d.LiveController(); ctl != nil {
		if live := p.StageObject(); live != nil {
			if err := ctl.RemoveObject(ctx, live); err != nil {
				return fmt.Errorf("remove object %q: %w", p.label, err)
			}
		}
	}
	p.SetStageObject(nil)
	d.deleteProxy(p)
	d.UndoManager().Register(undoRemoveObject, func(ctx context.Context) error { return d.insertObject(ctx, p) })
	d.rebuildSerialization()
	d.dispatch(Event{Type: DidRemoveObject, Target: p})
	d.log.Debug("removed", slog.String("label", p.label))
	return nil
}

// AddComponent adds a component. elementID and identifier default to the label. When no element
// with elementID exists, one is built from markup and appended to the owner element.
func (d *ReelDocument) AddComponent(ctx context.Context, label string, desc *serialization.Object, markup, elementID, identifier string) (*Proxy, error) {
	if desc == nil {
		return nil, errors.New("add component: description is required")
	}
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()
	desc = desc.Clone()
	if label == "" {
		label = d.GenerateLabel(desc.ExportID())
	}
	if elementID == "" {
		elementID = label
	}
	if identifier == "" {
		identifier = label
	}
	props := desc.EnsureProperties()
	props.Set("element", serialization.ElementRef{ID: elementID})
	props.Set("identifier", identifier)

	p, err := NewProxy(label, desc, "", d)
	if err != nil {
		return nil, err
	}
	p.Markup, p.ElementID = markup, elementID
	if err := d.insertComponent(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// placeElement puts p's template element into the document and returns a function undoing it.
func (d *ReelDocument) placeElement(p *Proxy) (*html.Node, func(), error) {
	el := p.Element()
	switch {
	case el != nil && el.Parent == nil && p.anchorParent != nil:
		if next := p.anchorNext; next != nil && next.Parent == p.anchorParent {
			p.anchorParent.InsertBefore(el, next)
		} else {
			p.anchorParent.AppendChild(el)
		}
		return el, func() { dom.Detach(el) }, nil
	case el != nil && el.Parent != nil:
		return el, func() {}, nil
	}
	if el = d.tpl.ElementByID(p.ElementID); el != nil {
		return el, func() {}, nil
	}
	owner, err := d.OwnerElement()
	if err != nil {
		return nil, nil, err
	}
	el, err = dom.ElementFromMarkup(p.Markup, p.ElementID)
	if err != nil {
		return nil, nil, err
	}
	dom.Append(owner, el)
	return el, func() { dom.Detach(el) }, nil
}

func (d *ReelDocument) insertComponent(ctx context.Context, p *Proxy) error {
	log := applog.WithOperation(d.log, "add_component")
	if err := d.checkFree(p.label); err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	el, unplace, err := d.placeElement(p)
	if err != nil {
		return fmt.Errorf("add component %q: %w", p.label, err)
	}
	if ctl := d.LiveController(); ctl != nil {
		identifier := p.label
		if v, ok := p.GetObjectProperty("identifier"); ok {
			if s, isString := v.(string); isString && s != "" {
				identifier = s
			}
		}
		markup := p.Markup
		if markup == "" {
			markup = dom.OuterHTML(el)
		}
		added, err := ctl.AddComponent(ctx, p.label, p.Serialization(), markup, p.ElementID, identifier)
		if err != nil {
			unplace()
			return fmt.Errorf("add component %q: %w", p.label, err)
		}
		p.SetStageObject(added.Component)
	}
	p.SetElement(el)
	p.anchorParent, p.anchorNext = nil, nil
	if err := d.putProxy(p); err != nil {
		unplace()
		return err
	}
	d.UndoManager().Register(undoAddComponent, func(ctx context.Context) error { return d.removeComponent(ctx, p) })
	d.rebuildSerialization()
	d.dispatch(Event{Type: DidAddComponent, Target: p})
	d.selectAdded(p)
	log.Debug("added", slog.String("label", p.label), slog.String("element", p.ElementID))
	return nil
}

// RemoveComponent removes a component and its template element. The element's markup is kept on
// the proxy so undo can put it back.
func (d *ReelDocument) RemoveComponent(ctx context.Context, p *Proxy) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	return d.removeComponent(ctx, p)
}

func (d *ReelDocument) removeComponent(ctx context.Context, p *Proxy) error {
	if err := d.checkOwned(p); err != nil {
		return fmt.Errorf("remove component: %w", err)
	}
	if ctl := d.LiveController(); ctl != nil {
		if comp, ok := p.StageObject().(stage.Component); ok {
			if _, err := ctl.RemoveComponent(ctx, comp, nil); err != nil {
				return fmt.Errorf("remove component %q: %w", p.label, err)
			}
		}
	}
	p.SetStageObject(nil)
	if el := p.Element(); el != nil {
		p.Markup = dom.OuterHTML(el)
		if id := dom.MontageID(el); id != "" {
			p.ElementID = id
		}
		p.anchorParent, p.anchorNext = el.Parent, el.NextSibling
		dom.Detach(el)
	}
	d.deleteProxy(p)
	d.UndoManager().Register(undoRemoveComponent, func(ctx context.Context) error { return d.insertComponent(ctx, p) })
	d.rebuildSerialization()
	d.dispatch(Event{Type: DidRemoveComponent, Target: p})
	d.log.Debug("component removed", slog.String("label", p.label))
	return nil
}

// SetOwnedObjectProperty sets property on p, live first when attached.
func (d *ReelDocument) SetOwnedObjectProperty(ctx context.Context, p *Proxy, property string, value any) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	return d.setOwnedObjectProperty(ctx, p, property, value)
}

func (d *ReelDocument) setOwnedObjectProperty(ctx context.Context, p *Proxy, property string, value any) error {
	if err := d.checkOwned(p); err != nil {
		return fmt.Errorf("set %q: %w", property, err)
	}
	path, err := proppath.Parse(property)
	if err != nil {
		return err
	}
	if err := serialization.Assign(p.Properties(), path, value); err != nil {
		return fmt.Errorf("set %q on %s: %w", property, p.label, err)
	}
	restore, prev, had := p.revertPoint(path)
	if ctl := d.LiveController(); ctl != nil {
		if live := p.StageObject(); live != nil {
			if err := ctl.SetComponentProperty(ctx, live, property, value); err != nil {
				return fmt.Errorf("set %q on %s: %w", property, p.label, err)
			}
		}
	}
	if err := p.setLocal(path, value, true); err != nil {
		return err
	}
	inverse := func(ctx context.Context) error { return d.unsetOwnedObjectProperty(ctx, p, restore) }
	if had {
		inverse = func(ctx context.Context) error { return d.setOwnedObjectProperty(ctx, p, restore, prev) }
	}
	d.UndoManager().RegisterEntry(undo.Entry{Label: undoSetProperty, Op: inverse, CoalesceKey: p.label + "\x00" + property})
	d.rebuildSerialization()
	d.dispatch(Event{Type: DidSetObjectProperty, Target: p, Property: property, Value: value})
	return nil
}

// unsetOwnedObjectProperty reverts a set of a property that did not exist before.
func (d *ReelDocument) unsetOwnedObjectProperty(ctx context.Context, p *Proxy, property string) error {
	if err := d.checkOwned(p); err != nil {
		return err
	}
	path, err := proppath.Parse(property)
	if err != nil {
		return err
	}
	prev, had := p.GetObjectProperty(property)
	if !had {
		return nil
	}
	if ctl := d.LiveController(); ctl != nil {
		if live := p.StageObject(); live != nil {
			if err := ctl.SetComponentProperty(ctx, live, property, nil); err != nil {
				return fmt.Errorf("unset %q on %s: %w", property, p.label, err)
			}
		}
	}
	p.deleteObjectProperty(path)
	if p.PropertyChangeDispatchingEnabled() {
		p.emit(Event{Type: DidChangeObjectProperty, Target: p, Property: property})
	}
	d.UndoManager().Register(undoSetProperty, func(ctx context.Context) error {
		return d.setOwnedObjectProperty(ctx, p, property, prev)
	})
	d.rebuildSerialization()
	d.dispatch(Event{Type: DidSetObjectProperty, Target: p, Property: property})
	return nil
}

// DefineObjectBinding binds sourcePath of source to boundPath of bound.
func (d *ReelDocument) DefineObjectBinding(ctx context.Context, source *Proxy, sourcePath string, bound *Proxy, boundPath string, oneWay bool, converter *Proxy) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	if err := d.checkOwned(source); err != nil {
		return fmt.Errorf("define binding: %w", err)
	}
	if !d.has(bound) || (converter != nil && !d.has(converter)) {
		return fmt.Errorf("define binding %s.%s: %w: bound object or converter not in document", source.label, sourcePath, ErrResolution)
	}
	if sourcePath == "" || boundPath == "" {
		return fmt.Errorf("define binding: %w: empty path", ErrInvalidBinding)
	}
	b := serialization.Binding{OneWay: oneWay, Source: serialization.FormatSource(bound.label, boundPath)}
	if converter != nil {
		b.Converter = converter.label
	}
	return d.defineBinding(ctx, source, sourcePath, b)
}

func (d *ReelDocument) defineBinding(ctx context.Context, source *Proxy, path string, b serialization.Binding) error {
	if err := d.checkOwned(source); err != nil {
		return err
	}
	prev, had := source.Binding(path)
	if err := source.DefineObjectBinding(path, b); err != nil {
		return err
	}
	inverse := func(ctx context.Context) error { return d.cancelBinding(ctx, source, path) }
	if had {
		inverse = func(ctx context.Context) error { return d.defineBinding(ctx, source, path, prev) }
	}
	d.UndoManager().Register(undoDefineBinding, inverse)
	d.rebuildSerialization()
	d.dispatch(Event{Type: DidDefineBinding, Target: source, Property: path, Binding: d.bindingInfo(path, b)})
	return nil
}

// CancelObjectBinding removes the binding at sourcePath of source.
func (d *ReelDocument) CancelObjectBinding(ctx context.Context, source *Proxy, sourcePath string) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	return d.cancelBinding(ctx, source, sourcePath)
}

func (d *ReelDocument) cancelBinding(ctx context.Context, source *Proxy, path string) error {
	if err := d.checkOwned(source); err != nil {
		return fmt.Errorf("cancel binding: %w", err)
	}
	b, ok := source.Binding(path)
	if !ok {
		return fmt.Errorf("cancel binding %s.%s: %w: no binding", source.label, path, ErrInvalidBinding)
	}
	label, _, err := serialization.ParseSource(b.Source)
	if err != nil {
		return fmt.Errorf("cancel binding %s.%s: %w: %w", source.label, path, ErrInvalidBinding, err)
	}
	if d.EditingProxy(label) == nil {
		return fmt.Errorf("cancel binding %s.%s: %w: unknown object %q", source.label, path, ErrResolution, label)
	}
	if b.Converter != "" && d.EditingProxy(b.Converter) == nil {
		return fmt.Errorf("cancel binding %s.%s: %w: unknown converter %q", source.label, path, ErrResolution, b.Converter)
	}
	if _, err := source.CancelObjectBinding(path); err != nil {
		return err
	}
	d.UndoManager().Register(undoCancelBinding, func(ctx context.Context) error { return d.defineBinding(ctx, source, path, b) })
	d.rebuildSerialization()
	d.dispatch(Event{Type: DidDeleteBinding, Target: source, Property: path, Binding: d.bindingInfo(path, b)})
	return nil
}

func (d *ReelDocument) bindingInfo(path string, b serialization.Binding) *BindingInfo {
	info := &BindingInfo{SourcePath: path, OneWay: b.OneWay}
	if label, boundPath, err := serialization.ParseSource(b.Source); err == nil {
		info.Bound = d.EditingProxy(label)
		info.BoundPath = boundPath
	}
	if b.Converter != "" {
		info.Converter = d.EditingProxy(b.Converter)
	}
	return info
}
