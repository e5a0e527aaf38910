/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package controller performs the live side effects of editing operations against a loaded
// stage session: instantiating and destroying objects, inserting component elements and writing
// live properties. It is the only code that mutates the live tree and its document.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"reeleditor/internal/dom"
	applog "reeleditor/internal/log"
	"reeleditor/internal/proppath"
	"reeleditor/internal/serialization"
	"reeleditor/internal/stage"
)

// ErrMissingLabel is returned when an operation needs a label and none was given.
var ErrMissingLabel = errors.New("missing label")

// AddedComponent is the result of AddComponent.
type AddedComponent struct {
	Label         string
	Serialization *serialization.Object
	Component     stage.Component
}

// EditingController drives one stage session. Calls are not serialized here; callers must not
// overlap mutations of the same session.
type EditingController struct {
	session *stage.Session
	log     *slog.Logger
}

func New(session *stage.Session) *EditingController {
	return &EditingController{session: session, log: applog.WithComponent("controller")}
}

func (c *EditingController) Session() *stage.Session { return c.session }

func (c *EditingController) Owner() stage.Component { return c.session.Owner }

// OwnerElement returns the element of the owner component, or nil.
func (c *EditingController) OwnerElement() *html.Node {
	if c.session.Owner == nil {
		return nil
	}
	return c.session.Owner.Element()
}

// ComponentForElement returns the live component backed by n, or nil.
func (c *EditingController) ComponentForElement(n *html.Node) stage.Component {
	if n == nil {
		return nil
	}
	return c.session.Context.ComponentForElement(n)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// nextIdentifier returns base followed by one more than the highest numeric suffix already used
// with that base. Gaps left by removed objects are not reused.
func (c *EditingController) nextIdentifier(base string) string {
	re := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(base) + `(\d+)$`)
	max := 0
	for _, o := range c.session.Objects() {
		for _, id := range []string{o.Identifier(), o.Label()} {
			if m := re.FindStringSubmatch(id); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n > max {
					max = n
				}
			}
		}
	}
	return base + strconv.Itoa(max+1)
}

// AddObject instantiates moduleRef, names it after name and hands it to init before it joins the
// owner. An init failure destroys the new instance.
func (c *EditingController) AddObject(ctx context.Context, moduleRef, name string, init func(stage.Object) error) (stage.Object, error) {
	log := applog.WithOperation(c.log, "add_object")
	if strings.TrimSpace(name) == "" {
		name = stage.ModuleName(moduleRef)
	}
	id := c.nextIdentifier(lowerFirst(name))
	inst, err := c.session.Context.Instantiate(ctx, moduleRef, id)
	if err != nil {
		return nil, fmt.Errorf("add object %q: %w", moduleRef, err)
	}
	inst.SetIdentifier(id)
	if init != nil {
		if err := init(inst); err != nil {
			inst.Destroy()
			return nil, fmt.Errorf("add object %q: %w", moduleRef, err)
		}
	}
	if c.session.Owner != nil {
		inst.SetOwner(c.session.Owner)
	}
	c.session.Adopt(inst.Label(), inst)
	log.Debug("object added", slog.String("module", moduleRef), slog.String("identifier", id))
	return inst, nil
}

// RemoveObject destroys a live object.
func (c *EditingController) RemoveObject(ctx context.Context, obj stage.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.owns(obj) {
		return fmt.Errorf("remove object: %w: object is not part of this session", stage.ErrResolution)
	}
	obj.Destroy()
	c.session.Forget(obj.Label())
	c.log.Debug("object removed", slog.String("label", obj.Label()))
	return nil
}

// AddComponent instantiates desc as label. The element tagged elementID is looked up in the live
// document, or built from markup and appended to the owner element.
func (c *EditingController) AddComponent(ctx context.Context, label string, desc *serialization.Object, markup, elementID, identifier string) (AddedComponent, error) {
	log := applog.WithOperation(c.log, "add_component")
	if label == "" {
		return AddedComponent{}, ErrMissingLabel
	}
	owner := c.session.Owner
	if owner == nil || owner.Element() == nil {
		return AddedComponent{}, fmt.Errorf("add component %q: %w: owner has no element", label, stage.ErrResolution)
	}
	if elementID == "" {
		elementID = label
	}
	if identifier == "" {
		identifier = label
	}

	doc := c.session.Document()
	el := dom.FindByID(doc, elementID)
	var created *html.Node
	if el == nil {
		var err error
		if el, err = dom.ElementFromMarkup(markup, elementID); err != nil {
			return AddedComponent{}, fmt.Errorf("add component %q: %w", label, err)
		}
		dom.Append(owner.Element(), el)
		created = el
	}

	desc = desc.Clone()
	props := desc.EnsureProperties()
	props.Set("element", serialization.ElementRef{ID: elementID})
	props.Set("identifier", identifier)

	inst, err := c.session.Context.Deserialize(ctx, label, desc, doc)
	if err != nil {
		dom.Detach(created)
		return AddedComponent{}, fmt.Errorf("add component %q: %w", label, err)
	}
	inst.SetOwner(owner)
	if err := c.session.ParentFor(el).AddChild(inst); err != nil {
		inst.Destroy()
		dom.Detach(created)
		return AddedComponent{}, fmt.Errorf("add component %q: %w", label, err)
	}
	inst.MarkNeedsDraw()
	c.session.Adopt(label, inst)
	log.Debug("component added", slog.String("label", label), slog.String("element", elementID))
	return AddedComponent{Label: label, Serialization: desc, Component: inst}, nil
}

// RemoveComponent detaches comp and its element and returns the element. When originalElement is
// given it takes the removed element's place.
func (c *EditingController) RemoveComponent(ctx context.Context, comp stage.Component, originalElement *html.Node) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.owns(comp) {
		return nil, fmt.Errorf("remove component: %w: component is not part of this session", stage.ErrResolution)
	}
	if parent := comp.Parent(); parent != nil {
		if err := parent.RemoveChild(comp); err != nil {
			return nil, fmt.Errorf("remove component %q: %w", comp.Label(), err)
		}
	}
	el := comp.Element()
	if el != nil {
		if originalElement != nil && el.Parent != nil {
			dom.Replace(el, originalElement)
		} else {
			dom.Detach(el)
		}
	}
	comp.Destroy()
	c.session.Forget(comp.Label())
	c.log.Debug("component removed", slog.String("label", comp.Label()))
	return el, nil
}

// SetComponentProperty writes a live property of an object owned by this session.
func (c *EditingController) SetComponentProperty(ctx context.Context, obj stage.Object, property string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.owns(obj) {
		return fmt.Errorf("set %q: %w: object is not part of this session", property, stage.ErrResolution)
	}
	p, err := proppath.Parse(property)
	if err != nil {
		return err
	}
	return obj.SetProperty(p, value)
}

func (c *EditingController) owns(obj stage.Object) bool {
	if obj == nil || !obj.Alive() {
		return false
	}
	cur, ok := c.session.Object(obj.Label())
	return ok && cur == obj
}

// Export serializes the live tree: the owner and every object of the session.
func (c *EditingController) Export() (*serialization.Graph, error) {
	g := serialization.NewGraph()
	objs := c.session.Objects()
	labels := make([]string, 0, len(objs))
	for l := range objs {
		labels = append(labels, l)
	}
	serialization.SortLabels(labels)
	for _, l := range labels {
		o := objs[l]
		if !o.Alive() {
			continue
		}
		desc := serialization.NewObject(serialization.TypePrototype, o.ExportID())
		if p, ok := o.(interface{ Properties() *serialization.Map }); ok {
			if props := p.Properties(); props.Len() > 0 {
				desc.SetUnit(&serialization.PropertiesUnit{Values: props})
			}
		}
		if comp, ok := o.(stage.Component); ok && comp.Element() != nil {
			if id := dom.MontageID(comp.Element()); id != "" {
				desc.EnsureProperties().Set("element", serialization.ElementRef{ID: id})
			}
		}
		if b, ok := o.(stage.Binder); ok {
			live := b.Bindings()
			if len(live) > 0 {
				paths := make([]string, 0, len(live))
				for p := range live {
					paths = append(paths, p)
				}
				sort.Strings(paths)
				bu := desc.EnsureBindings()
				for _, p := range paths {
					bu.Set(p, live[p])
				}
			}
		}
		g.Set(l, desc)
	}
	return g, nil
}
