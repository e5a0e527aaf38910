/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package stage

import (
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"reeleditor/internal/proppath"
	"reeleditor/internal/serialization"
)

// Instance is the headless Object and Component implementation.
type Instance struct {
	ctx    *Context
	module Module
	label  string

	mu         sync.Mutex
	identifier string
	props      *serialization.Map
	bindings   map[string]serialization.Binding
	destroyed  bool
	element    *html.Node
	owner      Component
	parent     Component
	children   []Component
	needsDraw  bool
}

var (
	_ Component = (*Instance)(nil)
	_ Binder    = (*Instance)(nil)
)

func newInstance(c *Context, m Module, label string) *Instance {
	return &Instance{
		ctx:        c,
		module:     m,
		label:      label,
		identifier: label,
		props:      serialization.NewMap(),
		bindings:   map[string]serialization.Binding{},
	}
}

func (i *Instance) Label() string    { return i.label }
func (i *Instance) ExportID() string { return i.module.ID }
func (i *Instance) Module() Module   { return i.module }

func (i *Instance) Identifier() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.identifier
}

func (i *Instance) SetIdentifier(id string) {
	i.mu.Lock()
	i.identifier = id
	i.props.Set("identifier", id)
	i.mu.Unlock()
}

func (i *Instance) Alive() bool {
	if i == nil {
		return false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.destroyed
}

func (i *Instance) Property(path proppath.Path) (any, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := serialization.Lookup(i.props, path)
	return serialization.CloneValue(v), ok
}

func (i *Instance) SetProperty(path proppath.Path, value any) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return fmt.Errorf("set %s on %s: %w", path, i.label, ErrDestroyed)
	}
	if err := serialization.Assign(i.props, path, serialization.CloneValue(value)); err != nil {
		return fmt.Errorf("set %s on %s: %w", path, i.label, err)
	}
	if len(path) == 1 && path[0].Step() == "identifier" {
		if s, ok := value.(string); ok {
			i.identifier = s
		}
	}
	i.needsDraw = true
	return nil
}

// Properties returns a copy of the live properties.
func (i *Instance) Properties() *serialization.Map {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.props.Clone()
}

func (i *Instance) Destroy() {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return
	}
	i.destroyed = true
	el, parent := i.element, i.parent
	i.mu.Unlock()
	if parent != nil {
		_ = parent.RemoveChild(i)
	}
	if i.ctx != nil {
		i.ctx.forget(i, el)
	}
}

func (i *Instance) DefineBinding(path string, b serialization.Binding) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return ErrDestroyed
	}
	i.bindings[path] = b.Clone()
	return nil
}

func (i *Instance) CancelBinding(path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return ErrDestroyed
	}
	if _, ok := i.bindings[path]; !ok {
		return fmt.Errorf("%w: no binding at %q", ErrResolution, path)
	}
	delete(i.bindings, path)
	return nil
}

func (i *Instance) Bindings() map[string]serialization.Binding {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make(map[string]serialization.Binding, len(i.bindings))
	for k, v := range i.bindings {
		out[k] = v.Clone()
	}
	return out
}

func (i *Instance) Element() *html.Node {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.element
}

func (i *Instance) SetElement(el *html.Node) {
	i.mu.Lock()
	old := i.element
	i.element = el
	i.mu.Unlock()
	if i.ctx != nil {
		i.ctx.track(i, old, el)
	}
}

func (i *Instance) Owner() Component {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.owner
}

func (i *Instance) SetOwner(owner Component) {
	i.mu.Lock()
	i.owner = owner
	i.mu.Unlock()
}

func (i *Instance) Parent() Component {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.parent
}

func (i *Instance) setParent(p Component) {
	i.mu.Lock()
	i.parent = p
	i.mu.Unlock()
}

func (i *Instance) Children() []Component {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Component(nil), i.children...)
}

// AddChild attaches child, moving it away from a previous parent.
func (i *Instance) AddChild(child Component) error {
	if !i.Alive() {
		return ErrDestroyed
	}
	if prev := child.Parent(); prev != nil {
		if err := prev.RemoveChild(child); err != nil {
			return err
		}
	}
	i.mu.Lock()
	i.children = append(i.children, child)
	i.mu.Unlock()
	if ps, ok := child.(interface{ setParent(Component) }); ok {
		ps.setParent(i)
	}
	return nil
}

func (i *Instance) RemoveChild(child Component) error {
	i.mu.Lock()
	idx := -1
	for n, c := range i.children {
		if c == child {
			idx = n
			break
		}
	}
	if idx < 0 {
		i.mu.Unlock()
		return fmt.Errorf("%w: %s is not a child of %s", ErrResolution, child.Label(), i.label)
	}
	i.children = append(i.children[:idx], i.children[idx+1:]...)
	i.mu.Unlock()
	if ps, ok := child.(interface{ setParent(Component) }); ok {
		ps.setParent(nil)
	}
	return nil
}

func (i *Instance) NeedsDraw() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.needsDraw
}

func (i *Instance) MarkNeedsDraw() {
	i.mu.Lock()
	i.needsDraw = true
	i.mu.Unlock()
}
