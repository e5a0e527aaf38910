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
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"reeleditor/internal/dom"
	applog "reeleditor/internal/log"
	"reeleditor/internal/serialization"
)

// Context is the execution context of one package. Module resolution is cached per context and
// every instance created through it is tracked until destroyed or until the context closes.
type Context struct {
	pkg    string
	loader Loader
	log    *slog.Logger

	mu        sync.Mutex
	modules   map[string]Module
	instances map[*Instance]struct{}
	elements  map[*html.Node]*Instance
	closed    bool
}

func NewContext(pkg string, loader Loader) *Context {
	if loader == nil {
		loader = OpenLoader()
	}
	return &Context{
		pkg:       pkg,
		loader:    loader,
		log:       applog.WithComponent("stage").With(slog.String("package", pkg)),
		modules:   map[string]Module{},
		instances: map[*Instance]struct{}{},
		elements:  map[*html.Node]*Instance{},
	}
}

func (c *Context) Package() string { return c.pkg }

// Require resolves a module id.
func (c *Context) Require(ctx context.Context, id string) (Module, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Module{}, ErrClosed
	}
	if m, ok := c.modules[id]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	m, err := c.loader.Load(ctx, id)
	if err != nil {
		return Module{}, fmt.Errorf("require %q: %w", id, err)
	}
	c.mu.Lock()
	c.modules[id] = m
	c.mu.Unlock()
	return m, nil
}

// Instantiate creates a new instance of module id.
func (c *Context) Instantiate(ctx context.Context, id, label string) (*Instance, error) {
	m, err := c.Require(ctx, id)
	if err != nil {
		return nil, err
	}
	inst := newInstance(c, m, label)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.instances[inst] = struct{}{}
	return inst, nil
}

// Deserialize instantiates a description. The "element" property is resolved against doc.
func (c *Context) Deserialize(ctx context.Context, label string, desc *serialization.Object, doc *html.Node) (*Instance, error) {
	if desc.ExportID() == "" {
		return nil, fmt.Errorf("%w: %q has no prototype or object id", ErrResolution, label)
	}
	var el *html.Node
	props := desc.Properties()
	if v, ok := props.Get("element"); ok {
		ref, isRef := v.(serialization.ElementRef)
		if !isRef {
			return nil, fmt.Errorf("%w: element of %q is not an element reference", ErrResolution, label)
		}
		if el = dom.FindByID(doc, ref.ID); el == nil {
			return nil, fmt.Errorf("%w: element %q of %q not found", ErrResolution, ref.ID, label)
		}
	}
	inst, err := c.Instantiate(ctx, desc.ExportID(), label)
	if err != nil {
		return nil, err
	}
	if props != nil {
		inst.props = props.Clone()
		if id, ok := props.Get("identifier"); ok {
			if s, ok := id.(string); ok {
				inst.identifier = s
			}
		}
	}
	if bu := desc.Bindings(); bu != nil {
		for _, p := range bu.Paths() {
			b, _ := bu.Get(p)
			inst.bindings[p] = b.Clone()
		}
	}
	if el != nil {
		inst.SetElement(el)
	}
	c.log.Debug("deserialized", slog.String("label", label), slog.String("module", desc.ExportID()))
	return inst, nil
}

// ComponentForElement returns the live component backed by n, or nil.
func (c *Context) ComponentForElement(n *html.Node) Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	if inst, ok := c.elements[n]; ok {
		return inst
	}
	return nil
}

// Len returns the number of live instances.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}

func (c *Context) track(inst *Instance, old, el *html.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old != nil && c.elements[old] == inst {
		delete(c.elements, old)
	}
	if el != nil {
		c.elements[el] = inst
	}
}

func (c *Context) forget(inst *Instance, el *html.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.instances, inst)
	if el != nil && c.elements[el] == inst {
		delete(c.elements, el)
	}
}

func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close destroys every instance still alive.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	live := make([]*Instance, 0, len(c.instances))
	for inst := range c.instances {
		live = append(live, inst)
	}
	c.mu.Unlock()
	for _, inst := range live {
		inst.Destroy()
	}
	c.log.Debug("context closed", slog.Int("destroyed", len(live)))
}
