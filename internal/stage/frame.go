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
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	applog "reeleditor/internal/log"
	"reeleditor/internal/serialization"
	"reeleditor/internal/template"
)

// Session is a template loaded into a package context.
type Session struct {
	Package  string
	Context  *Context
	Template *template.Template
	Owner    Component

	mu        sync.Mutex
	objects   map[string]Object
	instances []*Instance
	release   func()
	closed    bool
}

// Document is the live copy of the template document.
func (s *Session) Document() *html.Node { return s.Template.Document() }

// Object returns the live object for label.
func (s *Session) Object(label string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[label]
	return o, ok
}

// Objects returns a copy of the label to object table.
func (s *Session) Objects() map[string]Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Object, len(s.objects))
	for k, v := range s.objects {
		out[k] = v
	}
	return out
}

// Adopt records an object created after the load so Close destroys it too.
func (s *Session) Adopt(label string, o Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[label] = o
	if inst, ok := o.(*Instance); ok {
		s.instances = append(s.instances, inst)
	}
}

// Forget drops label from the table.
func (s *Session) Forget(label string) {
	s.mu.Lock()
	delete(s.objects, label)
	s.mu.Unlock()
}

// Close destroys the session's instances and releases its package context.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	insts := s.instances
	s.instances = nil
	s.mu.Unlock()
	for _, inst := range insts {
		inst.Destroy()
	}
	if s.release != nil {
		s.release()
	}
}

func (s *Session) populate(ctx context.Context, tpl *template.Template, log *slog.Logger) error {
	graph, err := tpl.Objects()
	if err != nil {
		return err
	}
	for _, label := range graph.SortedLabels() {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}
		desc, _ := graph.Get(label)
		if desc.ExportID() == "" {
			log.Debug("skipping value without module", slog.String("label", label))
			continue
		}
		inst, err := s.Context.Deserialize(ctx, label, desc, tpl.Document())
		if err != nil {
			return fmt.Errorf("load %q: %w", label, err)
		}
		s.Adopt(label, inst)
	}
	if o, ok := s.objects[serialization.OwnerLabel].(Component); ok {
		s.Owner = o
	}
	if s.Owner == nil {
		return nil
	}
	for _, inst := range s.instances {
		if inst == s.Owner || inst.Element() == nil {
			continue
		}
		inst.SetOwner(s.Owner)
		if err := s.ParentFor(inst.Element()).AddChild(inst); err != nil {
			return err
		}
	}
	return nil
}

// ParentFor finds the component whose element is the closest ancestor of el, falling back to
// the owner.
func (s *Session) ParentFor(el *html.Node) Component {
	if el == nil {
		return s.Owner
	}
	for n := el.Parent; n != nil; n = n.Parent {
		if c := s.Context.ComponentForElement(n); c != nil {
			return c
		}
	}
	return s.Owner
}

// Frame loads templates into package contexts. A new Load supersedes the one in flight.
type Frame struct {
	registry *Registry
	log      *slog.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelCauseFunc
	current *Session
}

func NewFrame(reg *Registry) *Frame {
	return &Frame{registry: reg, log: applog.WithComponent("stage")}
}

// Load instantiates tpl in pkg's context. When a newer Load starts first, this one returns
// ErrLoadSuperseded and nothing it created stays alive. On success the previous session closes.
func (f *Frame) Load(ctx context.Context, pkg string, tpl *template.Template) (*Session, error) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel(ErrLoadSuperseded)
	}
	lctx, cancel := context.WithCancelCause(ctx)
	f.gen++
	gen := f.gen
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel(nil)

	live := tpl.Clone()
	s := &Session{
		Package:  pkg,
		Context:  f.registry.Acquire(pkg),
		Template: live,
		objects:  map[string]Object{},
		release:  func() { f.registry.Release(pkg) },
	}
	err := s.populate(lctx, live, f.log)

	f.mu.Lock()
	superseded := f.gen != gen || errors.Is(context.Cause(lctx), ErrLoadSuperseded)
	if err != nil || superseded {
		if f.gen == gen {
			f.cancel = nil
		}
		f.mu.Unlock()
		s.Close()
		if superseded {
			f.log.Debug("load superseded", slog.String("package", pkg))
			return nil, ErrLoadSuperseded
		}
		return nil, err
	}
	prev := f.current
	f.current = s
	f.cancel = nil
	f.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	f.log.Debug("loaded", slog.String("package", pkg), slog.Int("objects", len(s.Objects())))
	return s, nil
}

func (f *Frame) Current() *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Close cancels a pending load and closes the current session.
func (f *Frame) Close() {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel(ErrLoadSuperseded)
		f.cancel = nil
	}
	cur := f.current
	f.current = nil
	f.mu.Unlock()
	if cur != nil {
		cur.Close()
	}
}
