/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editing keeps an in-memory proxy graph of a reel's serialization in sync with the
// template, the live stage and the undo history.
//
// Every mutating operation of a ReelDocument runs through a single-flight queue: it performs the
// live side effect (when a stage session is attached), updates the proxies, registers its exact
// inverse with the undo manager, rewrites the template's serialization and finally dispatches an
// event. A failing step leaves proxies, undo history and serialization untouched.
package editing

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/semaphore"

	"reeleditor/internal/config"
	"reeleditor/internal/controller"
	"reeleditor/internal/document"
	"reeleditor/internal/dom"
	applog "reeleditor/internal/log"
	"reeleditor/internal/serialization"
	"reeleditor/internal/stage"
	"reeleditor/internal/template"
	"reeleditor/internal/undo"
)

// Options configure a ReelDocument.
type Options struct {
	Editor config.EditorConfig
	// Units serializes custom units. Nil writes them verbatim.
	Units UnitVisitor
}

// DefaultOptions uses the editor defaults of the application config.
func DefaultOptions() Options {
	return Options{Editor: config.Defaults().Editor}
}

// ReelDocument is the editing document of one reel.
type ReelDocument struct {
	*document.Document

	tpl    *template.Template
	opts   Options
	log    *slog.Logger
	queue  *semaphore.Weighted
	events dispatcher
	out    outbox

	mu            sync.RWMutex
	proxies       map[string]*Proxy
	selected      []*Proxy
	serialization string
	ctl           LiveController
	session       *stage.Session
	frame         *stage.Frame
}

// LoadReel reads the reel at url from src and opens it.
func LoadReel(ctx context.Context, url string, src ReelSource, opts Options) (*ReelDocument, error) {
	markup, err := src.ReadReel(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("load reel %s: %w", url, err)
	}
	tpl, err := template.Parse(markup)
	if err != nil {
		return nil, fmt.Errorf("load reel %s: %w", url, err)
	}
	return NewReelDocument(url, tpl, opts)
}

// NewReelDocument builds proxies for every object of tpl. The serialization is validated first.
func NewReelDocument(url string, tpl *template.Template, opts Options) (*ReelDocument, error) {
	if raw := strings.TrimSpace(tpl.ObjectsString()); raw != "" {
		if err := serialization.Validate([]byte(raw)); err != nil {
			return nil, fmt.Errorf("open %s: %w", url, err)
		}
	}
	graph, err := tpl.Objects()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	um := undo.NewManager(undo.Config{MaxDepth: opts.Editor.UndoMaxDepth, MinInterval: opts.Editor.CoalesceWindow()})
	d := &ReelDocument{
		Document: document.New(url, um),
		tpl:      tpl,
		opts:     opts,
		log:      applog.WithComponent("editing").With(slog.String("url", url)),
		queue:    semaphore.NewWeighted(1),
		proxies:  make(map[string]*Proxy, graph.Len()),
	}
	for _, label := range graph.Labels() {
		desc, _ := graph.Get(label)
		p, err := NewProxy(label, desc, "", d)
		if err != nil {
			return nil, err
		}
		if ref, ok := p.GetObjectProperty("element"); ok {
			if el, isRef := ref.(serialization.ElementRef); isRef {
				p.ElementID = el.ID
				p.SetElement(tpl.ElementByID(el.ID))
			}
		}
		d.proxies[label] = p
	}
	d.rebuildSerialization()
	d.log.Debug("opened", slog.Int("objects", len(d.proxies)))
	return d, nil
}

// Attach loads the template into frame under pkg and associates proxies with the live objects.
func (d *ReelDocument) Attach(ctx context.Context, frame *stage.Frame, pkg string) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	s, err := frame.Load(ctx, pkg, d.tpl)
	if err != nil {
		return fmt.Errorf("attach %s: %w", d.URL(), err)
	}
	d.mu.Lock()
	d.frame = frame
	d.mu.Unlock()
	d.AssociateWithLiveRepresentations(s)
	return nil
}

// AssociateWithLiveRepresentations links every proxy to the live object with the same label and
// routes later operations through a controller for s.
func (d *ReelDocument) AssociateWithLiveRepresentations(s *stage.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session = s
	d.ctl = controller.New(s)
	for label, p := range d.proxies {
		if o, ok := s.Object(label); ok {
			p.SetStageObject(o)
		} else {
			p.SetStageObject(nil)
		}
	}
}

// SetLiveController replaces the controller used for live side effects. Nil detaches the document.
func (d *ReelDocument) SetLiveController(ctl LiveController) {
	d.mu.Lock()
	d.ctl = ctl
	d.mu.Unlock()
}

func (d *ReelDocument) LiveController() LiveController {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ctl
}

// Session returns the attached stage session, or nil.
func (d *ReelDocument) Session() *stage.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.session
}

// Subscribe registers fn for document events. An empty typ receives all of them.
// Events raised by an operation are delivered after it finishes, before it returns, so
// handlers may start other operations on the document.
func (d *ReelDocument) Subscribe(typ EventType, fn Handler) func() {
	return d.events.subscribe(typ, fn)
}

func (d *ReelDocument) acquire(ctx context.Context) error {
	if err := d.queue.Acquire(ctx, 1); err != nil {
		return err
	}
	d.out.hold()
	return nil
}

func (d *ReelDocument) release() {
	pending := d.out.take()
	d.queue.Release(1)
	for _, pe := range pending {
		pe.to.dispatch(pe.e)
	}
}

// emit delivers e to to now, or once the queue slot is released.
func (d *ReelDocument) emit(to *dispatcher, e Event) {
	if !d.out.post(to, e) {
		to.dispatch(e)
	}
}

// EditingProxies returns the proxies in label order.
func (d *ReelDocument) EditingProxies() []*Proxy {
	d.mu.RLock()
	defer d.mu.RUnlock()
	labels := d.labelsLocked()
	serialization.SortLabels(labels)
	out := make([]*Proxy, len(labels))
	for i, l := range labels {
		out[i] = d.proxies[l]
	}
	return out
}

// EditingProxyMap returns a copy of the label to proxy table.
func (d *ReelDocument) EditingProxyMap() map[string]*Proxy {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*Proxy, len(d.proxies))
	for k, v := range d.proxies {
		out[k] = v
	}
	return out
}

// EditingProxy returns the proxy labeled label, or nil.
func (d *ReelDocument) EditingProxy(label string) *Proxy {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.proxies[label]
}

// EditingProxyForObject returns the proxy associated with a live object, or nil.
func (d *ReelDocument) EditingProxyForObject(o stage.Object) *Proxy {
	if o == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.proxies {
		p.mu.RLock()
		live := p.live
		p.mu.RUnlock()
		if live == o {
			return p
		}
	}
	return nil
}

func (d *ReelDocument) labelsLocked() []string {
	labels := make([]string, 0, len(d.proxies))
	for l := range d.proxies {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func (d *ReelDocument) has(p *Proxy) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return p != nil && d.proxies[p.label] == p
}

// Serialization returns the current serialization string.
func (d *ReelDocument) Serialization() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.serialization
}

// rebuildSerialization writes the proxies back into the template.
func (d *ReelDocument) rebuildSerialization() {
	d.mu.Lock()
	defer d.mu.Unlock()
	graph := NewProxyVisitor(d.opts.Units).Visit(d.proxies)
	d.serialization = graph.String()
	d.tpl.SetObjectsString(d.serialization)
}

func (d *ReelDocument) HTMLDocument() *html.Node { return d.tpl.Document() }

func (d *ReelDocument) Template() *template.Template { return d.tpl }

// OwnerElement returns the template element of the owner component.
func (d *ReelDocument) OwnerElement() (*html.Node, error) {
	owner := d.EditingProxy(serialization.OwnerLabel)
	var id string
	if owner != nil {
		if v, ok := owner.GetPath("properties.element.property('#')"); ok {
			id, _ = v.(string)
		}
	}
	if id == "" {
		return nil, fmt.Errorf("%w: owner component has no element specified", ErrResolution)
	}
	el := dom.FindByID(d.tpl.Document(), id)
	if el == nil {
		return nil, fmt.Errorf("%w: owner component element %q could not be found", ErrResolution, id)
	}
	return el, nil
}

var reelLocation = regexp.MustCompile(`^.+/([^/]+)\.reel$`)

// Save writes the template html to <location>/<name>.html. location must be a .reel directory.
func (d *ReelDocument) Save(ctx context.Context, location string, w DataWriter) error {
	location = strings.TrimRight(location, "/")
	m := reelLocation.FindStringSubmatch(location)
	if m == nil {
		return fmt.Errorf("save %s: %w", location, ErrInvalidLocation)
	}
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	d.rebuildSerialization()
	markup, err := d.tpl.HTML()
	if err != nil {
		return fmt.Errorf("save %s: %w", location, err)
	}
	return d.Document.Save(ctx, []byte(markup), location+"/"+m[1]+".html", w)
}

// Undo reverts the last change.
func (d *ReelDocument) Undo(ctx context.Context) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	return d.Document.Undo(ctx)
}

// Redo reapplies the last undone change.
func (d *ReelDocument) Redo(ctx context.Context) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	return d.Document.Redo(ctx)
}

// Close tears down the live session, releasing the package context.
func (d *ReelDocument) Close() error {
	d.mu.Lock()
	frame, session := d.frame, d.session
	d.frame, d.session, d.ctl = nil, nil, nil
	d.mu.Unlock()
	if frame != nil {
		frame.Close()
	} else if session != nil {
		session.Close()
	}
	for _, p := range d.EditingProxies() {
		p.SetStageObject(nil)
	}
	return d.Document.Close()
}
