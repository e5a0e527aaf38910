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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"reeleditor/internal/serialization"
)

type EventType string

const (
	DidAddObject              EventType = "didAddObject"
	DidRemoveObject           EventType = "didRemoveObject"
	DidAddComponent           EventType = "didAddComponent"
	DidRemoveComponent        EventType = "didRemoveComponent"
	DidSetObjectProperty      EventType = "didSetObjectProperty"
	DidDefineBinding          EventType = "didDefineBinding"
	DidDeleteBinding          EventType = "didDeleteBinding"
	DidChangeObjectProperty   EventType = "didChangeObjectProperty"
	DidChangeObjectProperties EventType = "didChangeObjectProperties"
)

// BindingInfo describes the binding carried by binding events.
type BindingInfo struct {
	SourcePath string
	Bound      *Proxy
	BoundPath  string
	OneWay     bool
	Converter  *Proxy
}

// Event is dispatched synchronously to subscribers after a change.
type Event struct {
	ID         uuid.UUID
	Type       EventType
	Timestamp  time.Time
	Target     *Proxy
	Property   string
	Value      any
	Properties *serialization.Map
	Undone     bool
	Redone     bool
	Binding    *BindingInfo
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id  int
	typ EventType
	fn  Handler
}

// dispatcher delivers events in subscription order.
type dispatcher struct {
	mu   sync.Mutex
	next int
	subs map[int]subscription
}

// subscribe registers fn for typ; an empty typ receives every event.
func (d *dispatcher) subscribe(typ EventType, fn Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subs == nil {
		d.subs = map[int]subscription{}
	}
	id := d.next
	d.next++
	d.subs[id] = subscription{id: id, typ: typ, fn: fn}
	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

func (d *dispatcher) dispatch(e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	d.mu.Lock()
	subs := make([]subscription, 0, len(d.subs))
	for _, s := range d.subs {
		if s.typ == "" || s.typ == e.Type {
			subs = append(subs, s)
		}
	}
	d.mu.Unlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	for _, s := range subs {
		s.fn(e)
	}
}

type pendingEvent struct {
	to *dispatcher
	e  Event
}

// outbox holds events raised while the document queue is held. They are delivered after the
// slot is released so handlers may call back into the document.
type outbox struct {
	mu      sync.Mutex
	holding bool
	events  []pendingEvent
}

func (o *outbox) hold() {
	o.mu.Lock()
	o.holding = true
	o.mu.Unlock()
}

// post queues e and reports whether it was queued.
func (o *outbox) post(to *dispatcher, e Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.holding {
		return false
	}
	o.events = append(o.events, pendingEvent{to: to, e: e})
	return true
}

func (o *outbox) take() []pendingEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.events
	o.events = nil
	o.holding = false
	return out
}
