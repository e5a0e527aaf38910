/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	applog "reeleditor/internal/log"
	"reeleditor/internal/stage"
)

// Doc is what the Controller tracks.
type Doc interface {
	URL() string
	Close() error
}

// Opener creates and loads the document for url.
type Opener func(ctx context.Context, url string) (Doc, error)

// Phase tells observers whether the current document is about to change or has changed.
type Phase int

const (
	Before Phase = iota
	After
)

func (p Phase) String() string {
	if p == Before {
		return "before"
	}
	return "after"
}

// Observer receives the current document before and after each change.
type Observer func(phase Phase, doc Doc)

// Controller tracks open documents by url and which one is current. Only the most recently
// requested url can become current; an older load still in flight is superseded.
type Controller struct {
	open Opener
	log  *slog.Logger

	mu        sync.Mutex
	docs      []Doc
	byURL     map[string]Doc
	current   Doc
	latestURL string
	gen       uint64
	cancel    context.CancelCauseFunc
	observers map[int]Observer
	nextObs   int
}

func NewController(open Opener) *Controller {
	return &Controller{
		open:      open,
		log:       applog.WithComponent("document"),
		byURL:     map[string]Doc{},
		observers: map[int]Observer{},
	}
}

// OpenURL returns the open document for url or loads it. While a new url is loading there is no
// current document.
func (c *Controller) OpenURL(ctx context.Context, url string) (Doc, error) {
	log := applog.WithOperation(c.log, "open").With(slog.String("url", url))
	c.mu.Lock()
	if doc, ok := c.byURL[url]; ok {
		c.latestURL = url
		if c.cancel != nil {
			c.cancel(stage.ErrLoadSuperseded)
			c.cancel = nil
		}
		c.gen++
		c.mu.Unlock()
		c.setCurrent(doc)
		return doc, nil
	}
	clearCurrent := c.current == nil || c.current.URL() != url
	c.latestURL = url
	if c.cancel != nil {
		c.cancel(stage.ErrLoadSuperseded)
	}
	lctx, cancel := context.WithCancelCause(ctx)
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel(nil)

	if clearCurrent {
		c.setCurrent(nil)
	}

	doc, err := c.open(lctx, url)

	c.mu.Lock()
	superseded := c.gen != gen || errors.Is(context.Cause(lctx), stage.ErrLoadSuperseded)
	if c.gen == gen {
		c.cancel = nil
	}
	if err != nil || superseded {
		c.mu.Unlock()
		if doc != nil {
			_ = doc.Close()
		}
		if superseded {
			log.Debug("open superseded")
			return nil, fmt.Errorf("open %s: %w", url, stage.ErrLoadSuperseded)
		}
		log.Warn("open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	c.addLocked(doc)
	c.mu.Unlock()
	c.setCurrent(doc)
	log.Info("opened")
	return doc, nil
}

// DocumentForURL returns the open document for url, or nil.
func (c *Controller) DocumentForURL(url string) Doc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byURL[url]
}

// AddDocument tracks doc unless a document with the same url is already open.
func (c *Controller) AddDocument(doc Doc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(doc)
}

func (c *Controller) addLocked(doc Doc) {
	if _, ok := c.byURL[doc.URL()]; ok {
		return
	}
	c.docs = append(c.docs, doc)
	c.byURL[doc.URL()] = doc
}

// RemoveDocument untracks and closes doc.
func (c *Controller) RemoveDocument(doc Doc) error {
	c.mu.Lock()
	idx := -1
	for i, d := range c.docs {
		if d == doc {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return nil
	}
	c.docs = append(c.docs[:idx], c.docs[idx+1:]...)
	delete(c.byURL, doc.URL())
	wasCurrent := c.current == doc
	c.mu.Unlock()
	if wasCurrent {
		c.setCurrent(nil)
	}
	return doc.Close()
}

// Documents returns the open documents in opening order.
func (c *Controller) Documents() []Doc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Doc(nil), c.docs...)
}

func (c *Controller) CurrentDocument() Doc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ObserveCurrentDocument registers fn and returns a function that unregisters it.
func (c *Controller) ObserveCurrentDocument(fn Observer) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) setCurrent(doc Doc) {
	c.mu.Lock()
	old := c.current
	if old == doc {
		c.mu.Unlock()
		return
	}
	obs := c.observersLocked()
	c.mu.Unlock()

	for _, fn := range obs {
		fn(Before, old)
	}
	c.mu.Lock()
	c.current = doc
	c.mu.Unlock()
	for _, fn := range obs {
		fn(After, doc)
	}
}

func (c *Controller) observersLocked() []Observer {
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Observer, len(ids))
	for i, id := range ids {
		out[i] = c.observers[id]
	}
	return out
}
