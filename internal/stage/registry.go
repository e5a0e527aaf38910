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
	"log/slog"
	"path"
	"strings"
	"sync"

	applog "reeleditor/internal/log"
)

// Registry owns one Context per package. Contexts are reference counted and closed when the
// last holder releases them.
type Registry struct {
	loader Loader
	log    *slog.Logger

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	ctx  *Context
	refs int
}

func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader:  loader,
		log:     applog.WithComponent("stage"),
		entries: map[string]*registryEntry{},
	}
}

// Acquire returns the context of pkg, creating it on first use.
func (r *Registry) Acquire(pkg string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[pkg]
	if !ok {
		e = &registryEntry{ctx: NewContext(pkg, r.loader)}
		r.entries[pkg] = e
		r.log.Debug("context created", slog.String("package", pkg))
	}
	e.refs++
	return e.ctx
}

// Release drops one reference to pkg's context.
func (r *Registry) Release(pkg string) {
	r.mu.Lock()
	e, ok := r.entries[pkg]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.entries, pkg)
	r.mu.Unlock()
	e.ctx.Close()
	r.log.Debug("context released", slog.String("package", pkg))
}

// Refs returns the number of holders of pkg's context.
func (r *Registry) Refs(pkg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[pkg]; ok {
		return e.refs
	}
	return 0
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// PackageOf returns the directory holding the reel at url, used as the package key when nothing
// better is known.
func PackageOf(url string) string {
	u := strings.TrimRight(url, "/")
	for dir := u; dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		if strings.HasSuffix(dir, ".reel") {
			return path.Dir(dir)
		}
	}
	return path.Dir(u)
}
