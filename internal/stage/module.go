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
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// Module is a resolved module id.
type Module struct {
	ID   string
	Name string
	// Component is true for reel modules, whose instances are backed by elements.
	Component bool
}

// Loader resolves module ids.
type Loader interface {
	Load(ctx context.Context, id string) (Module, error)
}

type LoaderFunc func(ctx context.Context, id string) (Module, error)

func (f LoaderFunc) Load(ctx context.Context, id string) (Module, error) { return f(ctx, id) }

var explicitName = regexp.MustCompile(`\[([^\]]+)\]$`)

// ModuleName derives an object name from a module id:
// "foo/bar" is "Bar", "x/foo-bar.reel" is "FooBar" and "x/y[Name]" is "Name".
func ModuleName(id string) string {
	if m := explicitName.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	base := id
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".reel")
	var b strings.Builder
	upper := true
	for _, r := range base {
		if r == '-' || r == '_' || r == '.' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsReel reports whether id names a reel module.
func IsReel(id string) bool {
	id = explicitName.ReplaceAllString(id, "")
	return strings.HasSuffix(id, ".reel")
}

func moduleFor(id string) Module {
	return Module{ID: id, Name: ModuleName(id), Component: IsReel(id)}
}

// OpenLoader resolves any non-empty id.
func OpenLoader() Loader {
	return LoaderFunc(func(ctx context.Context, id string) (Module, error) {
		if strings.TrimSpace(id) == "" {
			return Module{}, fmt.Errorf("%w: empty module id", ErrResolution)
		}
		return moduleFor(id), ctx.Err()
	})
}

// StaticLoader resolves only the ids it was given.
type StaticLoader struct {
	mu  sync.RWMutex
	ids map[string]bool
}

func NewStaticLoader(ids ...string) *StaticLoader {
	l := &StaticLoader{ids: map[string]bool{}}
	l.Add(ids...)
	return l
}

func (l *StaticLoader) Add(ids ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		l.ids[id] = true
	}
}

func (l *StaticLoader) Load(ctx context.Context, id string) (Module, error) {
	if err := ctx.Err(); err != nil {
		return Module{}, err
	}
	l.mu.RLock()
	ok := l.ids[id]
	l.mu.RUnlock()
	if !ok {
		return Module{}, fmt.Errorf("%w: cannot find module %q", ErrResolution, id)
	}
	return moduleFor(id), nil
}
