/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package stage models the live runtime a reel is edited against: object and component
// instances, one execution context per package, and the frame that loads a template into it.
//
// The implementation here is headless. Instances keep their properties in memory and their
// elements in a parsed copy of the template, which is enough to drive every editing operation
// without a browser.
package stage

import (
	"errors"

	"golang.org/x/net/html"

	"reeleditor/internal/proppath"
	"reeleditor/internal/serialization"
)

var (
	// ErrResolution is returned when a module, object or element cannot be located.
	ErrResolution = errors.New("resolution error")
	// ErrLoadSuperseded is the cancellation cause of a load preempted by a newer one.
	ErrLoadSuperseded = errors.New("load superseded by a newer request")
	// ErrDestroyed is returned when a destroyed instance is used.
	ErrDestroyed = errors.New("stage object has been destroyed")
	ErrClosed    = errors.New("stage context closed")
)

// Object is a live instance.
type Object interface {
	Label() string
	ExportID() string
	Identifier() string
	SetIdentifier(id string)
	// Alive reports whether the instance can still be used.
	Alive() bool
	Property(path proppath.Path) (any, bool)
	SetProperty(path proppath.Path, value any) error
	Destroy()
}

// Component is an Object backed by an element.
type Component interface {
	Object
	Element() *html.Node
	SetElement(el *html.Node)
	Owner() Component
	SetOwner(owner Component)
	Parent() Component
	Children() []Component
	AddChild(child Component) error
	RemoveChild(child Component) error
	NeedsDraw() bool
	MarkNeedsDraw()
}

// Binder is implemented by objects that can carry live bindings.
type Binder interface {
	DefineBinding(path string, b serialization.Binding) error
	CancelBinding(path string) error
	Bindings() map[string]serialization.Binding
}
