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
	"context"

	"golang.org/x/net/html"

	"reeleditor/internal/controller"
	"reeleditor/internal/document"
	"reeleditor/internal/serialization"
	"reeleditor/internal/stage"
)

// DataWriter persists saved content.
type DataWriter = document.DataWriter

// DataWriterFunc adapts a function to DataWriter.
type DataWriterFunc = document.DataWriterFunc

// ReelSource reads the template markup of a reel.
type ReelSource interface {
	ReadReel(ctx context.Context, url string) (string, error)
}

// LiveController performs the live side effects of editing operations.
type LiveController interface {
	AddObject(ctx context.Context, moduleRef, name string, init func(stage.Object) error) (stage.Object, error)
	RemoveObject(ctx context.Context, obj stage.Object) error
	AddComponent(ctx context.Context, label string, desc *serialization.Object, markup, elementID, identifier string) (controller.AddedComponent, error)
	RemoveComponent(ctx context.Context, comp stage.Component, originalElement *html.Node) (*html.Node, error)
	SetComponentProperty(ctx context.Context, obj stage.Object, property string, value any) error
	ComponentForElement(n *html.Node) stage.Component
	OwnerElement() *html.Node
}

var _ LiveController = (*controller.EditingController)(nil)
