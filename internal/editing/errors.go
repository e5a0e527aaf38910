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
	"errors"

	"reeleditor/internal/controller"
	"reeleditor/internal/document"
	"reeleditor/internal/stage"
)

var (
	// ErrMissingLabel is returned when a required label is empty.
	ErrMissingLabel = controller.ErrMissingLabel
	// ErrResolution is returned when a module, object or element cannot be located.
	ErrResolution = stage.ErrResolution
	// ErrInvalidBinding is returned when a binding is missing or its descriptor cannot be parsed.
	ErrInvalidBinding = errors.New("invalid binding")
	// ErrLoadSuperseded is returned by a load preempted by a newer one.
	ErrLoadSuperseded = stage.ErrLoadSuperseded
	// ErrWriteFailure wraps DataWriter errors.
	ErrWriteFailure = document.ErrWriteFailure
	// ErrDuplicateLabel is returned when adding an object under a label already in use.
	ErrDuplicateLabel = errors.New("label already in use")
	// ErrNotInDocument is returned when a proxy does not belong to the document.
	ErrNotInDocument = errors.New("proxy is not part of this document")
	// ErrInvalidLocation is returned by Save for locations outside a .reel directory.
	ErrInvalidLocation = errors.New(`components can only be saved into ".reel" directories`)
)
