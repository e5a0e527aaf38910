/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package serialization

import "encoding/json"

// ObjectRef is a reference to another labeled object: {"@": label}.
type ObjectRef struct {
	Label string
}

func (r ObjectRef) MarshalJSON() ([]byte, error) {
	return encode(map[string]string{"@": r.Label})
}

func (r *ObjectRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label string `json:"@"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Label = raw.Label
	return nil
}

// ElementRef is a reference to a template element by data-montage-id: {"#": id}.
type ElementRef struct {
	ID string
}

func (r ElementRef) MarshalJSON() ([]byte, error) {
	return encode(map[string]string{"#": r.ID})
}

func (r *ElementRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID string `json:"#"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = raw.ID
	return nil
}
