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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelBase(t *testing.T) {
	cases := map[string]string{
		"foo/bar":          "bar",
		"x/foo-bar.reel":   "fooBar",
		"x/y[Name]":        "name",
		"ui/text.reel":     "text",
		"montage/ui/Thing": "thing",
	}
	for id, want := range cases {
		assert.Equal(t, want, LabelBase(id), id)
	}
}

func TestNextLabel(t *testing.T) {
	assert.Equal(t, "bar1", nextLabel("bar", nil))
	assert.Equal(t, "bar8", nextLabel("bar", []string{"bar2", "BAR7", "bar", "barx3", "foo9"}))
}
