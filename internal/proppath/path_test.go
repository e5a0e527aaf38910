/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package proppath

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldsAndCalls(t *testing.T) {
	p, err := Parse("properties.element.property('#')")
	require.NoError(t, err)
	require.Len(t, p, 3)
	assert.Equal(t, []string{"properties", "element", "#"}, p.Steps())
	assert.Equal(t, Call, p[2].Kind)
	assert.Equal(t, "properties.element.property('#')", p.String())
}

func TestParseQuotedKeysWithDots(t *testing.T) {
	p, err := Parse(`a.property("b.c").get('it\'s')`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b.c", "it's"}, p.Steps())
}

func TestHead(t *testing.T) {
	head, rest := MustParse("a.b").Head()
	assert.Equal(t, "a", head)
	assert.Equal(t, Keys("b"), rest)
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{"", "a..b", "a.", ".a", "a.call('x')", "property(x)", "property('x'", "property('x')b"} {
		_, err := Parse(expr)
		assert.Truef(t, errors.Is(err, ErrSyntax), "expected syntax error for %q, got %v", expr, err)
	}
}
