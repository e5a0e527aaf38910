/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package proppath parses property path expressions such as
//
//	properties.element.property('#')
//
// into a sequence of segments once, so callers never re-parse strings on every access.
// A segment is either a plain field or an indexed call (`property('key')`) whose key may contain
// characters a field cannot, like '#', '@' or '.'.
package proppath

import (
	"errors"
	"fmt"
	"strings"
)

var ErrSyntax = errors.New("proppath: syntax error")

type Kind int

const (
	Field Kind = iota
	Call
)

// Segment is one step of a path.
type Segment struct {
	Kind Kind
	// Name is the field name, or the call name ("property") for Call segments.
	Name string
	// Key is the call argument for Call segments.
	Key string
}

// Step returns the map key this segment addresses.
func (s Segment) Step() string {
	if s.Kind == Call {
		return s.Key
	}
	return s.Name
}

func (s Segment) String() string {
	if s.Kind == Call {
		return s.Name + "('" + strings.ReplaceAll(s.Key, "'", `\'`) + "')"
	}
	return s.Name
}

// Path is a parsed expression.
type Path []Segment

// Steps returns the keys addressed by the path in order.
func (p Path) Steps() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.Step()
	}
	return out
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Head returns the first step and the remaining path.
func (p Path) Head() (string, Path) {
	if len(p) == 0 {
		return "", nil
	}
	return p[0].Step(), p[1:]
}

// Keys builds a path of plain fields.
func Keys(keys ...string) Path {
	p := make(Path, len(keys))
	for i, k := range keys {
		p[i] = Segment{Kind: Field, Name: k}
	}
	return p
}

// Parse turns an expression into a Path. Supported call names: property, get.
func Parse(expr string) (Path, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrSyntax)
	}
	var (
		p   Path
		i   int
		n   = len(expr)
		err error
	)
	for i < n {
		start := i
		for i < n && expr[i] != '.' && expr[i] != '(' && expr[i] != ')' {
			i++
		}
		name := expr[start:i]
		if name == "" {
			return nil, fmt.Errorf("%w: empty segment at %d in %q", ErrSyntax, start, expr)
		}
		seg := Segment{Kind: Field, Name: name}
		if i < n && expr[i] == '(' {
			if name != "property" && name != "get" {
				return nil, fmt.Errorf("%w: unknown call %q in %q", ErrSyntax, name, expr)
			}
			seg.Kind = Call
			seg.Key, i, err = parseArgument(expr, i+1)
			if err != nil {
				return nil, err
			}
		}
		p = append(p, seg)
		if i == n {
			break
		}
		if expr[i] != '.' {
			return nil, fmt.Errorf("%w: unexpected %q at %d in %q", ErrSyntax, expr[i], i, expr)
		}
		i++
		if i == n {
			return nil, fmt.Errorf("%w: trailing '.' in %q", ErrSyntax, expr)
		}
	}
	return p, nil
}

// MustParse is Parse for constant expressions.
func MustParse(expr string) Path {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// parseArgument reads a quoted argument followed by ')', starting right after '('.
func parseArgument(expr string, i int) (string, int, error) {
	n := len(expr)
	if i >= n || (expr[i] != '\'' && expr[i] != '"') {
		return "", i, fmt.Errorf("%w: call argument must be quoted in %q", ErrSyntax, expr)
	}
	quote := expr[i]
	i++
	var b strings.Builder
	for i < n && expr[i] != quote {
		if expr[i] == '\\' && i+1 < n {
			i++
		}
		b.WriteByte(expr[i])
		i++
	}
	if i >= n {
		return "", i, fmt.Errorf("%w: unterminated string in %q", ErrSyntax, expr)
	}
	i++ // closing quote
	if i >= n || expr[i] != ')' {
		return "", i, fmt.Errorf("%w: missing ')' in %q", ErrSyntax, expr)
	}
	return b.String(), i + 1, nil
}
