/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"

	"reeleditor/internal/editing"
)

// step is one editing operation. Commands build a single step; apply reads a list from YAML.
type step struct {
	Op         string         `yaml:"op"`
	Label      string         `yaml:"label,omitempty"`
	Module     string         `yaml:"module,omitempty"`
	Markup     string         `yaml:"markup,omitempty"`
	Element    string         `yaml:"element,omitempty"`
	Identifier string         `yaml:"identifier,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
	Property   string         `yaml:"property,omitempty"`
	Value      any            `yaml:"value,omitempty"`
	Path       string         `yaml:"path,omitempty"`
	Bound      string         `yaml:"bound,omitempty"`
	BoundPath  string         `yaml:"bound_path,omitempty"`
	Converter  string         `yaml:"converter,omitempty"`
	OneWay     bool           `yaml:"one_way,omitempty"`
}

// run applies st to the session's document and returns a one-line report.
func (s *session) run(ctx context.Context, st step) (string, error) {
	d := s.doc
	switch st.Op {
	case "add-object":
		desc, err := describe(st.Module, st.Properties)
		if err != nil {
			return "", err
		}
		p, err := d.AddObject(ctx, st.Label, desc)
		if err != nil {
			return "", err
		}
		return "added " + p.Label(), nil
	case "add-component":
		desc, err := describe(st.Module, st.Properties)
		if err != nil {
			return "", err
		}
		p, err := d.AddComponent(ctx, st.Label, desc, st.Markup, st.Element, st.Identifier)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("added %s #%s", p.Label(), p.ElementID), nil
	case "remove":
		p, err := s.proxy(st.Label)
		if err != nil {
			return "", err
		}
		return "removed " + st.Label, d.RemoveObject(ctx, p)
	case "set":
		p, err := s.proxy(st.Label)
		if err != nil {
			return "", err
		}
		v := st.Value
		if _, isString := v.(string); !isString {
			if v, err = normalize(v); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("set %s.%s", st.Label, st.Property), d.SetOwnedObjectProperty(ctx, p, st.Property, v)
	case "bind":
		src, err := s.proxy(st.Label)
		if err != nil {
			return "", err
		}
		bound, err := s.proxy(st.Bound)
		if err != nil {
			return "", err
		}
		var conv *editing.Proxy
		if st.Converter != "" {
			if conv, err = s.proxy(st.Converter); err != nil {
				return "", err
			}
		}
		err = d.DefineObjectBinding(ctx, src, st.Path, bound, st.BoundPath, st.OneWay, conv)
		return fmt.Sprintf("bound %s.%s to %s.%s", st.Label, st.Path, st.Bound, st.BoundPath), err
	case "unbind":
		p, err := s.proxy(st.Label)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("unbound %s.%s", st.Label, st.Path), d.CancelObjectBinding(ctx, p, st.Path)
	case "undo":
		label := d.UndoLabel()
		if !d.CanUndo() {
			return "", fmt.Errorf("nothing to undo")
		}
		return "undid " + label, d.Undo(ctx)
	case "redo":
		label := d.RedoLabel()
		if !d.CanRedo() {
			return "", fmt.Errorf("nothing to redo")
		}
		return "redid " + label, d.Redo(ctx)
	default:
		return "", fmt.Errorf("unknown step %q", st.Op)
	}
}
