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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"reeleditor/internal/config"
	"reeleditor/internal/dom"
	"reeleditor/internal/editing"
	"reeleditor/internal/serialization"
	"reeleditor/internal/storage"
	"reeleditor/internal/template"
)

// runStep opens the reel, applies st and saves.
func runStep(g *globals, cmd *cobra.Command, reel string, st step) error {
	ctx := cmd.Context()
	s, err := g.open(ctx, reel)
	if err != nil {
		return err
	}
	msg, err := s.run(ctx, st)
	if err != nil {
		s.close()
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return s.finish(ctx, cmd.OutOrStdout())
}

func newConfigCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and its sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			path, _ := config.ConfigPath()
			fmt.Fprintf(out, "# file: %s\n", path)
			b, err := yaml.Marshal(g.cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(out, string(b))
			for _, key := range []string{
				"editor.select_objects_on_addition", "editor.undo_max_depth", "editor.undo_coalesce_ms",
				"storage.backups", "storage.history", "storage.keep_revisions",
				"logging.level", "logging.format", "logging.source", "logging.file",
			} {
				if env, ok := config.EnvOverrideFor(key); ok {
					fmt.Fprintf(out, "# %s overridden by %s\n", key, env)
				}
			}
			return nil
		},
	}
}

func newNewCmd(g *globals) *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "new <reel>",
		Short: "Create an empty reel with an owner component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := absLocation(args[0])
			if err != nil {
				return err
			}
			path, _ := storage.ReelFile(loc)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if module == "" {
				rel, err := filepath.Rel(storage.PackageRoot(loc), loc)
				if err != nil {
					return err
				}
				module = filepath.ToSlash(rel)
			}
			owner := serialization.NewObject(serialization.TypePrototype, module)
			owner.SetUnit(&serialization.PropertiesUnit{Values: serialization.MapOf("element", serialization.ElementRef{ID: serialization.OwnerLabel})})
			graph := serialization.NewGraph()
			graph.Set(serialization.OwnerLabel, owner)

			tpl := template.New(graph.String())
			el, err := dom.ElementFromMarkup("<div></div>", serialization.OwnerLabel)
			if err != nil {
				return err
			}
			dom.Append(tpl.Body(), el)
			doc, err := editing.NewReelDocument(loc, tpl, g.options())
			if err != nil {
				return err
			}
			defer doc.Close()
			if g.dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), doc.Serialization())
				return nil
			}
			if err := doc.Save(cmd.Context(), loc, storage.NewFileWriter(g.cfg.Storage, nil)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "Module id of the owner (default: reel path relative to the package root)")
	return cmd
}

func newShowCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <reel>",
		Short: "List the objects of a reel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer s.close()
			if asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), s.doc.Serialization())
				return nil
			}
			printSummary(cmd.OutOrStdout(), s.doc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the serialization")
	return cmd
}

func newAddObjectCmd(g *globals) *cobra.Command {
	var st step
	var props string
	cmd := &cobra.Command{
		Use:   "add-object <reel> <module>",
		Short: "Add a plain object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st.Op, st.Module = "add-object", args[1]
			if err := yamlProps(props, &st); err != nil {
				return err
			}
			return runStep(g, cmd, args[0], st)
		},
	}
	cmd.Flags().StringVarP(&st.Label, "label", "l", "", "Label (generated from the module name when empty)")
	cmd.Flags().StringVarP(&props, "properties", "p", "", "Initial properties as a YAML or JSON object")
	return cmd
}

func newAddComponentCmd(g *globals) *cobra.Command {
	var st step
	var props string
	cmd := &cobra.Command{
		Use:   "add-component <reel> <module>",
		Short: "Add a component and its element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st.Op, st.Module = "add-component", args[1]
			if err := yamlProps(props, &st); err != nil {
				return err
			}
			return runStep(g, cmd, args[0], st)
		},
	}
	cmd.Flags().StringVarP(&st.Label, "label", "l", "", "Label (generated from the module name when empty)")
	cmd.Flags().StringVarP(&props, "properties", "p", "", "Initial properties as a YAML or JSON object")
	cmd.Flags().StringVar(&st.Markup, "markup", "", "Element markup used when no element with the id exists")
	cmd.Flags().StringVar(&st.Element, "element", "", "data-montage-id of the element (default: label)")
	cmd.Flags().StringVar(&st.Identifier, "identifier", "", "Component identifier (default: label)")
	return cmd
}

func yamlProps(src string, st *step) error {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	if err := yaml.Unmarshal([]byte(src), &st.Properties); err != nil {
		return fmt.Errorf("properties: %w", err)
	}
	return nil
}

func newRemoveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <reel> <label>",
		Short: "Remove an object or component",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(g, cmd, args[0], step{Op: "remove", Label: args[1]})
		},
	}
}

func newSetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "set <reel> <label> <property> <value>",
		Short: "Set a property; value is JSON or a plain string",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(g, cmd, args[0], step{Op: "set", Label: args[1], Property: args[2], Value: parseValue(args[3])})
		},
	}
}

func newBindCmd(g *globals) *cobra.Command {
	var oneWay bool
	var converter string
	cmd := &cobra.Command{
		Use:   "bind <reel> <label> <path> <bound-label> <bound-path>",
		Short: "Bind a property to a property of another object",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(g, cmd, args[0], step{
				Op: "bind", Label: args[1], Path: args[2], Bound: args[3], BoundPath: args[4],
				OneWay: oneWay, Converter: converter,
			})
		},
	}
	cmd.Flags().BoolVar(&oneWay, "one-way", false, "One-way binding (<-) instead of two-way (<->)")
	cmd.Flags().StringVar(&converter, "converter", "", "Label of a converter object")
	return cmd
}

func newUnbindCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "unbind <reel> <label> <path>",
		Short: "Cancel a binding",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(g, cmd, args[0], step{Op: "unbind", Label: args[1], Path: args[2]})
		},
	}
}
