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

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type stepFile struct {
	Steps []step `yaml:"steps"`
}

func readSteps(path string) ([]step, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f stepFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Steps, nil
}

func newApplyCmd(g *globals) *cobra.Command {
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "apply <reel> <steps.yaml>",
		Short: "Apply a list of editing steps, including undo and redo, and save once",
		Long: `apply runs every step of a YAML file against one open document:

  steps:
    - op: add-object
      module: app/model
      label: model
      properties: {name: Ada}
    - op: set
      label: model
      property: name
      value: Grace
    - op: undo
    - op: bind
      label: title
      path: value
      bound: model
      bound_path: name
      one_way: true

A failing step stops the run without saving unless --keep-going is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := readSteps(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := g.open(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, st := range steps {
				msg, err := s.run(ctx, st)
				if err != nil {
					if !keepGoing {
						s.close()
						return fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
					}
					fmt.Fprintf(out, "%d: %s failed: %v\n", i+1, st.Op, err)
					continue
				}
				fmt.Fprintf(out, "%d: %s\n", i+1, msg)
			}
			return s.finish(ctx, out)
		},
	}
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Report failing steps and continue")
	return cmd
}
