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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"reeleditor/internal/config"
	"reeleditor/internal/crash"
	applog "reeleditor/internal/log"
	"reeleditor/internal/version"
)

// globals holds the persistent flags and the state shared by all commands.
type globals struct {
	live    bool
	dryRun  bool
	verbose bool

	cfg   config.AppConfig
	log   *slog.Logger
	crash *crash.Target
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:   "reeleditor",
		Short: "Edit the serialization of reel components from the command line",
		Long: `reeleditor opens a reel (a <name>.reel directory holding <name>.html), applies editing
operations to its object graph and saves it back.

Examples:
  reeleditor new ui/main.reel                     # create a reel with an owner component
  reeleditor show ui/main.reel                    # list objects
  reeleditor add-component ui/main.reel ui/button.reel --markup '<button>Go</button>'
  reeleditor set ui/main.reel button1 value '"Go"'
  reeleditor bind ui/main.reel button1 enabled owner ready --one-way
  reeleditor apply ui/main.reel steps.yaml        # batch of steps, undo/redo included
  reeleditor history ui/main.reel                 # saved revisions (storage.history)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.String(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			g.cfg = cfg
			opts := applog.Options{
				Level:     cfg.Logging.Level,
				Format:    cfg.Logging.Format,
				AddSource: cfg.Logging.Source,
				File:      cfg.Logging.File,
				Writer:    cmd.ErrOrStderr(),
			}
			if g.verbose {
				opts.Level = "debug"
			}
			applog.Init(opts)
			g.log = applog.WithComponent("cli")
			g.log.Debug("start", slog.String("command", cmd.Name()), slog.Int("args", len(args)))
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&g.live, "live", false, "Instantiate the reel on a headless stage and mirror every edit onto it")
	root.PersistentFlags().BoolVarP(&g.dryRun, "dry-run", "n", false, "Print the resulting serialization instead of saving")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "V", false, "Debug logging")

	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(g),
		newNewCmd(g),
		newShowCmd(g),
		newAddObjectCmd(g),
		newAddComponentCmd(g),
		newRemoveCmd(g),
		newSetCmd(g),
		newBindCmd(g),
		newUnbindCmd(g),
		newApplyCmd(g),
		newHistoryCmd(g),
		newWatchCmd(g),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Reel Editor")
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func main() {
	g := &globals{crash: &crash.Target{}}
	defer crash.Recover(g.crash)
	if err := newRootCmd(g).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
