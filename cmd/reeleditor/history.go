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
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"reeleditor/internal/editing"
	"reeleditor/internal/storage"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var limit int
	var restore int64
	cmd := &cobra.Command{
		Use:   "history <reel>",
		Short: "List saved revisions, or restore one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loc, err := absLocation(args[0])
			if err != nil {
				return err
			}
			path, _ := storage.ReelFile(loc)
			store, err := storage.OpenRevisions(storage.PackageRoot(loc))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			if restore > 0 {
				rev, err := store.Get(ctx, restore)
				if err != nil {
					return err
				}
				if rev == nil || rev.Path != path {
					return fmt.Errorf("no revision %d for %s", restore, path)
				}
				w := storage.NewFileWriter(g.cfg.Storage, store)
				if err := w.Write(ctx, rev.Content, path); err != nil {
					return err
				}
				fmt.Fprintf(out, "restored revision %d from %s\n", rev.ID, rev.TS.Local().Format(time.RFC3339))
				return nil
			}
			revs, err := store.List(ctx, path, limit)
			if err != nil {
				return err
			}
			if len(revs) == 0 {
				fmt.Fprintln(out, "no revisions (enable storage.history to record saves)")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, r := range revs {
				fmt.Fprintf(tw, "%d\t%s\t%d bytes\t%s\n", r.ID, r.TS.Local().Format(time.RFC3339), len(r.Content), r.Sum[:12])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of revisions to list")
	cmd.Flags().Int64Var(&restore, "restore", 0, "Write revision ID back to the reel")
	return cmd
}

func newWatchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <reel>",
		Short: "Print a summary of the reel every time its file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := absLocation(args[0])
			if err != nil {
				return err
			}
			w, err := storage.NewWatcher(loc)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "watching", w.File())
			return w.Run(ctx, func(c storage.Change) {
				if c.Removed() {
					fmt.Fprintln(out, "removed", c.Path)
					return
				}
				reloadSummary(ctx, g, loc, cmd)
			})
		},
	}
}

func reloadSummary(ctx context.Context, g *globals, loc string, cmd *cobra.Command) {
	doc, err := editing.LoadReel(ctx, loc, storage.FileSource{}, g.options())
	if err != nil {
		// partial writes by other tools show up as parse errors; the next event retries
		g.log.Warn("reload failed", slog.String("reel", loc), slog.Any("err", err))
		return
	}
	defer doc.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "changed at %s (%d objects)\n", time.Now().Format(time.TimeOnly), len(doc.EditingProxyMap()))
}
