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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"reeleditor/internal/document"
	"reeleditor/internal/editing"
	"reeleditor/internal/serialization"
	"reeleditor/internal/stage"
	"reeleditor/internal/storage"
)

// session is one opened reel plus everything needed to save it.
type session struct {
	g        *globals
	location string
	docs     *document.Controller
	doc      *editing.ReelDocument
	frame    *stage.Frame
	history  *storage.RevisionStore
}

func absLocation(arg string) (string, error) {
	abs, err := filepath.Abs(storage.LocalPath(arg))
	if err != nil {
		return "", err
	}
	if _, err := storage.ReelFile(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func (g *globals) options() editing.Options {
	return editing.Options{Editor: g.cfg.Editor}
}

// open loads the reel at arg through a document controller and, with --live, attaches it to a
// headless stage keyed by the reel's package root.
func (g *globals) open(ctx context.Context, arg string) (*session, error) {
	loc, err := absLocation(arg)
	if err != nil {
		return nil, err
	}
	s := &session{g: g, location: loc}
	if g.live {
		s.frame = stage.NewFrame(stage.NewRegistry(stage.OpenLoader()))
	}
	s.docs = document.NewController(func(ctx context.Context, url string) (document.Doc, error) {
		d, err := editing.LoadReel(ctx, url, storage.FileSource{}, g.options())
		if err != nil {
			return nil, err
		}
		if s.frame != nil {
			if err := d.Attach(ctx, s.frame, storage.PackageRoot(url)); err != nil {
				_ = d.Close()
				return nil, err
			}
		}
		return d, nil
	})
	doc, err := s.docs.OpenURL(ctx, loc)
	if err != nil {
		return nil, err
	}
	s.doc = doc.(*editing.ReelDocument)
	if g.cfg.Storage.History {
		if s.history, err = storage.OpenRevisions(storage.PackageRoot(loc)); err != nil {
			g.log.Warn("history disabled", slog.Any("err", err))
		}
	}
	g.crash.Doc, g.crash.Location = s.doc, loc
	return s, nil
}

func (s *session) writer() *storage.FileWriter {
	return storage.NewFileWriter(s.g.cfg.Storage, s.history)
}

// finish saves a dirty document (or prints it with --dry-run) and closes the session.
func (s *session) finish(ctx context.Context, out io.Writer) error {
	defer s.close()
	if s.g.dryRun {
		fmt.Fprintln(out, s.doc.Serialization())
		return nil
	}
	if !s.doc.IsDirty() {
		s.g.log.Info("nothing to save", slog.String("reel", s.location))
		return nil
	}
	if err := s.doc.Save(ctx, s.location, s.writer()); err != nil {
		return err
	}
	s.g.log.Info("saved", slog.String("reel", s.location))
	return nil
}

func (s *session) close() {
	if s.doc != nil {
		if err := s.docs.RemoveDocument(s.doc); err != nil {
			s.g.log.Warn("close document", slog.Any("err", err))
		}
	}
	if s.history != nil {
		_ = s.history.Close()
	}
	s.g.crash.Doc = nil
}

func (s *session) proxy(label string) (*editing.Proxy, error) {
	p := s.doc.EditingProxy(label)
	if p == nil {
		return nil, fmt.Errorf("%s: no object labeled %q", s.location, label)
	}
	return p, nil
}

// parseValue reads a command line value as JSON, falling back to a plain string.
func parseValue(arg string) any {
	v, err := serialization.DecodeValue([]byte(arg))
	if err != nil {
		return arg
	}
	return v
}

// normalize turns decoded YAML into serialization values, resolving {"@": ...} and {"#": ...}.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return serialization.DecodeValue(b)
}

func describe(module string, props map[string]any) (*serialization.Object, error) {
	desc := serialization.NewObject(serialization.TypePrototype, module)
	if len(props) == 0 {
		return desc, nil
	}
	v, err := normalize(props)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*serialization.Map)
	if !ok {
		return nil, fmt.Errorf("properties must be an object")
	}
	desc.SetUnit(&serialization.PropertiesUnit{Values: m})
	return desc, nil
}

func printSummary(out io.Writer, doc *editing.ReelDocument) {
	fmt.Fprintf(out, "%s (%d objects, changes: %v)\n", doc.Title(), len(doc.EditingProxyMap()), doc.ChangeCount())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, p := range doc.EditingProxies() {
		kind := "object"
		if p.IsComponent() {
			kind = "component"
		}
		var extra []string
		if p.ElementID != "" {
			extra = append(extra, "#"+p.ElementID)
		}
		if bu := p.Serialization().Bindings(); bu != nil {
			paths := bu.Paths()
			sort.Strings(paths)
			for _, path := range paths {
				b, _ := bu.Get(path)
				extra = append(extra, fmt.Sprintf("%s %s %s", path, b.Arrow(), b.Source))
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Label(), p.ExportID(), kind, strings.Join(extra, ", "))
	}
	_ = tw.Flush()
}
