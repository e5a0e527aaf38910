/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "reeleditor/internal/log"
	"reeleditor/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// HistoryDirName holds derived per-package data under the package root.
	HistoryDirName  = ".reeleditor"
	HistoryFileName = "history.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump it with a migration step.
	schemaVersion = 2

	// tsLayout is fixed width so timestamps sort as text.
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// language=SQL
// dialect=SQLite
const insertRevisionSQL = `INSERT INTO revisions(path, ts, sum, content) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestRevisionSQL = `SELECT id, path, ts, sum, content FROM revisions WHERE path = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const selectRevisionSQL = `SELECT id, path, ts, sum, content FROM revisions WHERE id = ?`

// language=SQL
// dialect=SQLite
const listRevisionsSQL = `SELECT id, path, ts, sum, content FROM revisions WHERE path = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneRevisionsSQL = `DELETE FROM revisions WHERE path = ? AND id NOT IN (
	SELECT id FROM revisions WHERE path = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// Revision is one recorded save of a reel file.
type Revision struct {
	ID      int64
	Path    string
	TS      time.Time
	Sum     string
	Content []byte
}

// RevisionStore keeps the save history of the reels of one package.
type RevisionStore struct {
	db   *sql.DB
	path string
}

// HistoryPath returns the full path to the history database of the package at root.
func HistoryPath(root string) string {
	return filepath.Join(root, HistoryDirName, HistoryFileName)
}

// OpenRevisions ensures the history database exists under root, opens it, enables WAL mode and
// brings the schema up to date.
func OpenRevisions(root string) (*RevisionStore, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "history_open").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("package root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, HistoryDirName), 0o755); err != nil {
		l.Error("create history dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	path := HistoryPath(root)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureHistorySchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure history schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("history ready", slog.String("path", path))
	return &RevisionStore{db: db, path: path}, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureHistorySchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS revisions (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			path    TEXT NOT NULL,
			ts      TEXT NOT NULL,
			sum     TEXT NOT NULL,
			content BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_path_ts ON revisions(path, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create history schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// version 1 stored revisions without the lookup index
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			if _, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_revisions_path_ts ON revisions(path, ts);`); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
		}
		cur = next
	}
	return nil
}

// Path is the database file.
func (s *RevisionStore) Path() string { return s.path }

func (s *RevisionStore) Close() error { return s.db.Close() }

func checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Record stores content as the newest revision of path. Content identical to the latest revision
// is not stored again; the result reports whether a row was added.
func (s *RevisionStore) Record(ctx context.Context, path string, content []byte, ts time.Time) (bool, error) {
	sum := checksum(content)
	latest, err := s.Latest(ctx, path)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.Sum == sum {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, insertRevisionSQL, path, ts.UTC().Format(tsLayout), sum, content); err != nil {
		return false, fmt.Errorf("insert revision: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(r rowScanner) (*Revision, error) {
	var rev Revision
	var ts string
	if err := r.Scan(&rev.ID, &rev.Path, &ts, &rev.Sum, &rev.Content); err != nil {
		return nil, err
	}
	rev.TS, _ = time.Parse(tsLayout, ts)
	return &rev, nil
}

// Latest returns the newest revision of path, or nil when there is none.
func (s *RevisionStore) Latest(ctx context.Context, path string) (*Revision, error) {
	rev, err := scanRevision(s.db.QueryRowContext(ctx, selectLatestRevisionSQL, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rev, err
}

// Get returns the revision with id, or nil when there is none.
func (s *RevisionStore) Get(ctx context.Context, id int64) (*Revision, error) {
	rev, err := scanRevision(s.db.QueryRowContext(ctx, selectRevisionSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rev, err
}

// List returns up to limit revisions of path, newest first.
func (s *RevisionStore) List(ctx context.Context, path string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listRevisionsSQL, path, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rev)
	}
	return out, rows.Err()
}

// Prune keeps at most keepLast revisions of path and deletes older ones.
func (s *RevisionStore) Prune(ctx context.Context, path string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, pruneRevisionsSQL, path, path, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
