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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"reeleditor/internal/config"
	applog "reeleditor/internal/log"
)

const (
	ReelSuffix     = ".reel"
	BackupsDirName = ".backups"
	backupStamp    = "20060102-150405.000000"
)

var (
	// ErrNotReel is returned for locations that are not a .reel directory.
	ErrNotReel = errors.New("not a reel location")
	// ErrLocked is returned when another writer holds the reel lock past the timeout.
	ErrLocked = errors.New("reel is locked")
)

// LocalPath strips a file:// scheme from url.
func LocalPath(url string) string {
	return filepath.Clean(strings.TrimPrefix(url, "file://"))
}

// ReelFile returns the html file of the reel directory at location: a/b/main.reel gives
// a/b/main.reel/main.html.
func ReelFile(location string) (string, error) {
	dir := LocalPath(location)
	base := filepath.Base(dir)
	name := strings.TrimSuffix(base, ReelSuffix)
	if name == base || name == "" {
		return "", fmt.Errorf("%s: %w", location, ErrNotReel)
	}
	return filepath.Join(dir, name+".html"), nil
}

// FileSource reads reels from the local file system.
type FileSource struct{}

// ReadReel returns the html of the reel at url. When the file is missing or empty the latest
// backup is used instead.
func (FileSource) ReadReel(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := ReelFile(url)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err == nil && len(strings.TrimSpace(string(b))) > 0 {
		return string(b), nil
	}
	if err == nil {
		err = errors.New("empty file")
	}
	bak, berr := latestBackup(path)
	if berr != nil {
		return "", fmt.Errorf("read reel: %w; backup attempt: %v", err, berr)
	}
	applog.WithComponent("storage").Warn("reel restored from backup", slog.String("path", path), slog.String("backup", bak))
	b, err = os.ReadFile(bak)
	if err != nil {
		return "", fmt.Errorf("read latest backup: %w", err)
	}
	return string(b), nil
}

// FileWriter writes reel html files. It satisfies the editing DataWriter.
type FileWriter struct {
	// Backups copies the previous file to .backups/ before replacing it.
	Backups bool
	// History records each write when set.
	History *RevisionStore
	// KeepRevisions prunes History per file (0 keeps all).
	KeepRevisions int
	LockTimeout   time.Duration
}

// NewFileWriter configures a writer from the storage section of the application config.
func NewFileWriter(cfg config.StorageConfig, history *RevisionStore) *FileWriter {
	return &FileWriter{
		Backups:       cfg.Backups,
		History:       history,
		KeepRevisions: cfg.KeepRevisions,
		LockTimeout:   5 * time.Second,
	}
}

// Write replaces path with content while holding the reel lock.
func (w *FileWriter) Write(ctx context.Context, content []byte, path string) error {
	l := applog.WithOperation(applog.WithComponent("storage"), "write").With(slog.String("path", path))
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create reel dir: %w", err)
	}
	unlock, err := lockReel(ctx, path, w.LockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	if w.Backups {
		if _, statErr := os.Stat(path); statErr == nil {
			bpath := backupPath(path, time.Now())
			if cerr := copyFile(path, bpath); cerr != nil {
				return fmt.Errorf("backup current reel: %w", cerr)
			}
		}
	}

	// Transactional write: temp file in the same directory, then rename over target
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, content); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp reel: %w", werr)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace reel: %w", rerr)
	}

	if w.History != nil {
		if _, err := w.History.Record(ctx, path, content, time.Now()); err != nil {
			l.Warn("record revision failed", slog.Any("err", err))
		} else if w.KeepRevisions > 0 {
			if _, err := w.History.Prune(ctx, path, w.KeepRevisions); err != nil {
				l.Warn("prune revisions failed", slog.Any("err", err))
			}
		}
	}
	l.Debug("written", slog.Int("bytes", len(content)))
	return nil
}

func lockReel(ctx context.Context, path string, timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	fl := flock.New(filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock"))
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	locked, err := fl.TryLockContext(lctx, 50*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrLocked, path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			applog.WithComponent("storage").Warn("unlock failed", slog.String("path", path), slog.Any("err", err))
		}
	}, nil
}

func backupPath(path string, ts time.Time) string {
	name := fmt.Sprintf("%s.%s.bak", filepath.Base(path), ts.Format(backupStamp))
	return filepath.Join(filepath.Dir(path), BackupsDirName, name)
}

// Backups lists the backups of path, oldest first.
func Backups(path string) ([]string, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func latestBackup(path string) (string, error) {
	list, err := Backups(path)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", errors.New("no backups found")
	}
	return list[len(list)-1], nil
}

// PackageRoot returns the closest directory above location holding a package.json, or the
// reel's parent directory when there is none.
func PackageRoot(location string) string {
	dir := LocalPath(location)
	for cur := filepath.Dir(dir); ; cur = filepath.Dir(cur) {
		if fi, err := os.Stat(filepath.Join(cur, "package.json")); err == nil && !fi.IsDir() {
			return cur
		}
		if parent := filepath.Dir(cur); parent == cur {
			break
		}
	}
	return filepath.Dir(dir)
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// WriteAutosave stores content next to the backups of the reel at location without taking the
// reel lock. It is meant for crash handling, where the lock holder may be the crashed goroutine.
func WriteAutosave(location string, content []byte) (string, error) {
	path, err := ReelFile(location)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s.%s.autosave", filepath.Base(path), time.Now().Format(backupStamp))
	dst := filepath.Join(filepath.Dir(path), BackupsDirName, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := writeFileSync(dst, content); err != nil {
		return "", fmt.Errorf("write autosave: %w", err)
	}
	return dst, nil
}
