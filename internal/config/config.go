/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type EditorConfig struct {
	// SelectObjectsOnAddition resets the selection to every newly added object or component.
	SelectObjectsOnAddition bool `yaml:"select_objects_on_addition"`
	// UndoMaxDepth caps the undo stack (0 means unlimited).
	UndoMaxDepth int `yaml:"undo_max_depth"`
	// UndoCoalesceMs merges repeated edits of the same property inside the window (0 disables).
	UndoCoalesceMs int `yaml:"undo_coalesce_ms"`
}

type StorageConfig struct {
	// Backups keeps a timestamped copy of the previous reel html on every save.
	Backups bool `yaml:"backups"`
	// History records every saved serialization in the reel's sqlite revision store.
	History bool `yaml:"history"`
	// KeepRevisions prunes older revisions per file (0 keeps all).
	KeepRevisions int `yaml:"keep_revisions"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Storage       StorageConfig `yaml:"storage"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{SelectObjectsOnAddition: true, UndoMaxDepth: 500, UndoCoalesceMs: 0},
		Storage:       StorageConfig{Backups: true, History: false, KeepRevisions: 50},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile      = "REEL_CONFIG"
	EnvSelectOnAdd     = "REEL_SELECT_ON_ADD"
	EnvUndoMaxDepth    = "REEL_UNDO_MAX_DEPTH"
	EnvUndoCoalesceMs  = "REEL_UNDO_COALESCE_MS"
	EnvStorageBackups  = "REEL_BACKUPS"
	EnvStorageHistory  = "REEL_HISTORY"
	EnvStorageKeepRevs = "REEL_KEEP_REVISIONS"
	EnvLogLevel        = "REEL_LOG_LEVEL"
	EnvLogFormat       = "REEL_LOG_FORMAT"
	EnvLogSource       = "REEL_LOG_SOURCE"
	EnvLogFile         = "REEL_LOG_FILE"
)

// ConfigPath returns the per-user config file path. REEL_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "ReelEditor")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ReelEditor")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "reeleditor")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// A malformed file is reported but the defaults plus env overrides are still returned.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	var loadErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			loadErr = err
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, loadErr
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Editor.SelectObjectsOnAddition = src.Editor.SelectObjectsOnAddition
	if src.Editor.UndoMaxDepth != 0 {
		dst.Editor.UndoMaxDepth = src.Editor.UndoMaxDepth
	}
	if src.Editor.UndoCoalesceMs != 0 {
		dst.Editor.UndoCoalesceMs = src.Editor.UndoCoalesceMs
	}
	dst.Storage.Backups = src.Storage.Backups
	dst.Storage.History = src.Storage.History
	if src.Storage.KeepRevisions != 0 {
		dst.Storage.KeepRevisions = src.Storage.KeepRevisions
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v, ok := envBool(EnvSelectOnAdd); ok {
		cfg.Editor.SelectObjectsOnAddition = v
	}
	if v, ok := envInt(EnvUndoMaxDepth); ok {
		cfg.Editor.UndoMaxDepth = v
	}
	if v, ok := envInt(EnvUndoCoalesceMs); ok {
		cfg.Editor.UndoCoalesceMs = v
	}
	if v, ok := envBool(EnvStorageBackups); ok {
		cfg.Storage.Backups = v
	}
	if v, ok := envBool(EnvStorageHistory); ok {
		cfg.Storage.History = v
	}
	if v, ok := envInt(EnvStorageKeepRevs); ok {
		cfg.Storage.KeepRevisions = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v, ok := envBool(EnvLogSource); ok {
		cfg.Logging.Source = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func envBool(key string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, false
	}
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes", true
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	var env string
	switch key {
	case "editor.select_objects_on_addition":
		env = EnvSelectOnAdd
	case "editor.undo_max_depth":
		env = EnvUndoMaxDepth
	case "editor.undo_coalesce_ms":
		env = EnvUndoCoalesceMs
	case "storage.backups":
		env = EnvStorageBackups
	case "storage.history":
		env = EnvStorageHistory
	case "storage.keep_revisions":
		env = EnvStorageKeepRevs
	case "logging.level":
		env = EnvLogLevel
	case "logging.format":
		env = EnvLogFormat
	case "logging.source":
		env = EnvLogSource
	case "logging.file":
		env = EnvLogFile
	default:
		return "", false
	}
	if os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// CoalesceWindow returns the undo coalescing window as a duration.
func (e EditorConfig) CoalesceWindow() time.Duration {
	if e.UndoCoalesceMs <= 0 {
		return 0
	}
	return time.Duration(e.UndoCoalesceMs) * time.Millisecond
}
