/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	applog "promptmanager/internal/log"
)

// Settings document keys owned by this subsystem. Everything else in the
// document belongs to other parts of the extension and is carried through
// untouched.
const (
	settingsKeyDatabasePath       = "databasePath"
	settingsKeyDatabasePathCustom = "databasePathCustom"
)

// Location is the resolved database location after load-time normalization.
type Location struct {
	Path   string
	Custom bool
	// LegacyPath is set when the stored path still points at the
	// pre-data-directory layout (a file directly under the host root). The
	// importer owns moving that file; the store only reports it.
	LegacyPath string
}

// SettingsStore reads and writes the settings.json document in the data
// directory. Loading never fails: a missing, unreadable or corrupt document
// yields an empty one, so a broken settings file can never take the extension
// down. Writes are atomic.
type SettingsStore struct {
	ws *Workspace
}

// NewSettingsStore returns a store bound to the workspace's data directory.
func NewSettingsStore(ws *Workspace) *SettingsStore {
	return &SettingsStore{ws: ws}
}

// Path returns the settings document path.
func (s *SettingsStore) Path() string { return s.ws.SettingsPath() }

// Load reads the settings document. Comments and trailing commas are
// tolerated; anything worse is logged and replaced by an empty document.
func (s *SettingsStore) Load() map[string]any {
	l := applog.WithComponent("storage")
	b, err := os.ReadFile(s.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			l.Warn("read settings failed, starting fresh", slog.String("path", s.Path()), slog.Any("err", err))
		}
		return map[string]any{}
	}
	std, err := hujson.Standardize(b)
	if err != nil {
		l.Warn("settings not parseable, starting fresh", slog.String("path", s.Path()), slog.Any("err", err))
		return map[string]any{}
	}
	var doc map[string]any
	if err := json.Unmarshal(std, &doc); err != nil || doc == nil {
		l.Warn("settings not a JSON object, starting fresh", slog.String("path", s.Path()), slog.Any("err", err))
		return map[string]any{}
	}
	return doc
}

// Save writes the document atomically: temp file in the same directory, then
// rename over the target. A crash mid-save leaves either the old document or
// the new one, never a torn file.
func (s *SettingsStore) Save(doc map[string]any) error {
	if doc == nil {
		doc = map[string]any{}
	}
	if _, err := s.ws.EnsureDataDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(s.Path(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Location resolves the active database location, normalizing as it reads:
//
//   - no stored path: the managed default, not custom.
//   - stored path equals the default but the custom flag is set: the stale
//     flag is cleared and the document rewritten.
//   - stored path sits directly under the host root: the old layout. The
//     default location is returned with LegacyPath set for the importer.
//   - anything else is honored as stored.
func (s *SettingsStore) Location() Location {
	doc := s.Load()
	def := s.ws.DefaultDatabasePath()
	raw, _ := doc[settingsKeyDatabasePath].(string)
	custom, _ := doc[settingsKeyDatabasePathCustom].(bool)

	if strings.TrimSpace(raw) == "" {
		return Location{Path: def, Custom: false}
	}
	path := filepath.Clean(raw)
	if path == def {
		if custom {
			doc[settingsKeyDatabasePathCustom] = false
			if err := s.Save(doc); err != nil {
				applog.WithComponent("storage").Warn("clear stale custom flag failed", slog.Any("err", err))
			}
		}
		return Location{Path: def, Custom: false}
	}
	// A path directly under the host root is indistinguishable from the old
	// layout, so it is treated as the old layout even if the user chose it.
	if filepath.Dir(path) == s.ws.RootPath() {
		return Location{Path: def, Custom: false, LegacyPath: path}
	}
	return Location{Path: path, Custom: custom}
}

// SetDatabasePath records the active database location. With custom false the
// path collapses to the managed default so the document can never claim a
// default location it does not have.
func (s *SettingsStore) SetDatabasePath(path string, custom bool) error {
	if !custom {
		path = s.ws.DefaultDatabasePath()
	}
	doc := s.Load()
	doc[settingsKeyDatabasePath] = path
	doc[settingsKeyDatabasePathCustom] = custom
	return s.Save(doc)
}
