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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	applog "promptmanager/internal/log"
)

// Earlier releases wrote their files directly into the host root instead
// of the per-user data directory. ImportLegacy adopts those strays.

type legacyFileKind int

const (
	legacyDatabase legacyFileKind = iota
	legacySettings
)

type legacyFile struct {
	name string
	kind legacyFileKind
}

// legacyRootFiles is the fixed list of filenames recognized at the host
// root. Names outside this list are never touched.
var legacyRootFiles = []legacyFile{
	{name: "prompts.db", kind: legacyDatabase},
	{name: "prompt_manager.db", kind: legacyDatabase},
	{name: "prompt_manager_settings.json", kind: legacySettings},
}

// migratedSuffix marks a legacy file whose content has been adopted.
// The original is renamed, not deleted, so the user can revert by hand.
const migratedSuffix = ".migrated"

// ImportIssue records one legacy file that could not be imported.
type ImportIssue struct {
	Name string
	Err  error
}

// ImportReport summarizes one ImportLegacy run.
type ImportReport struct {
	Migrated []string
	Skipped  []string
	Issues   []ImportIssue
}

// Clean reports whether the run completed without issues.
func (r ImportReport) Clean() bool { return len(r.Issues) == 0 }

// ImportLegacy scans the host root for files left behind by earlier
// releases and moves their content into the data directory. Settings
// files are handled before databases so that a database import, which
// rewrites the location keys, wins over any copied legacy document.
// Per-file failures are collected in the report; the original file is
// only renamed after its content has been adopted, so a failed import
// is retried on the next run.
func ImportLegacy(ctx context.Context, ws *Workspace, st *SettingsStore) (ImportReport, error) {
	l := applog.WithComponent("storage")
	var report ImportReport

	if _, err := ws.EnsureDataDir(); err != nil {
		return report, err
	}

	root := ws.RootPath()
	for _, pass := range []legacyFileKind{legacySettings, legacyDatabase} {
		for _, lf := range legacyRootFiles {
			if lf.kind != pass {
				continue
			}
			path := filepath.Join(root, lf.name)
			if _, err := os.Stat(path); err != nil {
				if !os.IsNotExist(err) {
					report.Issues = append(report.Issues, ImportIssue{Name: lf.name, Err: err})
				}
				continue
			}

			var (
				skipped bool
				err     error
			)
			switch lf.kind {
			case legacySettings:
				err = importLegacySettings(ws, st, path)
			case legacyDatabase:
				skipped, err = importLegacyDatabase(ctx, ws, st, path)
			}
			if err != nil {
				l.Warn("legacy import failed", slog.String("file", lf.name), slog.String("error", err.Error()))
				report.Issues = append(report.Issues, ImportIssue{Name: lf.name, Err: err})
				continue
			}
			if skipped {
				report.Skipped = append(report.Skipped, lf.name)
			} else {
				report.Migrated = append(report.Migrated, lf.name)
			}
		}
	}

	if len(report.Migrated) > 0 || len(report.Skipped) > 0 || len(report.Issues) > 0 {
		l.Info("legacy import finished",
			slog.Int("migrated", len(report.Migrated)),
			slog.Int("skipped", len(report.Skipped)),
			slog.Int("issues", len(report.Issues)))
	}
	return report, nil
}

// importLegacySettings copies a stray settings document into the data
// directory verbatim. An existing document is backed up first.
func importLegacySettings(ws *Workspace, st *SettingsStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read legacy settings: %w", err)
	}

	dest := st.Path()
	if _, err := os.Stat(dest); err == nil {
		backup, err := backupFileTimestamped(ws, dest)
		if err != nil {
			return fmt.Errorf("back up current settings: %w", err)
		}
		applog.WithComponent("storage").Info("backed up settings before import",
			slog.String("backup", backup))
	}

	if err := atomic.WriteFile(dest, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return markMigrated(path)
}

// importLegacyDatabase adopts a stray database file. The copy at the
// destination is migrated to the canonical schema before the settings
// document is pointed at it and the original renamed. Returns skipped
// when the destination already holds at least as many prompts as the
// legacy file.
func importLegacyDatabase(ctx context.Context, ws *Workspace, st *SettingsStore, path string) (bool, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "import")

	// Never copy a corrupt file into the data directory.
	if err := verifyDatabaseFile(ctx, path); err != nil {
		return false, err
	}
	legacyCount, err := countPromptRows(ctx, path)
	if err != nil {
		return false, err
	}

	dest := ws.DefaultDatabasePath()
	if _, err := os.Stat(dest); err == nil {
		destCount, err := countPromptRows(ctx, dest)
		if err != nil {
			return false, err
		}
		if destCount >= legacyCount {
			l.Info("destination already migrated",
				slog.String("file", filepath.Base(path)),
				slog.Int64("rows", destCount))
			return true, markMigrated(path)
		}
		// The destination holds fewer prompts than the legacy file,
		// most likely a partial prior attempt. Keep it recoverable.
		if _, err := ws.EnsureSubdir(BackupsDirName); err != nil {
			return false, err
		}
		partial := filepath.Join(ws.BackupsDir(),
			fmt.Sprintf("%s.partial-%s.bak", filepath.Base(dest), backupTimestamp()))
		if err := os.Rename(dest, partial); err != nil {
			return false, fmt.Errorf("stash partial database: %w", err)
		}
		l.Warn("stashed partial destination database",
			slog.Int64("dest_rows", destCount),
			slog.Int64("legacy_rows", legacyCount),
			slog.String("backup", partial))
	}

	tmp := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".import-tmp")
	if err := copyFileSync(path, tmp); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("copy legacy database: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("move database into place: %w", err)
	}

	db, err := OpenDatabase(ctx, dest)
	if err != nil {
		return false, err
	}
	outcome, merr := Migrate(ctx, db)
	cerr := db.Close()
	if merr != nil {
		return false, merr
	}
	if cerr != nil {
		return false, fmt.Errorf("close database: %w", cerr)
	}

	if err := st.SetDatabasePath(dest, false); err != nil {
		return false, err
	}
	if err := markMigrated(path); err != nil {
		return false, err
	}
	l.Info("imported legacy database",
		slog.String("file", filepath.Base(path)),
		slog.Int64("rows", outcome.TotalMigrated()),
		slog.Bool("rewritten", outcome.Rewritten()))
	return false, nil
}

func markMigrated(path string) error {
	if err := os.Rename(path, path+migratedSuffix); err != nil {
		return fmt.Errorf("mark migrated: %w", err)
	}
	return nil
}

// countPromptRows opens path just long enough to count rows in the
// prompts table. A database without that table counts as zero.
func countPromptRows(ctx context.Context, path string) (int64, error) {
	db, err := openSQLite(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	ok, err := tableExists(ctx, db, PromptsTable)
	if err != nil || !ok {
		return 0, err
	}
	return countTableRows(ctx, db, PromptsTable)
}
