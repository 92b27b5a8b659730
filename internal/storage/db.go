/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "promptmanager/internal/log"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// Canonical table names.
const (
	PromptsTable       = "prompts"
	PromptResultsTable = "prompt_results"
)

// language=SQL
const createPromptsTableSQL = `CREATE TABLE IF NOT EXISTS prompts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	positive_prompt TEXT    NOT NULL,
	negative_prompt TEXT,
	workflow_name   TEXT,
	category        TEXT,
	tags            TEXT,
	notes           TEXT,
	rating          INTEGER,
	is_favorite     INTEGER NOT NULL DEFAULT 0,
	usage_count     INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT    NOT NULL,
	updated_at      TEXT    NOT NULL
);`

// language=SQL
const createPromptResultsTableSQL = `CREATE TABLE IF NOT EXISTS prompt_results (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt_id  INTEGER NOT NULL,
	filename   TEXT    NOT NULL,
	subfolder  TEXT,
	image_type TEXT,
	created_at TEXT    NOT NULL,
	FOREIGN KEY(prompt_id) REFERENCES prompts(id) ON DELETE CASCADE
);`

var promptsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_prompts_category ON prompts(category);`,
	`CREATE INDEX IF NOT EXISTS idx_prompts_created_at ON prompts(created_at);`,
}

var promptResultsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_prompt_results_prompt_id ON prompt_results(prompt_id);`,
}

// OpenDatabase opens (creating if necessary) the prompt database at path,
// enables WAL mode and foreign keys, and ensures the canonical schema exists.
// The returned *sql.DB is limited to a single connection; pragmas like
// foreign_keys are per-connection and must stay in effect for its lifetime.
func OpenDatabase(ctx context.Context, path string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "db_open").With(
		slog.String("path", path),
	)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create database dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := openSQLite(path)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, err
	}

	octx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(octx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(octx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureSchema(octx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}

	l.Debug("database ready")
	return db, nil
}

// ensureSchema creates the canonical tables and indexes if they do not exist.
// Existing tables are left alone; bringing a legacy layout up to the canonical
// one is Migrate's job. Indexes are only created on tables already in the
// canonical layout, since a legacy table may lack the indexed columns and
// Migrate recreates indexes after a rewrite anyway.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, ts := range managedTables() {
		if _, err := db.ExecContext(ctx, ts.createSQL); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		cols, err := tableColumns(ctx, db, ts.name)
		if err != nil {
			return err
		}
		if needsRewrite(cols, ts) {
			continue
		}
		for _, q := range ts.indexes {
			if _, err := db.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
	}
	return nil
}

// CheckIntegrity runs PRAGMA quick_check and reports failure as an
// IntegrityError naming path.
func CheckIntegrity(ctx context.Context, db *sql.DB, path string) error {
	var res string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&res); err != nil {
		return &IntegrityError{Path: path, Detail: fmt.Sprintf("quick_check: %v", err)}
	}
	if !strings.Contains(strings.ToLower(res), "ok") {
		return &IntegrityError{Path: path, Detail: res}
	}
	return nil
}

// openSQLite opens a raw single-connection handle without touching the
// schema. Callers close it themselves.
func openSQLite(path string) (*sql.DB, error) {
	// URI form with a busy timeout; forward slashes for the SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// verifyDatabaseFile opens the file just long enough to run quick_check.
func verifyDatabaseFile(ctx context.Context, path string) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return CheckIntegrity(ctx, db, path)
}

// tableExists probes sqlite_master for a table by exact name.
func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe table %s: %w", name, err)
	}
	return true, nil
}

// countTableRows returns the row count of a table from the fixed canonical
// set. name is interpolated quoted; it never comes from user input.
func countTableRows(ctx context.Context, db *sql.DB, name string) (int64, error) {
	var n int64
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %q`, name)
	if err := db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}
