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
	"fmt"
	"log/slog"
	"strings"
	"time"

	applog "promptmanager/internal/log"
)

// TableOutcome describes what Migrate did to one managed table.
type TableOutcome struct {
	Table        string
	Rewritten    bool
	RowsMigrated int64
	RowsSkipped  int64
	SkipReasons  map[string]int64
}

// Outcome aggregates the per-table results of one Migrate run.
type Outcome struct {
	Tables []TableOutcome
}

// Rewritten reports whether any table was rebuilt.
func (o Outcome) Rewritten() bool {
	for _, t := range o.Tables {
		if t.Rewritten {
			return true
		}
	}
	return false
}

// TotalMigrated sums rows moved across all rebuilt tables.
func (o Outcome) TotalMigrated() int64 {
	var n int64
	for _, t := range o.Tables {
		n += t.RowsMigrated
	}
	return n
}

// TotalSkipped sums rows dropped across all rebuilt tables.
func (o Outcome) TotalSkipped() int64 {
	var n int64
	for _, t := range o.Tables {
		n += t.RowsSkipped
	}
	return n
}

// tableSpec binds a managed table to its canonical DDL and row mapping.
type tableSpec struct {
	name      string
	createSQL string
	columns   []string
	indexes   []string
	mapRow    func(legacyRow, string) ([]any, string)
}

// managedTables lists the tables Migrate owns, parents before dependents.
func managedTables() []tableSpec {
	return []tableSpec{
		{
			name:      PromptsTable,
			createSQL: createPromptsTableSQL,
			columns: []string{
				"id", "positive_prompt", "negative_prompt", "workflow_name",
				"category", "tags", "notes", "rating", "is_favorite",
				"usage_count", "created_at", "updated_at",
			},
			indexes: promptsIndexesSQL,
			mapRow:  mapPromptRow,
		},
		{
			name:      PromptResultsTable,
			createSQL: createPromptResultsTableSQL,
			columns: []string{
				"id", "prompt_id", "filename", "subfolder", "image_type", "created_at",
			},
			indexes: promptResultsIndexesSQL,
			mapRow:  mapResultRow,
		},
	}
}

// Migrate brings every managed table up to the canonical schema. Tables
// already canonical are untouched, so the call is idempotent and cheap to run
// on every open. Legacy tables are rebuilt in a single transaction each:
// rename to a backup, create the canonical table, re-insert every row through
// the candidate mapping preserving original ids, verify counts, drop the
// backup. A failure rolls the transaction back and the original table
// reappears under its own name.
//
// Row-level problems never abort the run; they are counted in the Outcome and
// logged.
func Migrate(ctx context.Context, db *sql.DB) (Outcome, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "migrate")
	var out Outcome

	// foreign_keys is connection-level and a no-op inside a transaction, so
	// it is toggled out here. The pool is capped at one connection.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=OFF;"); err != nil {
		return out, fmt.Errorf("disable foreign_keys: %w", err)
	}
	defer func() {
		// restore even when ctx is already canceled
		if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON;"); err != nil {
			l.Warn("re-enable foreign_keys failed", slog.Any("err", err))
		}
	}()

	for _, ts := range managedTables() {
		to, err := migrateTable(ctx, db, ts)
		if err != nil {
			return out, err
		}
		out.Tables = append(out.Tables, to)
	}

	// Dangling parent refs survive a rewrite on purpose; surface them.
	if n := danglingRefs(ctx, db); n > 0 {
		l.Warn("foreign key check found dangling references", slog.Int64("rows", n))
	}
	return out, nil
}

func migrateTable(ctx context.Context, db *sql.DB, ts tableSpec) (TableOutcome, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "migrate").With(
		slog.String("table", ts.name),
	)
	out := TableOutcome{Table: ts.name, SkipReasons: map[string]int64{}}

	exists, err := tableExists(ctx, db, ts.name)
	if err != nil {
		return out, err
	}
	if !exists {
		if _, err := db.ExecContext(ctx, ts.createSQL); err != nil {
			return out, fmt.Errorf("create %s: %w", ts.name, err)
		}
		for _, q := range ts.indexes {
			if _, err := db.ExecContext(ctx, q); err != nil {
				return out, fmt.Errorf("create index: %w", err)
			}
		}
		l.Debug("table created fresh")
		return out, nil
	}

	cols, err := tableColumns(ctx, db, ts.name)
	if err != nil {
		return out, err
	}
	if !needsRewrite(cols, ts) {
		l.Debug("table already canonical")
		return out, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	backup := ts.name + "_legacy_backup"

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return out, fmt.Errorf("begin rewrite of %s: %w", ts.name, err)
	}
	committed := false
	defer func() {
		// DDL is transactional in SQLite; rollback restores the renamed table
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %q RENAME TO %q`, ts.name, backup)); err != nil {
		return out, fmt.Errorf("rename %s: %w", ts.name, err)
	}
	if _, err := tx.ExecContext(ctx, ts.createSQL); err != nil {
		return out, fmt.Errorf("create canonical %s: %w", ts.name, err)
	}

	// Read everything up front; the transaction owns a single connection and
	// cannot interleave a read cursor with the inserts below.
	rows, err := readAllRows(ctx, tx, backup)
	if err != nil {
		return out, err
	}

	ins, err := tx.PrepareContext(ctx, insertSQL(ts))
	if err != nil {
		return out, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = ins.Close() }()

	for _, row := range rows {
		args, skip := ts.mapRow(row, now)
		if skip != "" {
			out.RowsSkipped++
			out.SkipReasons[skip]++
			continue
		}
		if _, err := ins.ExecContext(ctx, args...); err != nil {
			return out, fmt.Errorf("insert into %s: %w", ts.name, err)
		}
		out.RowsMigrated++
	}

	// Row-count invariant, checked while the backup still exists.
	var got int64
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, ts.name)).Scan(&got); err != nil {
		return out, fmt.Errorf("recount %s: %w", ts.name, err)
	}
	if got != out.RowsMigrated || out.RowsMigrated+out.RowsSkipped != int64(len(rows)) {
		return out, &IntegrityError{
			Path:   ts.name,
			Detail: fmt.Sprintf("row count drift: %d migrated + %d skipped, %d legacy rows, %d now present", out.RowsMigrated, out.RowsSkipped, len(rows), got),
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE %q`, backup)); err != nil {
		return out, fmt.Errorf("drop backup %s: %w", backup, err)
	}
	// Indexes last: until the backup is dropped its indexes still hold the
	// canonical names.
	for _, q := range ts.indexes {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return out, fmt.Errorf("recreate index: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return out, fmt.Errorf("commit rewrite of %s: %w", ts.name, err)
	}
	committed = true

	out.Rewritten = true
	l.Info("table rewritten",
		slog.Int64("migrated", out.RowsMigrated),
		slog.Int64("skipped", out.RowsSkipped),
	)
	return out, nil
}

// needsRewrite reports whether the observed column set forces a rebuild: any
// canonical column missing, or any legacy marker column present.
func needsRewrite(cols map[string]bool, ts tableSpec) bool {
	for _, c := range ts.columns {
		if !cols[c] {
			return true
		}
	}
	for _, m := range legacyMarkerColumns {
		if cols[m] {
			return true
		}
	}
	return false
}

// tableColumns inspects a table via PRAGMA table_info.
func tableColumns(ctx context.Context, db *sql.DB, name string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q);`, name))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var cname, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &cname, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[cname] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cols, nil
}

// readAllRows buffers every row of a table as tagged legacy values.
func readAllRows(ctx context.Context, tx *sql.Tx, table string) ([]legacyRow, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q`, table))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []legacyRow
	for rows.Next() {
		raw := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(legacyRow, len(names))
		for i, n := range names {
			r[n] = valueFrom(raw[i])
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func insertSQL(ts tableSpec) string {
	ph := strings.TrimSuffix(strings.Repeat("?,", len(ts.columns)), ",")
	return fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, ts.name, strings.Join(ts.columns, ", "), ph)
}

// danglingRefs counts foreign key violations; diagnostics only.
func danglingRefs(ctx context.Context, db *sql.DB) int64 {
	rows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check;`)
	if err != nil {
		return 0
	}
	defer func() { _ = rows.Close() }()
	var n int64
	for rows.Next() {
		n++
	}
	return n
}
