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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestOpenDatabaseCreatesSchema(t *testing.T) {
	ctx := testContext(t)
	path := filepath.Join(t.TempDir(), "sub", "prompts.db")
	db, err := OpenDatabase(ctx, path)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	for _, table := range []string{PromptsTable, PromptResultsTable} {
		ok, err := tableExists(ctx, db, table)
		if err != nil {
			t.Fatalf("tableExists(%s): %v", table, err)
		}
		if !ok {
			t.Fatalf("table %s missing after open", table)
		}
	}
	n, err := countTableRows(ctx, db, PromptsTable)
	if err != nil || n != 0 {
		t.Fatalf("fresh prompts count = %d, err %v", n, err)
	}
}

func TestOpenDatabaseRejectsEmptyPath(t *testing.T) {
	if _, err := OpenDatabase(testContext(t), "  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestCheckIntegrityOnFreshDatabase(t *testing.T) {
	ctx := testContext(t)
	path := filepath.Join(t.TempDir(), "prompts.db")
	db, err := OpenDatabase(ctx, path)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	defer db.Close()
	if err := CheckIntegrity(ctx, db, path); err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
}

func TestVerifyDatabaseFileRejectsJunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.db")
	if err := os.WriteFile(path, []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	err := verifyDatabaseFile(testContext(t), path)
	var ierr *IntegrityError
	if !errors.As(err, &ierr) {
		t.Fatalf("err = %v, want IntegrityError", err)
	}
}
