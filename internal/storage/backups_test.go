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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBackupFileTimestamped(t *testing.T) {
	ws := newTestWorkspace(t)
	src := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(src, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	bak, err := backupFileTimestamped(ws, src)
	if err != nil {
		t.Fatalf("backupFileTimestamped: %v", err)
	}
	if filepath.Dir(bak) != ws.BackupsDir() {
		t.Fatalf("backup outside backups dir: %s", bak)
	}
	name := filepath.Base(bak)
	if !strings.HasPrefix(name, "settings.json.") || !strings.HasSuffix(name, ".bak") {
		t.Fatalf("backup name = %s", name)
	}
	b, err := os.ReadFile(bak)
	if err != nil || string(b) != `{"a":1}` {
		t.Fatalf("backup content wrong: %v", err)
	}
}

func TestPruneBackupsKeepsNewestPerGroup(t *testing.T) {
	ws := newTestWorkspace(t)
	if _, err := ws.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}
	dir := ws.BackupsDir()
	files := []string{
		"settings.json.20250101-000001.bak",
		"settings.json.20250101-000002.bak",
		"settings.json.20250101-000003.bak",
		"settings.json.20250101-000004.bak",
		"prompts.db.20250101-000001.bak",
		"prompts.db.20250101-000002.bak",
		"crash-20250101-000000.log",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}

	deleted, err := PruneBackups(ws, 2)
	if err != nil {
		t.Fatalf("PruneBackups: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	// The two oldest settings backups are gone, the newest two remain.
	for _, gone := range files[:2] {
		if _, err := os.Stat(filepath.Join(dir, gone)); !os.IsNotExist(err) {
			t.Fatalf("%s should have been pruned", gone)
		}
	}
	for _, kept := range files[2:] {
		if _, err := os.Stat(filepath.Join(dir, kept)); err != nil {
			t.Fatalf("%s should have survived: %v", kept, err)
		}
	}
}

func TestPruneBackupsRemovesAllWithZeroKeep(t *testing.T) {
	ws := newTestWorkspace(t)
	if _, err := ws.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}
	name := filepath.Join(ws.BackupsDir(), "prompts.db.20250101-000001.bak")
	if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	deleted, err := PruneBackups(ws, 0)
	if err != nil || deleted != 1 {
		t.Fatalf("deleted = %d, err %v", deleted, err)
	}
}

func TestPruneBackupsMissingDir(t *testing.T) {
	ws := newTestWorkspace(t)
	deleted, err := PruneBackups(ws, 3)
	if err != nil || deleted != 0 {
		t.Fatalf("deleted = %d, err %v", deleted, err)
	}
}
