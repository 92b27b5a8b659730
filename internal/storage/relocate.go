/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	applog "promptmanager/internal/log"
)

// RelocateResult reports where the database ended up.
type RelocateResult struct {
	PreviousPath string
	NewPath      string
	Changed      bool
}

// relocateCopy is swappable so tests can fail the copy phase mid-flight.
var relocateCopy = copyFileSync

// Relocate moves the active database to dest without ever holding the only
// copy in a volatile state:
//
//  1. the current file must exist,
//  2. a destination resolving to the current path is a no-op with zero
//     filesystem writes,
//  3. an existing destination is refused outright,
//  4. the current file is renamed to a sibling backup, copied to a hidden
//     temp file next to dest, size-verified, and renamed into place,
//  5. the settings document is updated,
//  6. only then is the backup deleted; a leftover backup is logged, not fatal.
//
// Any failure after step 4 removes the partial artifact and renames the
// backup to the original name, so the user-visible result of a failed
// relocation is that nothing changed. If even that rename fails the error is
// a *PartialMigrationError naming the surviving backup.
func Relocate(ws *Workspace, st *SettingsStore, dest string) (RelocateResult, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "relocate")
	loc := st.Location()
	current := loc.Path
	res := RelocateResult{PreviousPath: current}

	if strings.TrimSpace(dest) == "" {
		return res, &ValidationError{Path: dest, Reason: "destination is required"}
	}
	dest, err := filepath.Abs(dest)
	if err != nil {
		return res, &ValidationError{Path: dest, Reason: fmt.Sprintf("cannot resolve: %v", err)}
	}

	if _, err := os.Stat(current); err != nil {
		if os.IsNotExist(err) {
			return res, fmt.Errorf("%w: %s", ErrDatabaseNotFound, current)
		}
		return res, fmt.Errorf("stat current database: %w", err)
	}

	if samePath(current, dest) {
		res.NewPath = current
		return res, nil
	}

	if _, err := os.Stat(dest); err == nil {
		return res, &CollisionError{Path: dest}
	} else if !os.IsNotExist(err) {
		return res, fmt.Errorf("stat destination: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return res, fmt.Errorf("create destination dir: %w", err)
	}

	id := uuid.NewString()[:8]
	backup := current + ".relocate-" + id + ".bak"
	tmp := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-"+id)

	// Rename within the source directory: atomic, and from here on the full
	// database survives as the backup whatever else goes wrong.
	if err := os.Rename(current, backup); err != nil {
		return res, fmt.Errorf("stage backup: %w", err)
	}

	if err := relocateCopy(backup, tmp); err != nil {
		return res, rollbackRelocation(l, current, backup, tmp, fmt.Errorf("copy to destination: %w", err))
	}

	srcInfo, err := os.Stat(backup)
	if err != nil {
		return res, rollbackRelocation(l, current, backup, tmp, fmt.Errorf("stat backup: %w", err))
	}
	tmpInfo, err := os.Stat(tmp)
	if err != nil {
		return res, rollbackRelocation(l, current, backup, tmp, fmt.Errorf("stat temp copy: %w", err))
	}
	if srcInfo.Size() != tmpInfo.Size() {
		return res, rollbackRelocation(l, current, backup, tmp, &IntegrityError{
			Path:   tmp,
			Detail: fmt.Sprintf("copied %d bytes, expected %d", tmpInfo.Size(), srcInfo.Size()),
		})
	}

	if err := os.Rename(tmp, dest); err != nil {
		return res, rollbackRelocation(l, current, backup, tmp, fmt.Errorf("activate destination: %w", err))
	}

	custom := dest != ws.DefaultDatabasePath()
	if err := st.SetDatabasePath(dest, custom); err != nil {
		_ = os.Remove(dest)
		return res, rollbackRelocation(l, current, backup, tmp, fmt.Errorf("persist location: %w", err))
	}

	if err := os.Remove(backup); err != nil {
		l.Warn("remove relocation backup failed", slog.String("path", backup), slog.Any("err", err))
	}

	res.NewPath = dest
	res.Changed = true
	l.Info("database relocated",
		slog.String("from", current),
		slog.String("to", dest),
		slog.Bool("custom", custom),
	)
	return res, nil
}

// rollbackRelocation undoes a half-done relocation: the partial artifact is
// removed and the staged backup renamed back to the original name. The cause
// is returned unless the rollback itself fails.
func rollbackRelocation(l *slog.Logger, current, backup, tmp string, cause error) error {
	_ = os.Remove(tmp)
	if err := os.Rename(backup, current); err != nil {
		return &PartialMigrationError{BackupPath: backup, Cause: cause, RollbackErr: err}
	}
	l.Warn("relocation rolled back", slog.Any("err", cause))
	return cause
}

// samePath compares two paths after resolving symlinks. A path that does not
// exist yet resolves through its parent directory.
func samePath(a, b string) bool {
	return resolvePath(a) == resolvePath(b)
}

func resolvePath(p string) string {
	p = filepath.Clean(p)
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	if r, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		return filepath.Join(r, filepath.Base(p))
	}
	return p
}
