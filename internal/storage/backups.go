/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// copyFileSync copies src to dst (overwriting dst) and flushes the
// destination to disk before returning.
func copyFileSync(src, dst string) (err error) {
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

// backupTimestamp formats stamps used in backup file names; lexicographic
// order equals chronological order.
func backupTimestamp() string { return time.Now().Format("20060102-150405") }

// backupFileTimestamped copies path into the workspace backups directory as
// <name>.<stamp>.bak and returns the backup path.
func backupFileTimestamped(ws *Workspace, path string) (string, error) {
	if _, err := ws.EnsureSubdir(BackupsDirName); err != nil {
		return "", err
	}
	bak := filepath.Join(ws.BackupsDir(), fmt.Sprintf("%s.%s.bak", filepath.Base(path), backupTimestamp()))
	if err := copyFileSync(path, bak); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	return bak, nil
}

// PruneBackups deletes old timestamped backups from the backups directory,
// keeping the newest keepLast per backed-up file. Crash reports and other
// non-.bak files are never touched. Returns the number of files removed.
func PruneBackups(ws *Workspace, keepLast int) (int, error) {
	if keepLast < 0 {
		keepLast = 0
	}
	dir := ws.BackupsDir()
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read backups dir: %w", err)
	}

	groups := map[string][]string{}
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".bak") {
			continue
		}
		base := strings.TrimSuffix(name, ".bak")
		i := strings.LastIndex(base, ".")
		if i <= 0 {
			continue
		}
		groups[base[:i]] = append(groups[base[:i]], name)
	}

	deleted := 0
	for _, names := range groups {
		sort.Strings(names)
		if len(names) <= keepLast {
			continue
		}
		for _, name := range names[:len(names)-keepLast] {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return deleted, fmt.Errorf("remove backup %s: %w", name, err)
			}
			deleted++
		}
	}
	return deleted, nil
}
