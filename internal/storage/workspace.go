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

	"promptmanager/internal/hostroot"
	applog "promptmanager/internal/log"
)

const (
	// Data lives under <host_root>/user/default/prompt_manager, the per-user
	// extension scope ComfyUI reserves for plugins.
	userDirName      = "user"
	profileDirName   = "default"
	extensionDirName = "prompt_manager"

	DatabaseFileName = "prompts.db"
	SettingsFileName = "settings.json"

	BackupsDirName = "backups"
	ExportsDirName = "exports"
	LogsDirName    = "logs"
	CacheDirName   = "cache"
)

// Standard subfolders scaffolded inside the data directory.
var standardSubDirs = []string{
	BackupsDirName,
	ExportsDirName,
	LogsDirName,
	CacheDirName,
}

// Workspace derives and maintains the extension's data directory under a
// resolved host root. It is an explicit context object: callers construct one
// per host installation and pass it around, nothing is cached process-wide.
type Workspace struct {
	root hostroot.Root
}

// NewWorkspace returns a workspace anchored at the given host root.
func NewWorkspace(root hostroot.Root) *Workspace {
	root.Path = filepath.Clean(root.Path)
	return &Workspace{root: root}
}

// HostRoot returns the root the workspace is anchored at.
func (w *Workspace) HostRoot() hostroot.Root { return w.root }

// RootPath returns the host root path.
func (w *Workspace) RootPath() string { return w.root.Path }

// DataDir returns the extension data directory path. The directory may not
// exist yet; use EnsureDataDir before writing into it.
func (w *Workspace) DataDir() string {
	return filepath.Join(w.root.Path, userDirName, profileDirName, extensionDirName)
}

// DefaultDatabasePath returns the canonical database location inside the data
// directory.
func (w *Workspace) DefaultDatabasePath() string {
	return filepath.Join(w.DataDir(), DatabaseFileName)
}

// SettingsPath returns the settings document location inside the data directory.
func (w *Workspace) SettingsPath() string {
	return filepath.Join(w.DataDir(), SettingsFileName)
}

// BackupsDir returns the backups directory path inside the data directory.
func (w *Workspace) BackupsDir() string {
	return filepath.Join(w.DataDir(), BackupsDirName)
}

// EnsureDataDir creates the data directory and its standard subfolders if
// missing and returns the data directory path. Repeated calls are no-ops.
func (w *Workspace) EnsureDataDir() (string, error) {
	dir := w.DataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return "", fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return dir, nil
}

// EnsureSubdir creates (if missing) and returns the named directory inside the
// data directory.
func (w *Workspace) EnsureSubdir(name string) (string, error) {
	if _, err := w.EnsureDataDir(); err != nil {
		return "", err
	}
	dir := filepath.Join(w.DataDir(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create subdir %s: %w", name, err)
	}
	return dir, nil
}

// SetCustomRoot swaps the workspace onto a user-chosen host root. The path is
// validated before anything changes: it must be absolute, an existing
// directory, look like a host installation, and be writable. Returns false
// when the path equals the current root.
func (w *Workspace) SetCustomRoot(path string) (bool, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "set_custom_root")
	if !filepath.IsAbs(path) {
		return false, &ValidationError{Path: path, Reason: "path must be absolute"}
	}
	path = filepath.Clean(path)
	if path == w.root.Path {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, &ValidationError{Path: path, Reason: "directory does not exist"}
	}
	if !info.IsDir() {
		return false, &ValidationError{Path: path, Reason: "not a directory"}
	}
	if !hostroot.LooksLikeRoot(path) {
		return false, &ValidationError{Path: path, Reason: "does not look like a host installation root"}
	}
	if err := probeWritable(path); err != nil {
		return false, &ValidationError{Path: path, Reason: fmt.Sprintf("not writable: %v", err)}
	}
	w.root = hostroot.Root{Path: path, Strategy: hostroot.StrategyCustom, SymlinksPreserved: true}
	l.Info("custom root set", slog.String("root", path))
	return true, nil
}

// probeWritable creates and removes a throwaway file to confirm write access.
func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".pm-write-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if cerr := f.Close(); cerr != nil {
		_ = os.Remove(name)
		return cerr
	}
	return os.Remove(name)
}
