/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package hostroot locates the ComfyUI installation the extension is running
// inside. Discovery prefers explicit configuration over inference: an
// environment override wins outright, then the extension's own install path is
// walked upward looking for the custom_nodes container, then for well-known
// marker directories, and finally the working directory is consulted. The
// resolved root anchors every path the storage layer derives, so a wrong guess
// here would scatter user data across the filesystem.
package hostroot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvRootOverride names the environment variable that pins the host root to an
// absolute path, bypassing all discovery.
const EnvRootOverride = "COMFYUI_PATH"

// containerDirName is the folder ComfyUI keeps extensions in. The install-path
// scan looks for this exact name among the ancestors of the extension.
const containerDirName = "custom_nodes"

// wellKnownRootName matches an installation checked out under its default
// directory name, compared case-insensitively.
const wellKnownRootName = "comfyui"

// markerPairs lists directory pairs whose joint presence identifies a ComfyUI
// root. A single marker is not enough; stray "models" or "user" folders are
// common in unrelated trees.
var markerPairs = [][2]string{
	{"comfy", "web"},
	{"models", containerDirName},
	{"user", containerDirName},
}

// Strategy records which discovery stage produced a root.
type Strategy string

const (
	StrategyEnv         Strategy = "env"
	StrategyInstallPath Strategy = "install-path"
	StrategyResolved    Strategy = "resolved-path"
	StrategyMarkers     Strategy = "markers"
	StrategyWorkingDir  Strategy = "working-dir"

	// StrategyConfig and StrategyCustom mark roots that were not discovered
	// at all: pinned in the config file, or set by the user at runtime.
	StrategyConfig Strategy = "config"
	StrategyCustom Strategy = "custom"
)

// Root is a resolved host installation root.
type Root struct {
	Path     string
	Strategy Strategy
	// SymlinksPreserved is false only when the root was found by following
	// the resolved (symlink-free) install path. Callers that compare paths
	// against the root must resolve consistently with this flag.
	SymlinksPreserved bool
}

// DiscoveryError reports that no stage produced a root. Scanned holds every
// directory that was examined, in order, so the failure is diagnosable from
// the message alone.
type DiscoveryError struct {
	Scanned []string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("comfyui root not found; scanned %d paths: %s", len(e.Scanned), strings.Join(e.Scanned, ", "))
}

// Options configures Resolve.
type Options struct {
	// StartDir is the directory the extension is installed in. Empty means
	// the directory of the running executable, falling back to the working
	// directory.
	StartDir string
}

// Resolve locates the host root. The stages are tried in order and the first
// hit wins:
//
//  1. EnvRootOverride, accepted unconditionally.
//  2. Walk the install path upward for a custom_nodes ancestor whose parent
//     carries a marker pair. Symlinks are left intact.
//  3. The same walk on the symlink-resolved install path.
//  4. Walk the install path upward for any directory carrying a marker pair.
//  5. The working directory, if it carries a marker pair or is itself named
//     like an installation and contains custom_nodes.
//
// On failure the returned error is a *DiscoveryError listing every scanned
// directory.
func Resolve(opts Options) (Root, error) {
	if v, ok := os.LookupEnv(EnvRootOverride); ok && strings.TrimSpace(v) != "" {
		if p, err := filepath.Abs(strings.TrimSpace(v)); err == nil {
			return Root{Path: p, Strategy: StrategyEnv, SymlinksPreserved: true}, nil
		}
	}

	start := opts.StartDir
	if start == "" {
		start = executableDir()
	}
	if abs, err := filepath.Abs(start); err == nil {
		start = abs
	}

	var scanned []string

	if root, ok := containerScan(start, &scanned); ok {
		return Root{Path: root, Strategy: StrategyInstallPath, SymlinksPreserved: true}, nil
	}

	if resolved, err := filepath.EvalSymlinks(start); err == nil && resolved != start {
		if root, ok := containerScan(resolved, &scanned); ok {
			return Root{Path: root, Strategy: StrategyResolved, SymlinksPreserved: false}, nil
		}
	}

	if root, ok := markerScan(start, &scanned); ok {
		return Root{Path: root, Strategy: StrategyMarkers, SymlinksPreserved: true}, nil
	}

	if wd, err := os.Getwd(); err == nil {
		scanned = appendScanned(scanned, wd)
		if hasMarkerPair(wd) {
			return Root{Path: wd, Strategy: StrategyWorkingDir, SymlinksPreserved: true}, nil
		}
		if strings.EqualFold(filepath.Base(wd), wellKnownRootName) && isDir(filepath.Join(wd, containerDirName)) {
			return Root{Path: wd, Strategy: StrategyWorkingDir, SymlinksPreserved: true}, nil
		}
	}

	return Root{}, &DiscoveryError{Scanned: scanned}
}

// LooksLikeRoot reports whether dir plausibly is a host installation root.
// Used to validate user-supplied custom roots before any data is written
// under them.
func LooksLikeRoot(dir string) bool {
	return hasMarkerPair(dir) || isDir(filepath.Join(dir, containerDirName))
}

// containerScan walks from start to the filesystem root looking for a
// directory named exactly like the plugin container. The container's parent is
// the candidate root and must carry a marker pair; otherwise the walk
// continues, so a nested custom_nodes inside an extension does not shadow the
// real one.
func containerScan(start string, scanned *[]string) (string, bool) {
	for dir := start; ; {
		*scanned = appendScanned(*scanned, dir)
		if filepath.Base(dir) == containerDirName {
			parent := filepath.Dir(dir)
			if hasMarkerPair(parent) {
				return parent, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// markerScan walks from start to the filesystem root and returns the first
// directory carrying a marker pair.
func markerScan(start string, scanned *[]string) (string, bool) {
	for dir := start; ; {
		*scanned = appendScanned(*scanned, dir)
		if hasMarkerPair(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func hasMarkerPair(dir string) bool {
	for _, pair := range markerPairs {
		if isDir(filepath.Join(dir, pair[0])) && isDir(filepath.Join(dir, pair[1])) {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func appendScanned(list []string, dir string) []string {
	for _, p := range list {
		if p == dir {
			return list
		}
	}
	return append(list, dir)
}

func executableDir() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
