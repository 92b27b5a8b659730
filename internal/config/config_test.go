/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"testing"
)

func TestEnvOverridesHostRoot(t *testing.T) {
	old := os.Getenv("PM_HOST_ROOT")
	_ = os.Setenv("PM_HOST_ROOT", "/srv/comfyui")
	t.Cleanup(func() { _ = os.Setenv("PM_HOST_ROOT", old) })
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Host.Root, "/srv/comfyui"; got != want {
		t.Fatalf("Host.Root = %q, want %q", got, want)
	}
}

func TestEnvOverridesBackupsKeepLast(t *testing.T) {
	old := os.Getenv("PM_BACKUPS_KEEP_LAST")
	_ = os.Setenv("PM_BACKUPS_KEEP_LAST", "3")
	t.Cleanup(func() { _ = os.Setenv("PM_BACKUPS_KEEP_LAST", old) })
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backups.KeepLast != 3 {
		t.Fatalf("Backups.KeepLast = %d, want 3", cfg.Backups.KeepLast)
	}
}

func TestMergeIncludesHostRoot(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Host.Root = "/opt/comfy"
	mergeInto(&dst, &src)
	if dst.Host.Root != "/opt/comfy" {
		t.Fatalf("Host.Root was not merged from file config")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/pm.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/pm.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	oldLevel := os.Getenv("PM_LOG_LEVEL")
	oldFmt := os.Getenv("PM_LOG_FORMAT")
	oldSrc := os.Getenv("PM_LOG_SOURCE")
	oldFile := os.Getenv("PM_LOG_FILE")
	_ = os.Setenv("PM_LOG_LEVEL", "ERROR")
	_ = os.Setenv("PM_LOG_FORMAT", "json")
	_ = os.Setenv("PM_LOG_SOURCE", "1")
	_ = os.Setenv("PM_LOG_FILE", "X:/pm.log")
	t.Cleanup(func() {
		_ = os.Setenv("PM_LOG_LEVEL", oldLevel)
		_ = os.Setenv("PM_LOG_FORMAT", oldFmt)
		_ = os.Setenv("PM_LOG_SOURCE", oldSrc)
		_ = os.Setenv("PM_LOG_FILE", oldFile)
	})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/pm.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestNormalizeClampsKeepLast(t *testing.T) {
	cfg := Defaults()
	cfg.Backups.KeepLast = -5
	normalize(&cfg)
	if cfg.Backups.KeepLast != 0 {
		t.Fatalf("KeepLast = %d, want 0", cfg.Backups.KeepLast)
	}
}
