/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the user-editable YAML configuration for the prompt
// manager storage tools. Environment variables are read-only overrides applied
// on top of the file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	env "github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// HostConfig pins the host installation when automatic discovery is not wanted.
type HostConfig struct {
	// Root is an absolute path to the host installation root. When set it
	// bypasses discovery entirely.
	Root string `yaml:"root" env:"PM_HOST_ROOT"`
}

// BackupsConfig controls retention of timestamped backups in the data directory.
type BackupsConfig struct {
	KeepLast int `yaml:"keep_last" env:"PM_BACKUPS_KEEP_LAST"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"PM_LOG_LEVEL"`
	Format string `yaml:"format" env:"PM_LOG_FORMAT"`
	Source bool   `yaml:"source" env:"PM_LOG_SOURCE"`
	File   string `yaml:"file" env:"PM_LOG_FILE"`
}

// AppConfig is persisted to a YAML file in the user scope.
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version" env:"-"`
	Host          HostConfig    `yaml:"host"`
	Backups       BackupsConfig `yaml:"backups"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Host:          HostConfig{Root: ""},
		Backups:       BackupsConfig{KeepLast: 10},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "PromptManager")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "PromptManager")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "promptmanager")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("apply env overrides: %w", err)
	}
	normalize(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if strings.TrimSpace(src.Host.Root) != "" {
		dst.Host.Root = strings.TrimSpace(src.Host.Root)
	}
	if src.Backups.KeepLast != 0 {
		dst.Backups.KeepLast = src.Backups.KeepLast
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = src.Logging.Format
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func normalize(cfg *AppConfig) {
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	if cfg.Backups.KeepLast < 0 {
		cfg.Backups.KeepLast = 0
	}
}
