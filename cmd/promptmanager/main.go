/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"promptmanager/internal/config"
	"promptmanager/internal/crash"
	"promptmanager/internal/hostroot"
	applog "promptmanager/internal/log"
	"promptmanager/internal/storage"
	"promptmanager/internal/version"
)

func usage() {
	fmt.Println("Prompt Manager — storage maintenance tool")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  promptmanager version|-v|--version   Show version")
	fmt.Println("  promptmanager root                    Resolve and print the host installation root")
	fmt.Println("  promptmanager datadir                 Print (and create) the extension data directory")
	fmt.Println("  promptmanager settings                Print the resolved database location")
	fmt.Println("  promptmanager relocate <dest>         Move the database to <dest>")
	fmt.Println("  promptmanager reset-location          Move the database back to the managed default")
	fmt.Println("  promptmanager migrate                 Upgrade the database schema in place")
	fmt.Println("  promptmanager import                  Adopt legacy files left at the host root")
	fmt.Println("  promptmanager prune-backups           Delete old backups beyond the configured keep count")
}

func main() {
	cfg, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", cfgErr))
	}

	var ws *storage.Workspace
	defer func() { crash.Recover(ws) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) <= 1 {
		usage()
		return
	}

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Prompt Manager — storage maintenance tool")
		fmt.Println(version.String())
		return
	case "root", "datadir", "settings", "relocate", "reset-location", "migrate", "import", "prune-backups":
		// workspace verbs handled below
	default:
		usage()
		return
	}

	ctx := context.Background()
	w, err := resolveWorkspace(cfg, l)
	if err != nil {
		l.Error("host root resolution failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	ws = w
	st := storage.NewSettingsStore(ws)

	switch args[1] {
	case "root":
		root := ws.HostRoot()
		fmt.Println("Root:", root.Path)
		fmt.Println("Strategy:", root.Strategy)
		return
	case "datadir":
		dir, err := ws.EnsureDataDir()
		if err != nil {
			l.Error("ensure data dir failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Println(dir)
		return
	case "settings":
		loc := st.Location()
		fmt.Println("Settings:", st.Path())
		fmt.Println("Database:", loc.Path)
		fmt.Println("Custom:", loc.Custom)
		if loc.LegacyPath != "" {
			fmt.Println("Legacy file awaiting import:", loc.LegacyPath)
		}
		return
	case "relocate":
		if len(args) < 3 {
			fmt.Println("relocate requires <dest>")
			usage()
			os.Exit(2)
		}
		dest := args[2]
		abs, _ := filepath.Abs(dest)
		l.Info("relocate database", slog.String("dest", abs))
		res, err := storage.Relocate(ws, st, abs)
		if err != nil {
			l.Error("relocate failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		if !res.Changed {
			fmt.Println("Database already at", res.NewPath)
			return
		}
		fmt.Println("Moved database to", res.NewPath)
		return
	case "reset-location":
		res, err := storage.Relocate(ws, st, ws.DefaultDatabasePath())
		if err != nil {
			l.Error("reset location failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		if !res.Changed {
			fmt.Println("Database already at the managed default:", res.NewPath)
			return
		}
		fmt.Println("Moved database back to", res.NewPath)
		return
	case "migrate":
		loc := st.Location()
		if loc.LegacyPath != "" {
			fmt.Println("A legacy database is still at", loc.LegacyPath)
			fmt.Println("Run 'promptmanager import' first.")
			os.Exit(1)
		}
		l.Info("migrate database", slog.String("path", loc.Path))
		db, err := storage.OpenDatabase(ctx, loc.Path)
		if err != nil {
			l.Error("open failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		out, err := storage.Migrate(ctx, db)
		if cerr := db.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			l.Error("migrate failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		for _, to := range out.Tables {
			if !to.Rewritten {
				fmt.Printf("%s: already canonical\n", to.Table)
				continue
			}
			fmt.Printf("%s: rewritten, %d rows migrated, %d skipped\n", to.Table, to.RowsMigrated, to.RowsSkipped)
			for reason, n := range to.SkipReasons {
				fmt.Printf("  skipped %d: %s\n", n, reason)
			}
		}
		return
	case "import":
		report, err := storage.ImportLegacy(ctx, ws, st)
		if err != nil {
			l.Error("import failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		for _, name := range report.Migrated {
			fmt.Println("Imported", name)
		}
		for _, name := range report.Skipped {
			fmt.Println("Skipped", name, "(already migrated)")
		}
		for _, issue := range report.Issues {
			fmt.Printf("Failed %s: %v\n", issue.Name, issue.Err)
		}
		if len(report.Migrated)+len(report.Skipped)+len(report.Issues) == 0 {
			fmt.Println("Nothing to import.")
		}
		if !report.Clean() {
			os.Exit(1)
		}
		return
	case "prune-backups":
		deleted, err := storage.PruneBackups(ws, cfg.Backups.KeepLast)
		if err != nil {
			l.Error("prune backups failed", slog.Any("err", err))
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted %d old backup(s), keeping the newest %d per file.\n", deleted, cfg.Backups.KeepLast)
		return
	}

	usage()
}

// resolveWorkspace anchors the workspace at the configured host root if one
// is set, falling back to discovery.
func resolveWorkspace(cfg config.AppConfig, l *slog.Logger) (*storage.Workspace, error) {
	if cfg.Host.Root != "" {
		abs, err := filepath.Abs(cfg.Host.Root)
		if err != nil {
			return nil, fmt.Errorf("resolve configured root: %w", err)
		}
		l.Debug("using configured host root", slog.String("root", abs))
		return storage.NewWorkspace(hostroot.Root{Path: abs, Strategy: hostroot.StrategyConfig, SymlinksPreserved: true}), nil
	}
	root, err := hostroot.Resolve(hostroot.Options{})
	if err != nil {
		return nil, err
	}
	l.Debug("host root discovered", slog.String("root", root.Path), slog.String("strategy", string(root.Strategy)))
	return storage.NewWorkspace(root), nil
}
