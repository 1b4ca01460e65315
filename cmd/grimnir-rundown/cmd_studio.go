/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_rundown/internal/cache"
	"github.com/friendsincode/grimnir_rundown/internal/config"
	"github.com/friendsincode/grimnir_rundown/internal/db"
	"github.com/friendsincode/grimnir_rundown/internal/server"
	"github.com/friendsincode/grimnir_rundown/internal/store"
)

var seedFile string

var seedStudioCmd = &cobra.Command{
	Use:   "seed-studio",
	Short: "Create or update studios from a YAML file",
	Long: `Reads studio definitions and upserts them into the database. Settings
missing from the file use the defaults for a fresh studio.

Examples:
  grimnir-rundown seed-studio --file studios.yaml`,
	RunE: runSeedStudio,
}

func init() {
	seedStudioCmd.Flags().StringVar(&seedFile, "file", "", "Path to studio YAML (defaults to GRIMNIR_STUDIO_FILE)")
	rootCmd.AddCommand(seedStudioCmd)
}

func runSeedStudio(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	path := seedFile
	if path == "" {
		path = cfg.StudioFile
	}
	if path == "" {
		return fmt.Errorf("no studio file given")
	}

	studios, err := config.LoadStudioFile(path)
	if err != nil {
		return err
	}

	database, err := db.Connect(cfg, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st := store.New(database, cache.New(nil, cache.DefaultConfig(), logger), logger)
	if err := server.SeedStudios(ctx, st, studios, logger); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d studio(s) from %s\n", len(studios), path)
	return nil
}
