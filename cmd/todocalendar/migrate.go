package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"todo-calendar/internal/config"
	"todo-calendar/internal/logger"
	"todo-calendar/internal/repository"
)

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFile, cfg.IsProduction())
	defer func() { _ = log.Sync() }()

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	log.Info("database migrated")
	return nil
}
