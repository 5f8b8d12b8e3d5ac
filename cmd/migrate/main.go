// Command migrate applies or rolls back the PostgreSQL schema
// migrations without starting the server.
package main

import (
	"flag"
	"log"

	"github.com/AshishSingh1503/HelixMind/internal/config"
	"github.com/AshishSingh1503/HelixMind/internal/database"
	"github.com/AshishSingh1503/HelixMind/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := configManager.GetConfig()

	if cfg.Storage.Backend != "postgres" {
		log.Fatalf("Migrations apply to the postgres backend, configured backend is %q", cfg.Storage.Backend)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	dbCfg := database.Config{
		Host:     cfg.Storage.Postgres.Host,
		Port:     cfg.Storage.Postgres.Port,
		Database: cfg.Storage.Postgres.Database,
		Username: cfg.Storage.Postgres.Username,
		Password: cfg.Storage.Postgres.Password,
		SSLMode:  cfg.Storage.Postgres.SSLMode,
	}

	runner, err := database.NewMigrationRunner(dbCfg.URL(), cfg.Storage.Postgres.MigrationsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Could not create migration runner")
	}
	defer runner.Close()

	switch *direction {
	case "up":
		err = runner.Up()
	case "down":
		err = runner.Down()
	default:
		logger.Fatalf("Unknown migration direction: %q", *direction)
	}
	if err != nil {
		logger.WithError(err).Fatal("Migration failed")
	}

	logger.WithField("direction", *direction).Info("Migrations complete")
}
