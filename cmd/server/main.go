package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/AshishSingh1503/HelixMind/internal/annotation"
	"github.com/AshishSingh1503/HelixMind/internal/api"
	"github.com/AshishSingh1503/HelixMind/internal/cache"
	"github.com/AshishSingh1503/HelixMind/internal/config"
	"github.com/AshishSingh1503/HelixMind/internal/database"
	"github.com/AshishSingh1503/HelixMind/internal/logging"
	"github.com/AshishSingh1503/HelixMind/internal/pipeline"
	"github.com/AshishSingh1503/HelixMind/internal/risk"
	"github.com/AshishSingh1503/HelixMind/internal/service"
	"github.com/AshishSingh1503/HelixMind/internal/storage"
	"github.com/AshishSingh1503/HelixMind/internal/vcf"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"backend": cfg.Storage.Backend,
	}).Info("Starting HelixMind server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Could not initialize storage")
	}
	defer store.Close()

	table, err := buildGeneTable(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Could not load gene association table")
	}
	logger.WithField("chromosomes", table.Size()).Info("Gene association table loaded")

	scorer, err := risk.LoadScorer(cfg.Model.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Could not load risk model artifact")
	}

	results, err := cache.New(cache.Options{
		LocalSize: cfg.Cache.LocalSize,
		RedisURL:  cfg.Cache.RedisURL,
		TTL:       cfg.Cache.TTL,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Could not initialize results cache")
	}
	defer results.Close()

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		logger.WithError(err).Fatal("Could not create upload directory")
	}

	pl := pipeline.New(vcf.NewExtractor(logger), annotation.NewAnnotator(table), scorer, logger)

	authService := service.NewAuthService(store, cfg.Auth.Secret, cfg.Auth.TokenTTL, logger)
	analysisService := service.NewAnalysisService(store, pl, results, cfg.Upload.Dir, logger)

	runner := service.NewRunner(cfg.Worker.Count, cfg.Worker.QueueSize, analysisService.Process, logger)
	analysisService.SetRunner(runner)
	runner.Start(ctx)
	defer runner.Stop()

	server := api.NewServer(cfg, authService, analysisService, store, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// buildStore selects the record store backend from configuration.
func buildStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil

	case "sqlite":
		return storage.NewSQLiteStore(cfg.Storage.SQLite.Path)

	case "postgres":
		dbCfg := database.Config{
			Host:        cfg.Storage.Postgres.Host,
			Port:        cfg.Storage.Postgres.Port,
			Database:    cfg.Storage.Postgres.Database,
			Username:    cfg.Storage.Postgres.Username,
			Password:    cfg.Storage.Postgres.Password,
			SSLMode:     cfg.Storage.Postgres.SSLMode,
			MaxConns:    int32(cfg.Storage.Postgres.MaxConns),
			MinConns:    int32(cfg.Storage.Postgres.MinConns),
			MaxConnLife: cfg.Storage.Postgres.ConnMaxLifetime,
			MaxConnIdle: cfg.Storage.Postgres.ConnMaxIdleTime,
		}

		if cfg.Storage.Postgres.AutoMigrate {
			runner, err := database.NewMigrationRunner(dbCfg.URL(), cfg.Storage.Postgres.MigrationsPath, logger)
			if err != nil {
				return nil, fmt.Errorf("creating migration runner: %w", err)
			}
			if err := runner.Up(); err != nil {
				runner.Close()
				return nil, fmt.Errorf("applying migrations: %w", err)
			}
			runner.Close()
		}

		db, err := database.NewConnection(ctx, dbCfg, logger)
		if err != nil {
			return nil, err
		}
		return storage.NewPostgresStore(db.Pool, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

// buildGeneTable loads the external table when configured, otherwise
// uses the built-in curated one.
func buildGeneTable(cfg *config.Config) (*annotation.GeneTable, error) {
	if cfg.Genes.Path == "" {
		return annotation.DefaultGeneTable(), nil
	}
	return annotation.LoadGeneTable(cfg.Genes.Path)
}
