package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medsafe-risk-server/internal/alert"
	"github.com/medsafe-risk-server/internal/api"
	"github.com/medsafe-risk-server/internal/audit"
	"github.com/medsafe-risk-server/internal/config"
	"github.com/medsafe-risk-server/internal/database"
	"github.com/medsafe-risk-server/internal/domain"
	"github.com/medsafe-risk-server/internal/riskconfig"
	"github.com/medsafe-risk-server/internal/service"
	"github.com/medsafe-risk-server/pkg/external"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting MedSafe risk server")

	// Scoring weights and thresholds
	scoringConfig := riskconfig.NewStore(logger)
	if err := scoringConfig.LoadFiles(cfg.Scoring.WeightsPath, cfg.Scoring.ThresholdsPath); err != nil {
		logger.WithError(err).Fatal("Failed to load scoring configuration")
	}

	// Audit trail backend
	auditStore, err := newAuditStore(cfg.Audit, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize audit store")
	}
	defer auditStore.Close()

	// Alert publisher
	var alerts domain.AlertPublisher
	if cfg.Alerts.RedisURL != "" {
		publisher, err := alert.NewRedisPublisher(cfg.Alerts.RedisURL, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect alert publisher")
		}
		defer publisher.Close()
		alerts = publisher
	} else {
		logger.Warn("No alert redis_url configured, alerts will only be logged")
		alerts = alert.NewLogPublisher(logger)
	}

	// Collaborator clients with circuit breakers and caching
	var cache *external.CacheClient
	if cfg.Cache.RedisURL != "" {
		cache, err = external.NewCacheClient(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Cache unavailable, continuing without it")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	collaborators, err := external.NewResilientCollaborators(cfg.Collaborators, cfg.Cache, cache, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize collaborator clients")
	}

	orchestrator := service.NewOrchestrator(
		logger,
		service.Collaborators{
			History:     collaborators,
			Features:    collaborators,
			DDI:         collaborators,
			ADR:         collaborators,
			DFI:         collaborators,
			Remedies:    collaborators,
			Recommender: collaborators,
			Evidence:    collaborators,
		},
		scoringConfig,
		audit.NewSink(auditStore),
		alerts,
		service.Options{
			CallTimeout:     cfg.Collaborators.CallTimeout,
			AuditRetries:    cfg.Audit.Retries,
			AuditRetryDelay: cfg.Audit.RetryDelay,
		},
	)

	// Create server
	server := api.NewServer(configManager, orchestrator, scoringConfig, auditStore, collaborators, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return logger
}

// newAuditStore opens the configured audit backend. Postgres gets its
// schema migrated before use; sqlite creates its own schema on open.
func newAuditStore(cfg domain.AuditConfig, logger *logrus.Logger) (audit.Store, error) {
	switch cfg.Backend {
	case "postgres":
		ctx := context.Background()

		runner, err := database.NewMigrationRunner(cfg.PostgresURL, cfg.MigrationsPath, logger)
		if err != nil {
			return nil, err
		}
		defer runner.Close()
		if err := runner.Up(ctx); err != nil {
			return nil, err
		}

		db, err := database.NewConnection(ctx, database.Config{
			URL:         cfg.PostgresURL,
			MaxConns:    25,
			MaxIdle:     5,
			MaxConnLife: 5 * time.Minute,
		}, logger)
		if err != nil {
			return nil, err
		}

		store, err := audit.NewPostgresStore(db.Conn)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	default:
		return audit.NewSQLiteStore(cfg.SQLitePath)
	}
}
