// Package config loads the process configuration (server, collaborator
// endpoints, cache, audit, logging) via Viper. Scoring weights and
// thresholds are deliberately not handled here; they live in the
// atomically replaceable store in internal/riskconfig.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/medsafe-risk-server/internal/domain"
)

// Manager loads and exposes the application configuration.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment and defaults.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/medsafe-risk-server/")

	viper.SetEnvPrefix("MEDSAFE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover local runs.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values.
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Collaborator defaults
	viper.SetDefault("collaborators.call_timeout", "5s")
	viper.SetDefault("collaborators.knowledge_graph.base_url", "http://localhost:7101")
	viper.SetDefault("collaborators.knowledge_graph.timeout", "5s")
	viper.SetDefault("collaborators.featuregen.base_url", "http://localhost:7102")
	viper.SetDefault("collaborators.featuregen.timeout", "5s")
	viper.SetDefault("collaborators.ddi_predictor.base_url", "http://localhost:7103")
	viper.SetDefault("collaborators.ddi_predictor.timeout", "5s")
	viper.SetDefault("collaborators.dfi_service.base_url", "http://localhost:7104")
	viper.SetDefault("collaborators.dfi_service.timeout", "5s")
	viper.SetDefault("collaborators.medlm.base_url", "http://localhost:7105")
	viper.SetDefault("collaborators.medlm.timeout", "10s")
	viper.SetDefault("collaborators.medlm.rate_limit", 5)
	viper.SetDefault("collaborators.recommender.base_url", "http://localhost:7106")
	viper.SetDefault("collaborators.recommender.timeout", "5s")

	// Cache defaults
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.feature_lru_size", 2048)

	// Audit defaults
	viper.SetDefault("audit.backend", "sqlite")
	viper.SetDefault("audit.sqlite_path", "./data/risk_audit.db")
	viper.SetDefault("audit.migrations_path", "./migrations")
	viper.SetDefault("audit.retries", 2)
	viper.SetDefault("audit.retry_delay", "100ms")

	// Alert defaults: empty redis_url selects the log-only publisher
	viper.SetDefault("alerts.redis_url", "")

	// Scoring file defaults
	viper.SetDefault("scoring.weights_path", "./config/risk_weights.yaml")
	viper.SetDefault("scoring.thresholds_path", "./config/risk_thresholds.yaml")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetCollaboratorsConfig returns collaborator endpoint configuration.
func (m *Manager) GetCollaboratorsConfig() *domain.CollaboratorsConfig {
	return &m.config.Collaborators
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	endpoints := map[string]string{
		"knowledge_graph": config.Collaborators.KnowledgeGraph.BaseURL,
		"featuregen":      config.Collaborators.FeatureGen.BaseURL,
		"ddi_predictor":   config.Collaborators.DDIPredictor.BaseURL,
		"dfi_service":     config.Collaborators.DFIService.BaseURL,
		"medlm":           config.Collaborators.MedLM.BaseURL,
		"recommender":     config.Collaborators.Recommender.BaseURL,
	}
	for name, url := range endpoints {
		if url == "" {
			return fmt.Errorf("collaborator %s base URL is required", name)
		}
	}

	switch config.Audit.Backend {
	case "sqlite":
		if config.Audit.SQLitePath == "" {
			return fmt.Errorf("audit sqlite_path is required for the sqlite backend")
		}
	case "postgres":
		if config.Audit.PostgresURL == "" {
			return fmt.Errorf("audit postgres_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid audit backend: %s", config.Audit.Backend)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}
