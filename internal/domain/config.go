package domain

import (
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Alerts        AlertConfig         `mapstructure:"alerts"`
	Scoring       ScoringFilesConfig  `mapstructure:"scoring"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// CollaboratorConfig represents one external knowledge-source endpoint.
type CollaboratorConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"`
}

// CollaboratorsConfig bundles all collaborator endpoints.
type CollaboratorsConfig struct {
	// CallTimeout bounds every individual fan-out sub-call.
	CallTimeout time.Duration `mapstructure:"call_timeout"`

	KnowledgeGraph CollaboratorConfig `mapstructure:"knowledge_graph"`
	FeatureGen     CollaboratorConfig `mapstructure:"featuregen"`
	DDIPredictor   CollaboratorConfig `mapstructure:"ddi_predictor"`
	DFIService     CollaboratorConfig `mapstructure:"dfi_service"`
	MedLM          CollaboratorConfig `mapstructure:"medlm"`
	Recommender    CollaboratorConfig `mapstructure:"recommender"`
}

// CacheConfig represents the Redis cache configuration.
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	// FeatureLRUSize bounds the in-process feature vector cache.
	FeatureLRUSize int `mapstructure:"feature_lru_size"`
}

// AuditConfig selects and configures the audit trail backend.
type AuditConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend        string        `mapstructure:"backend"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
	PostgresURL    string        `mapstructure:"postgres_url"`
	MigrationsPath string        `mapstructure:"migrations_path"`
	Retries        int           `mapstructure:"retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

// AlertConfig configures the alert publisher.
type AlertConfig struct {
	// RedisURL enables the pub/sub publisher; empty falls back to the
	// log-only publisher.
	RedisURL string `mapstructure:"redis_url"`
}

// ScoringFilesConfig points at the weight and threshold documents loaded
// into the scoring configuration store at start.
type ScoringFilesConfig struct {
	WeightsPath    string `mapstructure:"weights_path"`
	ThresholdsPath string `mapstructure:"thresholds_path"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
