// Package riskconfig holds the scoring weights and classification
// thresholds used by the risk engine. Configuration is loaded once at
// process start and replaced atomically on administrative update; every
// assessment captures one immutable snapshot for its whole computation.
package riskconfig

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/medsafe-risk-server/internal/domain"
)

// Default scoring parameters, used when no configuration files are
// provided. Values mirror the operational defaults of the risk service.
var defaultConfig = domain.ScoringConfig{
	DDIWeight: 0.5,
	ADRWeight: 0.5,
	Thresholds: domain.Thresholds{
		Critical: 0.9,
		High:     0.7,
		Moderate: 0.3,
	},
}

// Store implements domain.ConfigStore with an atomic pointer swap.
// Reads never block writers and in-flight assessments keep the snapshot
// they captured at start.
type Store struct {
	current atomic.Pointer[domain.ScoringConfig]
	logger  *logrus.Logger
}

// NewStore creates a store seeded with the default configuration.
func NewStore(logger *logrus.Logger) *Store {
	s := &Store{logger: logger}
	cfg := defaultConfig
	cfg.Version = uuid.NewString()
	s.current.Store(&cfg)
	return s
}

// LoadFiles reads the weights and thresholds YAML documents and installs
// them as the current configuration. Missing paths leave the defaults in
// place; an invalid document is rejected without a partial apply.
func (s *Store) LoadFiles(weightsPath, thresholdsPath string) error {
	cfg := defaultConfig

	if weightsPath != "" {
		v := viper.New()
		v.SetConfigFile(weightsPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading weights file: %w", err)
		}
		cfg.DDIWeight = v.GetFloat64("ddi_weight")
		cfg.ADRWeight = v.GetFloat64("adr_weight")
	}

	if thresholdsPath != "" {
		v := viper.New()
		v.SetConfigFile(thresholdsPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading thresholds file: %w", err)
		}
		if err := v.Unmarshal(&cfg.Thresholds); err != nil {
			return fmt.Errorf("unmarshaling thresholds: %w", err)
		}
	}

	return s.Replace(cfg)
}

// Snapshot returns the current configuration. The returned value is a
// copy; callers can hold it across the whole assessment.
func (s *Store) Snapshot() domain.ScoringConfig {
	return *s.current.Load()
}

// Replace validates the candidate configuration and swaps it in
// atomically. On validation failure the prior configuration is retained
// untouched.
func (s *Store) Replace(cfg domain.ScoringConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", domain.ErrCodeInvalidConfiguration, err)
	}

	cfg.Version = uuid.NewString()
	s.current.Store(&cfg)

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"config_version": cfg.Version,
			"ddi_weight":     cfg.DDIWeight,
			"adr_weight":     cfg.ADRWeight,
			"t_moderate":     cfg.Thresholds.Moderate,
			"t_high":         cfg.Thresholds.High,
			"t_critical":     cfg.Thresholds.Critical,
		}).Info("Scoring configuration replaced")
	}
	return nil
}
