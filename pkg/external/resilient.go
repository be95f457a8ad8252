package external

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/medsafe-risk-server/internal/domain"
)

// ResilientCollaborators wraps the collaborator clients with one
// circuit breaker per service and cache-aside reads for the pure
// pair-keyed lookups (DDI predictions, evidence paths). It implements
// every collaborator interface the orchestrator consumes.
type ResilientCollaborators struct {
	kg          *KGClient
	features    *FeatureGenClient
	ddi         *DDIClient
	dfi         *DFIClient
	medlm       *MedLMClient
	recommender *RecommenderClient
	cache       *CacheClient

	kgBreaker          *gobreaker.CircuitBreaker
	featuresBreaker    *gobreaker.CircuitBreaker
	ddiBreaker         *gobreaker.CircuitBreaker
	dfiBreaker         *gobreaker.CircuitBreaker
	medlmBreaker       *gobreaker.CircuitBreaker
	recommenderBreaker *gobreaker.CircuitBreaker

	logger *logrus.Logger
}

// NewResilientCollaborators builds the collaborator stack from the
// endpoint configuration. The cache client may be nil; caching is then
// skipped entirely.
func NewResilientCollaborators(cfg domain.CollaboratorsConfig, cacheCfg domain.CacheConfig, cache *CacheClient, logger *logrus.Logger) (*ResilientCollaborators, error) {
	features, err := NewFeatureGenClient(cfg.FeatureGen, cacheCfg.FeatureLRUSize)
	if err != nil {
		return nil, fmt.Errorf("creating featuregen client: %w", err)
	}

	r := &ResilientCollaborators{
		kg:          NewKGClient(cfg.KnowledgeGraph),
		features:    features,
		ddi:         NewDDIClient(cfg.DDIPredictor),
		dfi:         NewDFIClient(cfg.DFIService),
		medlm:       NewMedLMClient(cfg.MedLM),
		recommender: NewRecommenderClient(cfg.Recommender),
		cache:       cache,
		logger:      logger,
	}

	r.kgBreaker = r.newBreaker("knowledge-graph")
	r.featuresBreaker = r.newBreaker("featuregen")
	r.ddiBreaker = r.newBreaker("ddi-predictor")
	r.dfiBreaker = r.newBreaker("dfi-service")
	r.medlmBreaker = r.newBreaker("medlm")
	r.recommenderBreaker = r.newBreaker("recommender")

	return r, nil
}

// newBreaker creates a circuit breaker with the shared trip policy:
// open after at least three requests with a 60% failure ratio.
func (r *ResilientCollaborators) newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.WithFields(logrus.Fields{
				"collaborator": name,
				"from":         from.String(),
				"to":           to.String(),
			}).Warn("Collaborator circuit breaker state changed")
		},
	})
}

// GetPatientHistory resolves the patient history through the
// knowledge-graph breaker. Histories are never cached: allergy data must
// always be current.
func (r *ResilientCollaborators) GetPatientHistory(ctx context.Context, patientID string) (*domain.PatientHistory, error) {
	result, err := r.kgBreaker.Execute(func() (interface{}, error) {
		return r.kg.GetPatientHistory(ctx, patientID)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("knowledge graph unavailable (circuit breaker open)")
		}
		return nil, err
	}
	return result.(*domain.PatientHistory), nil
}

// GetFeatures fetches a feature vector through the featuregen breaker.
func (r *ResilientCollaborators) GetFeatures(ctx context.Context, patientID, drugID string) (*domain.FeatureVector, error) {
	result, err := r.featuresBreaker.Execute(func() (interface{}, error) {
		return r.features.GetFeatures(ctx, patientID, drugID)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("featuregen unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("featuregen query failed: %w", err)
	}
	return result.(*domain.FeatureVector), nil
}

// GetDDI predicts pair risk with cache-aside and circuit breaking. When
// the breaker is open a cached prediction still serves the request.
func (r *ResilientCollaborators) GetDDI(ctx context.Context, drugID1, drugID2 string) (*domain.DDIResult, error) {
	if r.cache != nil {
		if cached, found, err := r.cache.GetDDI(ctx, drugID1, drugID2); err == nil && found {
			return cached, nil
		}
	}

	result, err := r.ddiBreaker.Execute(func() (interface{}, error) {
		return r.ddi.GetDDI(ctx, drugID1, drugID2)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("DDI predictor unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("DDI query failed: %w", err)
	}

	ddi := result.(*domain.DDIResult)
	if r.cache != nil {
		if cacheErr := r.cache.SetDDI(ctx, drugID1, drugID2, ddi, 0); cacheErr != nil {
			r.logger.WithError(cacheErr).Debug("Failed to cache DDI prediction")
		}
	}
	return ddi, nil
}

// GetADR fetches the adverse-reaction signal through the
// knowledge-graph breaker.
func (r *ResilientCollaborators) GetADR(ctx context.Context, patientID, drugID string) (*domain.ADRResult, error) {
	result, err := r.kgBreaker.Execute(func() (interface{}, error) {
		return r.kg.GetADR(ctx, patientID, drugID)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("knowledge graph unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("ADR query failed: %w", err)
	}
	return result.(*domain.ADRResult), nil
}

// GetDFI fetches food-interaction cautions through the DFI breaker.
func (r *ResilientCollaborators) GetDFI(ctx context.Context, drugID string) ([]domain.DFIItem, error) {
	result, err := r.dfiBreaker.Execute(func() (interface{}, error) {
		return r.dfi.GetDFI(ctx, drugID)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("DFI service unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("DFI query failed: %w", err)
	}
	return result.([]domain.DFIItem), nil
}

// GetHomeRemedies fetches remedy suggestions through the medlm breaker.
func (r *ResilientCollaborators) GetHomeRemedies(ctx context.Context, drugName string) ([]domain.RemedySuggestion, error) {
	result, err := r.medlmBreaker.Execute(func() (interface{}, error) {
		return r.medlm.GetHomeRemedies(ctx, drugName)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("medlm unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("remedy query failed: %w", err)
	}
	return result.([]domain.RemedySuggestion), nil
}

// GetAlternatives fetches alternative drugs through the recommender breaker.
func (r *ResilientCollaborators) GetAlternatives(ctx context.Context, drugID string, history *domain.PatientHistory) ([]string, error) {
	result, err := r.recommenderBreaker.Execute(func() (interface{}, error) {
		return r.recommender.GetAlternatives(ctx, drugID, history)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("recommender unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("alternatives query failed: %w", err)
	}
	return result.([]string), nil
}

// GetEvidencePaths fetches evidence paths with cache-aside and circuit
// breaking through the knowledge-graph breaker.
func (r *ResilientCollaborators) GetEvidencePaths(ctx context.Context, drugID1, drugID2 string) ([]domain.EvidencePath, error) {
	if r.cache != nil {
		if cached, found, err := r.cache.GetEvidencePaths(ctx, drugID1, drugID2); err == nil && found {
			return cached, nil
		}
	}

	result, err := r.kgBreaker.Execute(func() (interface{}, error) {
		return r.kg.GetEvidencePaths(ctx, drugID1, drugID2)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("knowledge graph unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("evidence query failed: %w", err)
	}

	paths := result.([]domain.EvidencePath)
	if r.cache != nil {
		if cacheErr := r.cache.SetEvidencePaths(ctx, drugID1, drugID2, paths, 0); cacheErr != nil {
			r.logger.WithError(cacheErr).Debug("Failed to cache evidence paths")
		}
	}
	return paths, nil
}

// BreakerStates returns the current state of all collaborator circuit
// breakers, for the health endpoint.
func (r *ResilientCollaborators) BreakerStates() map[string]string {
	return map[string]string{
		"knowledge_graph": r.kgBreaker.State().String(),
		"featuregen":      r.featuresBreaker.State().String(),
		"ddi_predictor":   r.ddiBreaker.State().String(),
		"dfi_service":     r.dfiBreaker.State().String(),
		"medlm":           r.medlmBreaker.State().String(),
		"recommender":     r.recommenderBreaker.State().String(),
	}
}
