package domain

import (
	"context"
)

// PatientHistoryProvider resolves a patient's allergy and condition sets.
// A miss is surfaced as ErrPatientNotFound and is terminal for the request.
type PatientHistoryProvider interface {
	GetPatientHistory(ctx context.Context, patientID string) (*PatientHistory, error)
}

// FeatureProvider returns the knowledge-graph feature vector for one
// drug in the context of one patient.
type FeatureProvider interface {
	GetFeatures(ctx context.Context, patientID, drugID string) (*FeatureVector, error)
}

// InteractionPredictor predicts the interaction risk for one drug pair.
type InteractionPredictor interface {
	GetDDI(ctx context.Context, drugID1, drugID2 string) (*DDIResult, error)
}

// AdverseReactionProvider returns the adverse-reaction signal for one
// drug in the context of one patient.
type AdverseReactionProvider interface {
	GetADR(ctx context.Context, patientID, drugID string) (*ADRResult, error)
}

// FoodInteractionProvider returns the food-interaction cautions for one drug.
type FoodInteractionProvider interface {
	GetDFI(ctx context.Context, drugID string) ([]DFIItem, error)
}

// RemedyProvider returns home-remedy suggestions for a drug by display name.
type RemedyProvider interface {
	GetHomeRemedies(ctx context.Context, drugName string) ([]RemedySuggestion, error)
}

// AlternativeRecommender suggests therapeutically similar alternative
// drugs, using the patient history as exclusion context.
type AlternativeRecommender interface {
	GetAlternatives(ctx context.Context, drugID string, history *PatientHistory) ([]string, error)
}

// EvidencePathProvider returns knowledge-graph paths supporting a
// claimed interaction between two drugs.
type EvidencePathProvider interface {
	GetEvidencePaths(ctx context.Context, drugID1, drugID2 string) ([]EvidencePath, error)
}

// AuditSink receives exactly one audit record per completed assessment.
// Implementations must not block the response beyond a short bounded retry.
type AuditSink interface {
	LogAudit(ctx context.Context, record *AuditRecord) error
}

// AlertPublisher is notified when an assessment classifies HIGH/CRITICAL
// or carries a food-interaction flag.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, event AlertEvent) error
}

// ConfigStore holds the current scoring weights and thresholds. Snapshot
// must return one consistent configuration; Replace is an atomic swap
// that leaves in-flight assessments on the snapshot they captured.
type ConfigStore interface {
	Snapshot() ScoringConfig
	Replace(cfg ScoringConfig) error
}
