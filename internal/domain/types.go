// Package domain contains core business entities and types for composite
// medication-safety risk assessment: drug-drug interaction (DDI), adverse
// drug reaction (ADR) and drug-food interaction (DFI) signals aggregated
// into a single scored, classified, auditable result.
package domain

import (
	"errors"
	"fmt"
)

// RiskLevel represents the discrete classification of a prescription's
// composite medication-safety risk. Levels are ordered from LOW to
// CRITICAL and drive downstream behaviour: alternative recommendations
// are generated only at HIGH and above, and alerts are raised for
// HIGH/CRITICAL assessments.
type RiskLevel string

const (
	LOW      RiskLevel = "LOW"
	MODERATE RiskLevel = "MODERATE"
	HIGH     RiskLevel = "HIGH"
	CRITICAL RiskLevel = "CRITICAL"
)

// SignalSource identifies the collaborator that produced (or failed to
// produce) a risk signal. Used in missing-signal records so that a
// degraded assessment explains exactly which data was absent.
type SignalSource string

const (
	SourceHistory     SignalSource = "history"
	SourceFeatures    SignalSource = "features"
	SourceDDI         SignalSource = "ddi"
	SourceADR         SignalSource = "adr"
	SourceDFI         SignalSource = "dfi"
	SourceRemedies    SignalSource = "remedies"
	SourceRecommender SignalSource = "recommender"
	SourceEvidence    SignalSource = "evidence"
)

// Validation errors for assessment data integrity
var (
	ErrInvalidRiskLevel = errors.New("invalid risk level")
)

// IsValid validates that the RiskLevel is one of the four defined bands.
// Only valid levels may enter the audit trail or trigger alerts.
func (l RiskLevel) IsValid() bool {
	switch l {
	case LOW, MODERATE, HIGH, CRITICAL:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk level.
// Required for proper logging and audit trails.
func (l RiskLevel) String() string {
	return string(l)
}

// RequiresAlert reports whether assessments at this level must be
// published to the alert channel regardless of other signals.
func (l RiskLevel) RequiresAlert() bool {
	switch l {
	case HIGH, CRITICAL:
		return true
	default:
		return false
	}
}

// RequiresRecommendations reports whether alternative-drug
// recommendations are generated for this level.
func (l RiskLevel) RequiresRecommendations() bool {
	return l == HIGH || l == CRITICAL
}

// LogFields returns structured logging fields for audit trails.
func (l RiskLevel) LogFields() map[string]any {
	return map[string]any{
		"risk_level":       string(l),
		"is_valid":         l.IsValid(),
		"requires_alert":   l.RequiresAlert(),
		"requires_recs":    l.RequiresRecommendations(),
		"clinical_summary": l.ClinicalSummary(),
	}
}

// ClinicalSummary returns a human-readable description of the level for
// reporting and patient communication.
func (l RiskLevel) ClinicalSummary() string {
	switch l {
	case LOW:
		return "Low - No significant interaction risk identified"
	case MODERATE:
		return "Moderate - Monitor for interaction effects"
	case HIGH:
		return "High - Significant interaction risk, review prescription"
	case CRITICAL:
		return "Critical - Unsafe combination or allergy conflict, do not dispense"
	default:
		return "Unknown risk level"
	}
}

// ParseRiskLevel converts a string into a RiskLevel, rejecting anything
// outside the four defined bands.
func ParseRiskLevel(s string) (RiskLevel, error) {
	l := RiskLevel(s)
	if !l.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRiskLevel, s)
	}
	return l, nil
}
