package service

import (
	"github.com/medsafe-risk-server/internal/domain"
)

// Classifier maps a computed score onto a discrete risk level. Pure and
// total: every score in [0,1] maps to exactly one level, and boundary
// values belong to the higher band.
type Classifier struct{}

// NewClassifier creates a classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify applies the override-then-threshold decision table.
//
// If any prescribed drug appears in the patient's allergy set the level
// is CRITICAL regardless of the computed score; the allergy override is
// never downgraded by partial collaborator failures elsewhere. Otherwise
// the score is compared against the thresholds in descending order with
// boundary-inclusive comparison.
func (c *Classifier) Classify(
	score float64,
	prescription []domain.PrescriptionItem,
	history *domain.PatientHistory,
	thresholds domain.Thresholds,
) domain.RiskLevel {
	for _, item := range prescription {
		if history.HasAllergy(item.DrugID) {
			return domain.CRITICAL
		}
	}

	switch {
	case score >= thresholds.Critical:
		return domain.CRITICAL
	case score >= thresholds.High:
		return domain.HIGH
	case score >= thresholds.Moderate:
		return domain.MODERATE
	default:
		return domain.LOW
	}
}

// AllergyConflicts returns the prescribed drug identifiers that match
// the patient's allergy set, for alert payloads and audit explanations.
func (c *Classifier) AllergyConflicts(
	prescription []domain.PrescriptionItem,
	history *domain.PatientHistory,
) []string {
	var conflicts []string
	for _, item := range prescription {
		if history.HasAllergy(item.DrugID) {
			conflicts = append(conflicts, item.DrugID)
		}
	}
	return conflicts
}
