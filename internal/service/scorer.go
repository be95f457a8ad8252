// Package service implements the risk engine: the assessment
// orchestrator and the pure scoring and classification functions it
// drives.
package service

import (
	"github.com/medsafe-risk-server/internal/domain"
)

// Scorer computes the per-drug contributors and the aggregate risk
// score from joined collaborator signals. Pure: no I/O, no clock, no
// randomness; identical inputs and configuration give bit-identical
// output.
type Scorer struct{}

// NewScorer creates a scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score produces one Contributor per prescription item, preserving the
// input order, and the aggregate score: the arithmetic mean of combined
// per-drug scores, clamped to [0,1].
//
// Per drug the combined score is the sum of DDI risks over every pair
// containing the drug, scaled by the DDI weight, plus the drug's ADR
// risk scaled by the ADR weight. A nil ADR entry (failed or timed-out
// call) contributes zero.
func (s *Scorer) Score(
	prescription []domain.PrescriptionItem,
	adrResults []*domain.ADRResult,
	ddiResults []*domain.DDIResult,
	cfg domain.ScoringConfig,
) ([]domain.Contributor, float64) {
	contributors := make([]domain.Contributor, len(prescription))
	total := 0.0

	for i, item := range prescription {
		ddiRisk := 0.0
		for _, ddi := range ddiResults {
			if ddi == nil {
				continue
			}
			if ddi.Pair.Contains(item.DrugID) {
				ddiRisk += ddi.Risk
			}
		}

		adrRisk := 0.0
		if i < len(adrResults) && adrResults[i] != nil {
			adrRisk = adrResults[i].Risk
		}

		combined := cfg.DDIWeight*ddiRisk + cfg.ADRWeight*adrRisk
		contributors[i] = domain.Contributor{
			DrugID:          item.DrugID,
			DDIContribution: ddiRisk,
			ADRContribution: adrRisk,
			CombinedScore:   combined,
		}
		total += combined
	}

	score := total / float64(len(prescription))
	return contributors, clamp01(score)
}

// clamp01 bounds a score to the [0,1] interval.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
