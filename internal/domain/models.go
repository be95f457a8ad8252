package domain

import (
	"fmt"
	"time"
)

// PrescriptionItem is a single prescribed drug. Immutable once a request
// is accepted; DrugID is the opaque identifier used by all collaborators.
type PrescriptionItem struct {
	DrugID string `json:"drug_id" validate:"required"`
	Name   string `json:"name"`
	Dose   string `json:"dose,omitempty"`
	Route  string `json:"route,omitempty"`
}

// Validate ensures the prescription item can enter the assessment pipeline.
func (p *PrescriptionItem) Validate() error {
	if p.DrugID == "" {
		return fmt.Errorf("prescription item validation: %w", ErrMissingDrugID)
	}
	return nil
}

// PatientHistory is a read-only snapshot of the patient's allergy and
// condition sets, held for the duration of one assessment.
type PatientHistory struct {
	PatientID  string              `json:"patient_id"`
	Allergies  map[string]struct{} `json:"-"`
	Conditions map[string]struct{} `json:"-"`
}

// NewPatientHistory builds a history snapshot from allergy and condition
// identifier lists.
func NewPatientHistory(patientID string, allergies, conditions []string) *PatientHistory {
	h := &PatientHistory{
		PatientID:  patientID,
		Allergies:  make(map[string]struct{}, len(allergies)),
		Conditions: make(map[string]struct{}, len(conditions)),
	}
	for _, a := range allergies {
		h.Allergies[a] = struct{}{}
	}
	for _, c := range conditions {
		h.Conditions[c] = struct{}{}
	}
	return h
}

// HasAllergy reports whether the given drug or allergen identifier is in
// the patient's allergy set.
func (h *PatientHistory) HasAllergy(id string) bool {
	if h == nil {
		return false
	}
	_, ok := h.Allergies[id]
	return ok
}

// AllergyList returns the allergy identifiers as a slice, for recommender
// exclusion context and serialization.
func (h *PatientHistory) AllergyList() []string {
	out := make([]string, 0, len(h.Allergies))
	for a := range h.Allergies {
		out = append(out, a)
	}
	return out
}

// ConditionList returns the condition identifiers as a slice.
func (h *PatientHistory) ConditionList() []string {
	out := make([]string, 0, len(h.Conditions))
	for c := range h.Conditions {
		out = append(out, c)
	}
	return out
}

// FeatureVector is the knowledge-graph feature embedding for one drug in
// the context of one patient, produced by the feature generation service.
type FeatureVector struct {
	DrugID string    `json:"drug_id"`
	Values []float64 `json:"values"`
}

// DDIResult is the predicted interaction risk for one unordered drug
// pair, with optional supporting knowledge-graph paths.
type DDIResult struct {
	Pair  PairKey        `json:"pair"`
	Risk  float64        `json:"risk"`
	Paths []EvidencePath `json:"paths,omitempty"`
}

// ADRResult is the adverse-reaction signal for one drug.
type ADRResult struct {
	DrugID      string  `json:"drug_id"`
	Risk        float64 `json:"risk"`
	Description string  `json:"description,omitempty"`
}

// DFIItem is a drug-food interaction caution for one drug.
type DFIItem struct {
	FoodItem string `json:"food_item"`
	Advice   string `json:"advice"`
	Type     string `json:"type"`
	Reason   string `json:"reason"`
}

// DFICaution is a DFIItem flattened into the assessment, tagged with the
// display name of the drug it belongs to.
type DFICaution struct {
	Drug     string `json:"drug"`
	FoodItem string `json:"food_item"`
	Advice   string `json:"advice"`
	Type     string `json:"type"`
	Reason   string `json:"reason"`
}

// RemedySuggestion is one home-remedy suggestion for a drug.
type RemedySuggestion struct {
	Remedy         string  `json:"remedy"`
	Description    string  `json:"description"`
	CautionaryNote string  `json:"cautionary_note,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// HomeRemedy is a RemedySuggestion flattened into the assessment, tagged
// with the display name of the drug it belongs to. At most three remedies
// per drug are carried.
type HomeRemedy struct {
	Drug           string  `json:"drug"`
	Remedy         string  `json:"remedy"`
	Description    string  `json:"description"`
	CautionaryNote string  `json:"caution,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// EvidencePath is a chain of knowledge-graph relationships supporting a
// claimed interaction, carried for explainability.
type EvidencePath struct {
	Nodes []string `json:"nodes"`
	Types []string `json:"types,omitempty"`
}

// Contributor is the per-drug breakdown of how much each signal added to
// the aggregate risk score. The contributor list always has the same
// length and order as the input prescription.
type Contributor struct {
	DrugID          string   `json:"drug_id"`
	DDIContribution float64  `json:"ddi_contribution"`
	ADRContribution float64  `json:"adr_contribution"`
	CombinedScore   float64  `json:"combined_score"`
	MissingSignals  []string `json:"missing_signals,omitempty"`
}

// RiskAssessment is the output of one completed risk request.
type RiskAssessment struct {
	RequestID       string         `json:"request_id"`
	PatientID       string         `json:"patient_id"`
	Score           float64        `json:"risk_score"`
	Level           RiskLevel      `json:"level"`
	Contributors    []Contributor  `json:"contributors"`
	DDISummary      []DDIResult    `json:"ddi_summary,omitempty"`
	DFICautions     []DFICaution   `json:"dfi_cautions"`
	DFIFlag         bool           `json:"dfi_flag"`
	HomeRemedies    []HomeRemedy   `json:"home_remedies,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	EvidencePaths   []EvidencePath `json:"evidence_paths,omitempty"`
	Degraded        bool           `json:"degraded,omitempty"`
	ConfigSnapshot  ScoringConfig  `json:"config_snapshot"`
	AssessedAt      time.Time      `json:"assessed_at"`
}

// LogFields returns structured logging fields for the completed assessment.
func (a *RiskAssessment) LogFields() map[string]any {
	return map[string]any{
		"request_id":     a.RequestID,
		"patient_id":     a.PatientID,
		"risk_score":     a.Score,
		"risk_level":     a.Level.String(),
		"degraded":       a.Degraded,
		"dfi_flag":       a.DFIFlag,
		"config_version": a.ConfigSnapshot.Version,
		"drug_count":     len(a.Contributors),
	}
}

// AuditRecord is the persisted trail for one completed assessment: the
// full assessment plus an echo of the request that produced it.
type AuditRecord struct {
	ID           string             `json:"id"`
	PatientID    string             `json:"patient_id"`
	Prescription []PrescriptionItem `json:"prescription"`
	Assessment   *RiskAssessment    `json:"assessment"`
	CreatedAt    time.Time          `json:"created_at"`
}

// AlertEvent is published when an assessment classifies HIGH/CRITICAL or
// carries a food-interaction flag.
type AlertEvent struct {
	RequestID       string    `json:"request_id"`
	PatientID       string    `json:"patient_id"`
	Level           RiskLevel `json:"level"`
	TriggeringDrugs []string  `json:"triggering_drugs"`
	DFIFlag         bool      `json:"dfi_flag"`
	Timestamp       time.Time `json:"timestamp"`
}

// Thresholds are the classification cut points. A score meeting a
// threshold belongs to that band (boundary-inclusive comparison).
type Thresholds struct {
	Critical float64 `json:"critical" mapstructure:"critical"`
	High     float64 `json:"high" mapstructure:"high"`
	Moderate float64 `json:"moderate" mapstructure:"moderate"`
}

// Validate enforces 0 <= moderate < high < critical <= 1.
func (t Thresholds) Validate() error {
	if t.Moderate < 0 || t.Critical > 1 {
		return fmt.Errorf("threshold validation: values must lie in [0,1], got moderate=%v critical=%v", t.Moderate, t.Critical)
	}
	if !(t.Moderate < t.High && t.High < t.Critical) {
		return fmt.Errorf("threshold validation: require moderate < high < critical, got moderate=%v high=%v critical=%v",
			t.Moderate, t.High, t.Critical)
	}
	return nil
}

// ScoringConfig holds the per-signal weights and classification
// thresholds used for one assessment. Version identifies the snapshot so
// every assessment records which configuration produced it.
type ScoringConfig struct {
	Version    string     `json:"version"`
	DDIWeight  float64    `json:"ddi_weight" mapstructure:"ddi_weight"`
	ADRWeight  float64    `json:"adr_weight" mapstructure:"adr_weight"`
	Thresholds Thresholds `json:"thresholds" mapstructure:"thresholds"`
}

// Validate enforces non-negative weights and ordered thresholds.
func (c ScoringConfig) Validate() error {
	if c.DDIWeight < 0 || c.ADRWeight < 0 {
		return fmt.Errorf("scoring config validation: weights must be non-negative, got ddi=%v adr=%v", c.DDIWeight, c.ADRWeight)
	}
	return c.Thresholds.Validate()
}
