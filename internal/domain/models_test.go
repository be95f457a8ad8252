package domain

import (
	"testing"
)

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name       string
		thresholds Thresholds
		expectErr  bool
	}{
		{"Default ordering", Thresholds{Critical: 0.9, High: 0.7, Moderate: 0.3}, false},
		{"Tight ordering", Thresholds{Critical: 0.3, High: 0.2, Moderate: 0.1}, false},
		{"Inverted ordering", Thresholds{Critical: 0.3, High: 0.8, Moderate: 0.9}, true},
		{"Equal bands", Thresholds{Critical: 0.5, High: 0.5, Moderate: 0.3}, true},
		{"Moderate above high", Thresholds{Critical: 0.9, High: 0.3, Moderate: 0.8}, true},
		{"Negative moderate", Thresholds{Critical: 0.9, High: 0.7, Moderate: -0.1}, true},
		{"Critical above one", Thresholds{Critical: 1.1, High: 0.7, Moderate: 0.3}, true},
		{"Full range", Thresholds{Critical: 1.0, High: 0.5, Moderate: 0.0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.thresholds.Validate()
			if tt.expectErr && err == nil {
				t.Errorf("Expected validation error for %+v", tt.thresholds)
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected validation error for %+v: %v", tt.thresholds, err)
			}
		})
	}
}

func TestScoringConfigValidate(t *testing.T) {
	valid := Thresholds{Critical: 0.9, High: 0.7, Moderate: 0.3}

	tests := []struct {
		name      string
		config    ScoringConfig
		expectErr bool
	}{
		{"Valid", ScoringConfig{DDIWeight: 0.5, ADRWeight: 0.5, Thresholds: valid}, false},
		{"Zero weights allowed", ScoringConfig{DDIWeight: 0, ADRWeight: 0, Thresholds: valid}, false},
		{"Negative ddi weight", ScoringConfig{DDIWeight: -0.1, ADRWeight: 0.5, Thresholds: valid}, true},
		{"Negative adr weight", ScoringConfig{DDIWeight: 0.5, ADRWeight: -1, Thresholds: valid}, true},
		{"Bad thresholds", ScoringConfig{DDIWeight: 0.5, ADRWeight: 0.5, Thresholds: Thresholds{Critical: 0.3, High: 0.8, Moderate: 0.9}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestPatientHistoryHasAllergy(t *testing.T) {
	history := NewPatientHistory("P1", []string{"aspirin", "penicillin"}, []string{"diabetes"})

	if !history.HasAllergy("aspirin") {
		t.Error("Expected allergy to aspirin")
	}
	if !history.HasAllergy("penicillin") {
		t.Error("Expected allergy to penicillin")
	}
	if history.HasAllergy("warfarin") {
		t.Error("Unexpected allergy to warfarin")
	}
	if history.HasAllergy("diabetes") {
		t.Error("Conditions must not be matched as allergies")
	}

	var nilHistory *PatientHistory
	if nilHistory.HasAllergy("aspirin") {
		t.Error("Nil history must report no allergies")
	}
}

func TestPatientHistoryLists(t *testing.T) {
	history := NewPatientHistory("P1", []string{"aspirin"}, []string{"diabetes", "hypertension"})

	if len(history.AllergyList()) != 1 {
		t.Errorf("Expected 1 allergy, got %d", len(history.AllergyList()))
	}
	if len(history.ConditionList()) != 2 {
		t.Errorf("Expected 2 conditions, got %d", len(history.ConditionList()))
	}
}

func TestPrescriptionItemValidate(t *testing.T) {
	valid := PrescriptionItem{DrugID: "D1", Name: "Warfarin", Dose: "5mg", Route: "oral"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Unexpected validation error: %v", err)
	}

	missing := PrescriptionItem{Name: "Warfarin"}
	if err := missing.Validate(); err == nil {
		t.Error("Expected validation error for missing drug_id")
	}
}
