package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medsafe-risk-server/internal/domain"
)

func TestClassifier_ThresholdBands(t *testing.T) {
	classifier := NewClassifier()
	thresholds := domain.Thresholds{Critical: 0.9, High: 0.7, Moderate: 0.3}
	prescription := testPrescription("D1")
	history := domain.NewPatientHistory("P1", nil, nil)

	tests := []struct {
		name     string
		score    float64
		expected domain.RiskLevel
	}{
		{"Zero", 0.0, domain.LOW},
		{"Below moderate", 0.29, domain.LOW},
		{"Moderate boundary inclusive", 0.3, domain.MODERATE},
		{"Mid moderate", 0.45, domain.MODERATE},
		{"Just below high", 0.699, domain.MODERATE},
		{"High boundary inclusive", 0.7, domain.HIGH},
		{"Mid high", 0.85, domain.HIGH},
		{"Critical boundary inclusive", 0.9, domain.CRITICAL},
		{"Max", 1.0, domain.CRITICAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := classifier.Classify(tt.score, prescription, history, thresholds)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestClassifier_AllergyOverride(t *testing.T) {
	classifier := NewClassifier()
	thresholds := domain.Thresholds{Critical: 0.9, High: 0.7, Moderate: 0.3}
	prescription := testPrescription("warfarin", "aspirin")
	history := domain.NewPatientHistory("P1", []string{"aspirin"}, nil)

	// A moderate computed score is overridden to CRITICAL by the
	// allergy match.
	level := classifier.Classify(0.45, prescription, history, thresholds)
	assert.Equal(t, domain.CRITICAL, level)

	// Even a zero score is overridden.
	level = classifier.Classify(0.0, prescription, history, thresholds)
	assert.Equal(t, domain.CRITICAL, level)
}

func TestClassifier_NoAllergyMatch(t *testing.T) {
	classifier := NewClassifier()
	thresholds := domain.Thresholds{Critical: 0.9, High: 0.7, Moderate: 0.3}
	prescription := testPrescription("warfarin", "aspirin")
	history := domain.NewPatientHistory("P1", []string{"penicillin"}, nil)

	level := classifier.Classify(0.45, prescription, history, thresholds)
	assert.Equal(t, domain.MODERATE, level)
}

func TestClassifier_AllergyConflicts(t *testing.T) {
	classifier := NewClassifier()
	prescription := testPrescription("warfarin", "aspirin", "penicillin")
	history := domain.NewPatientHistory("P1", []string{"aspirin", "penicillin"}, nil)

	conflicts := classifier.AllergyConflicts(prescription, history)
	assert.Equal(t, []string{"aspirin", "penicillin"}, conflicts)

	clean := domain.NewPatientHistory("P2", nil, nil)
	assert.Empty(t, classifier.AllergyConflicts(prescription, clean))
}
