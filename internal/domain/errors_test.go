package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestRiskErrorError(t *testing.T) {
	err := NewRiskError(ErrCodeInvalidRequest, "prescription is empty", "", "req-1")

	if err.Code != ErrCodeInvalidRequest {
		t.Errorf("Expected code %s, got %s", ErrCodeInvalidRequest, err.Code)
	}
	if err.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
	if !strings.Contains(err.Error(), "INVALID_REQUEST") {
		t.Errorf("Expected code in error string, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "prescription is empty") {
		t.Errorf("Expected message in error string, got %q", err.Error())
	}
}

func TestCollaboratorErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *CollaboratorError
		expected string
	}{
		{
			"Timeout",
			&CollaboratorError{Source: SourceDDI, DrugID: "D1", Timeout: true, Err: errors.New("deadline exceeded")},
			ErrCodeCollaboratorTimeout,
		},
		{
			"Failure",
			&CollaboratorError{Source: SourceADR, DrugID: "D1", Err: errors.New("connection refused")},
			ErrCodeCollaboratorFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code() != tt.expected {
				t.Errorf("Expected code %s, got %s", tt.expected, tt.err.Code())
			}
		})
	}
}

func TestCollaboratorErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &CollaboratorError{Source: SourceFeatures, DrugID: "D2", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to match the wrapped cause")
	}
	if !strings.Contains(err.Error(), "features") {
		t.Errorf("Expected source in error string, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "D2") {
		t.Errorf("Expected drug id in error string, got %q", err.Error())
	}
}
