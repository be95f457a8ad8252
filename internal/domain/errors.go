package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for the failure scenarios an assessment can surface.
const (
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidConfiguration = "INVALID_CONFIGURATION"
	ErrCodeCollaboratorTimeout  = "COLLABORATOR_TIMEOUT"
	ErrCodeCollaboratorFailure  = "COLLABORATOR_FAILURE"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// Sentinel errors surfaced directly to callers with no partial processing.
var (
	ErrPatientNotFound   = errors.New("patient not found")
	ErrEmptyPrescription = errors.New("prescription must contain at least one item")
	ErrMissingDrugID     = errors.New("drug_id is required")
)

// RiskError is the standardized error envelope for the assessment API.
type RiskError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *RiskError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewRiskError creates a new RiskError with timestamp.
func NewRiskError(code, message, details, requestID string) *RiskError {
	return &RiskError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// CollaboratorError records a single sub-call failure during fan-out.
// These do not abort the assessment; the failing signal contributes a
// neutral value and the miss is recorded on the contributor entry.
type CollaboratorError struct {
	Source  SignalSource
	DrugID  string
	Timeout bool
	Err     error
}

// Error implements the error interface.
func (e *CollaboratorError) Error() string {
	kind := "failure"
	if e.Timeout {
		kind = "timeout"
	}
	if e.DrugID != "" {
		return fmt.Sprintf("collaborator %s %s for drug %s: %v", e.Source, kind, e.DrugID, e.Err)
	}
	return fmt.Sprintf("collaborator %s %s: %v", e.Source, kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Code maps the failure onto the error taxonomy.
func (e *CollaboratorError) Code() string {
	if e.Timeout {
		return ErrCodeCollaboratorTimeout
	}
	return ErrCodeCollaboratorFailure
}
