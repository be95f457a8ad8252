// Package audit persists the per-assessment audit trail. Every
// completed risk assessment commits exactly one record; the trail also
// backs the patient assessment-history endpoint.
package audit

import (
	"context"

	"github.com/medsafe-risk-server/internal/domain"
)

// Store is the persistence contract for audit records. Two backends are
// provided: an embedded SQLite store and a PostgreSQL store.
type Store interface {
	// Save persists one audit record.
	Save(ctx context.Context, record *domain.AuditRecord) error

	// ListByPatient returns the most recent records for a patient,
	// newest first.
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.AuditRecord, error)

	// Count returns the total number of audit records.
	Count(ctx context.Context) (int64, error)

	// Close releases the store's resources.
	Close() error
}

// Sink adapts a Store to the domain.AuditSink contract consumed by the
// orchestrator.
type Sink struct {
	store Store
}

// NewSink wraps a store as an audit sink.
func NewSink(store Store) *Sink {
	return &Sink{store: store}
}

// LogAudit persists the record through the underlying store.
func (s *Sink) LogAudit(ctx context.Context, record *domain.AuditRecord) error {
	return s.store.Save(ctx, record)
}
