package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medsafe-risk-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
// It expects the risk_audit schema to already exist (created via
// migrations, see internal/database).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL audit store over an
// existing connection.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Save persists one audit record.
func (s *PostgresStore) Save(ctx context.Context, record *domain.AuditRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	prescriptionJSON, err := json.Marshal(record.Prescription)
	if err != nil {
		return fmt.Errorf("failed to marshal prescription: %w", err)
	}
	assessmentJSON, err := json.Marshal(record.Assessment)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	query := `
		INSERT INTO risk_audit (
			id, patient_id, risk_score, risk_level, degraded,
			prescription, assessment, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.PatientID,
		record.Assessment.Score,
		string(record.Assessment.Level),
		record.Assessment.Degraded,
		prescriptionJSON,
		assessmentJSON,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}
	return nil
}

// ListByPatient returns the most recent audit records for a patient,
// newest first.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.AuditRecord, error) {
	query := `
		SELECT id, patient_id, prescription, assessment, created_at
		FROM risk_audit
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var result []*domain.AuditRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// Count returns the total number of audit records.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM risk_audit").Scan(&count)
	return count, err
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
