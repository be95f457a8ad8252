package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/medsafe-risk-server/internal/domain"
)

// SQLiteStore implements the Store interface using an embedded SQLite
// database. This is the default backend: the audit trail survives
// restarts without requiring an external database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite audit store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the audit table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS risk_audit (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		risk_score REAL NOT NULL,
		risk_level TEXT NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		prescription TEXT NOT NULL,
		assessment TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_patient ON risk_audit(patient_id);
	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON risk_audit(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save persists one audit record. The prescription echo and the full
// assessment are stored as JSON documents alongside the queryable
// score/level columns.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.AuditRecord) error {
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_audit (
			id, patient_id, risk_score, risk_level, degraded,
			prescription, assessment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.PatientID,
		record.Assessment.Score,
		string(record.Assessment.Level),
		record.Assessment.Degraded,
		string(prescriptionJSON),
		string(assessmentJSON),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// ListByPatient returns the most recent audit records for a patient,
// newest first.
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, prescription, assessment, created_at
		FROM risk_audit
		WHERE patient_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, patientID, limit)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM risk_audit").Scan(&count)
	return count, err
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row into an AuditRecord, deserializing the JSON
// prescription and assessment columns.
func scanRecord(s scanner) (*domain.AuditRecord, error) {
	record := &domain.AuditRecord{}
	var prescriptionJSON, assessmentJSON string

	if err := s.Scan(&record.ID, &record.PatientID, &prescriptionJSON, &assessmentJSON, &record.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(prescriptionJSON), &record.Prescription); err != nil {
		return nil, fmt.Errorf("corrupt prescription column: %w", err)
	}
	if err := json.Unmarshal([]byte(assessmentJSON), &record.Assessment); err != nil {
		return nil, fmt.Errorf("corrupt assessment column: %w", err)
	}
	return record, nil
}
