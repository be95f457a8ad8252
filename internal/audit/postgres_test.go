package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsafe-risk-server/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)

	mock.ExpectPing()
	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	return store, mock
}

func TestPostgresStore_RequiresConnection(t *testing.T) {
	_, err := NewPostgresStore(nil)
	require.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	record := testRecord("a1", "P1", domain.HIGH, time.Now().UTC())
	prescriptionJSON, err := json.Marshal(record.Prescription)
	require.NoError(t, err)
	assessmentJSON, err := json.Marshal(record.Assessment)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO risk_audit").
		WithArgs(
			record.ID,
			record.PatientID,
			record.Assessment.Score,
			string(record.Assessment.Level),
			record.Assessment.Degraded,
			prescriptionJSON,
			assessmentJSON,
			record.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAssignsCreatedAt(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	record := testRecord("a1", "P1", domain.LOW, time.Time{})

	mock.ExpectExec("INSERT INTO risk_audit").
		WithArgs(
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), record))
	assert.False(t, record.CreatedAt.IsZero(), "CreatedAt should be assigned on save")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListByPatient(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	record := testRecord("a1", "P1", domain.MODERATE, time.Now().UTC())
	prescriptionJSON, err := json.Marshal(record.Prescription)
	require.NoError(t, err)
	assessmentJSON, err := json.Marshal(record.Assessment)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "patient_id", "prescription", "assessment", "created_at"}).
		AddRow(record.ID, record.PatientID, string(prescriptionJSON), string(assessmentJSON), record.CreatedAt)

	mock.ExpectQuery("SELECT id, patient_id, prescription, assessment, created_at").
		WithArgs("P1", 10).
		WillReturnRows(rows)

	records, err := store.ListByPatient(context.Background(), "P1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, domain.MODERATE, got.Assessment.Level)
	require.Len(t, got.Prescription, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCorruptRow(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	rows := sqlmock.NewRows([]string{"id", "patient_id", "prescription", "assessment", "created_at"}).
		AddRow("a1", "P1", "not-json", "{}", time.Now().UTC())

	mock.ExpectQuery("SELECT id, patient_id, prescription, assessment, created_at").
		WithArgs("P1", 10).
		WillReturnRows(rows)

	_, err := store.ListByPatient(context.Background(), "P1", 10)
	require.Error(t, err)
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM risk_audit`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}
