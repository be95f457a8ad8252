package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsafe-risk-server/internal/domain"
)

func createTestStore(t *testing.T) *SQLiteStore {
	tmpDir, err := os.MkdirTemp("", "audit-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewSQLiteStore(filepath.Join(tmpDir, "audit.db"))
	require.NoError(t, err)
	return store
}

func testRecord(id, patientID string, level domain.RiskLevel, createdAt time.Time) *domain.AuditRecord {
	return &domain.AuditRecord{
		ID:        id,
		PatientID: patientID,
		Prescription: []domain.PrescriptionItem{
			{DrugID: "warfarin", Name: "Warfarin", Dose: "5mg", Route: "oral"},
			{DrugID: "aspirin", Name: "Aspirin"},
		},
		Assessment: &domain.RiskAssessment{
			RequestID: "req-" + id,
			PatientID: patientID,
			Score:     0.45,
			Level:     level,
			Contributors: []domain.Contributor{
				{DrugID: "warfarin", DDIContribution: 0.9, CombinedScore: 0.45},
				{DrugID: "aspirin", DDIContribution: 0.9, CombinedScore: 0.45},
			},
		},
		CreatedAt: createdAt,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "audit-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "audit.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_SaveAndList(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	record := testRecord("a1", "P1", domain.MODERATE, time.Now().UTC())

	require.NoError(t, store.Save(ctx, record))

	records, err := store.ListByPatient(ctx, "P1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "P1", got.PatientID)
	require.Len(t, got.Prescription, 2)
	assert.Equal(t, "warfarin", got.Prescription[0].DrugID)
	require.NotNil(t, got.Assessment)
	assert.Equal(t, domain.MODERATE, got.Assessment.Level)
	assert.InDelta(t, 0.45, got.Assessment.Score, 1e-9)
	require.Len(t, got.Assessment.Contributors, 2)
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, store.Save(ctx, testRecord("a1", "P1", domain.LOW, base)))
	require.NoError(t, store.Save(ctx, testRecord("a2", "P1", domain.MODERATE, base.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, testRecord("a3", "P1", domain.HIGH, base.Add(2*time.Minute))))

	records, err := store.ListByPatient(ctx, "P1", 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "a3", records[0].ID)
	assert.Equal(t, "a2", records[1].ID)
	assert.Equal(t, "a1", records[2].ID)
}

func TestSQLiteStore_ListRespectsLimit(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, store.Save(ctx, testRecord(id, "P1", domain.LOW, base.Add(time.Duration(i)*time.Minute))))
	}

	records, err := store.ListByPatient(ctx, "P1", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSQLiteStore_ListFiltersByPatient(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Save(ctx, testRecord("a1", "P1", domain.LOW, now)))
	require.NoError(t, store.Save(ctx, testRecord("a2", "P2", domain.LOW, now)))

	records, err := store.ListByPatient(ctx, "P1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a1", records[0].ID)

	records, err = store.ListByPatient(ctx, "P3", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSQLiteStore_Count(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, store.Save(ctx, testRecord("a1", "P1", domain.LOW, time.Now().UTC())))
	require.NoError(t, store.Save(ctx, testRecord("a2", "P2", domain.HIGH, time.Now().UTC())))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSink_LogAudit(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	sink := NewSink(store)
	ctx := context.Background()

	require.NoError(t, sink.LogAudit(ctx, testRecord("a1", "P1", domain.CRITICAL, time.Now().UTC())))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
