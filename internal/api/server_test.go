package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsafe-risk-server/internal/domain"
	"github.com/medsafe-risk-server/internal/riskconfig"
)

// stubManager serves a fixed configuration.
type stubManager struct {
	cfg *domain.Config
}

func (m *stubManager) GetConfig() *domain.Config             { return m.cfg }
func (m *stubManager) GetServerConfig() *domain.ServerConfig { return &m.cfg.Server }

// stubAssessor returns a canned assessment or error.
type stubAssessor struct {
	assessment *domain.RiskAssessment
	err        error
}

func (a *stubAssessor) Assess(ctx context.Context, patientID string, prescription []domain.PrescriptionItem) (*domain.RiskAssessment, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.assessment, nil
}

// stubAuditStore serves canned audit records.
type stubAuditStore struct {
	records []*domain.AuditRecord
	err     error
}

func (s *stubAuditStore) Save(ctx context.Context, record *domain.AuditRecord) error { return nil }
func (s *stubAuditStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.AuditRecord, error) {
	return s.records, s.err
}
func (s *stubAuditStore) Count(ctx context.Context) (int64, error) { return int64(len(s.records)), nil }
func (s *stubAuditStore) Close() error                             { return nil }

type stubBreakers struct{}

func (stubBreakers) BreakerStates() map[string]string {
	return map[string]string{"ddi_predictor": "closed"}
}

func testConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		Logging: domain.LoggingConfig{Level: "error", Format: "json"},
	}
}

func newTestServer(t *testing.T, assessor Assessor, auditStore *stubAuditStore) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if auditStore == nil {
		auditStore = &stubAuditStore{}
	}
	return NewServer(&stubManager{cfg: testConfig()}, assessor, riskconfig.NewStore(logger), auditStore, stubBreakers{}, logger)
}

func doRequest(server *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandlePredictRisk_Success(t *testing.T) {
	assessment := &domain.RiskAssessment{
		RequestID: "req-1",
		PatientID: "P1",
		Score:     0.45,
		Level:     domain.MODERATE,
	}
	server := newTestServer(t, &stubAssessor{assessment: assessment}, nil)

	rec := doRequest(server, http.MethodPost, "/predict/risk", map[string]any{
		"patient_id": "P1",
		"prescription": []map[string]string{
			{"drug_id": "warfarin", "name": "Warfarin"},
			{"drug_id": "aspirin", "name": "Aspirin"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.RiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.MODERATE, got.Level)
	assert.InDelta(t, 0.45, got.Score, 1e-9)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHandlePredictRisk_MalformedBody(t *testing.T) {
	server := newTestServer(t, &stubAssessor{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/predict/risk", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var riskErr domain.RiskError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &riskErr))
	assert.Equal(t, domain.ErrCodeInvalidRequest, riskErr.Code)
}

func TestHandlePredictRisk_EmptyPrescription(t *testing.T) {
	err := fmt.Errorf("%s: %w", domain.ErrCodeInvalidRequest, domain.ErrEmptyPrescription)
	server := newTestServer(t, &stubAssessor{err: err}, nil)

	rec := doRequest(server, http.MethodPost, "/predict/risk", map[string]any{
		"patient_id":   "P1",
		"prescription": []map[string]string{},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePredictRisk_UnknownPatient(t *testing.T) {
	err := fmt.Errorf("%s: %w", domain.ErrCodeNotFound, domain.ErrPatientNotFound)
	server := newTestServer(t, &stubAssessor{err: err}, nil)

	rec := doRequest(server, http.MethodPost, "/predict/risk", map[string]any{
		"patient_id":   "missing",
		"prescription": []map[string]string{{"drug_id": "D1"}},
	})

	require.Equal(t, http.StatusNotFound, rec.Code)

	var riskErr domain.RiskError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &riskErr))
	assert.Equal(t, domain.ErrCodeNotFound, riskErr.Code)
}

func TestHandleGetRiskHistory(t *testing.T) {
	auditStore := &stubAuditStore{
		records: []*domain.AuditRecord{
			{ID: "a1", PatientID: "P1", Assessment: &domain.RiskAssessment{Level: domain.LOW}},
		},
	}
	server := newTestServer(t, &stubAssessor{}, auditStore)

	rec := doRequest(server, http.MethodGet, "/risk/P1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		PatientID   string                `json:"patient_id"`
		Assessments []*domain.AuditRecord `json:"assessments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "P1", resp.PatientID)
	require.Len(t, resp.Assessments, 1)
	assert.Equal(t, "a1", resp.Assessments[0].ID)
}

func TestHandleGetRiskHistory_InvalidLimit(t *testing.T) {
	server := newTestServer(t, &stubAssessor{}, nil)

	rec := doRequest(server, http.MethodGet, "/risk/P1?limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(server, http.MethodGet, "/risk/P1?limit=0", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetScoringConfig(t *testing.T) {
	server := newTestServer(t, &stubAssessor{}, nil)

	rec := doRequest(server, http.MethodGet, "/risk/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg domain.ScoringConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 0.5, cfg.DDIWeight)
	assert.Equal(t, 0.9, cfg.Thresholds.Critical)
	assert.NotEmpty(t, cfg.Version)
}

func TestHandlePutScoringConfig_Valid(t *testing.T) {
	server := newTestServer(t, &stubAssessor{}, nil)

	rec := doRequest(server, http.MethodPut, "/risk/config", map[string]any{
		"ddi_weight": 0.6,
		"adr_weight": 0.4,
		"thresholds": map[string]float64{"critical": 0.95, "high": 0.6, "moderate": 0.2},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var cfg domain.ScoringConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 0.6, cfg.DDIWeight)
	assert.Equal(t, 0.95, cfg.Thresholds.Critical)
}

func TestHandlePutScoringConfig_InvalidOrderingRejected(t *testing.T) {
	server := newTestServer(t, &stubAssessor{}, nil)

	rec := doRequest(server, http.MethodPut, "/risk/config", map[string]any{
		"ddi_weight": 0.5,
		"adr_weight": 0.5,
		"thresholds": map[string]float64{"critical": 0.3, "high": 0.8, "moderate": 0.9},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var riskErr domain.RiskError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &riskErr))
	assert.Equal(t, domain.ErrCodeInvalidConfiguration, riskErr.Code)

	// The active configuration is unchanged.
	rec = doRequest(server, http.MethodGet, "/risk/config", nil)
	var cfg domain.ScoringConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 0.9, cfg.Thresholds.Critical)
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t, &stubAssessor{}, nil)

	rec := doRequest(server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Contains(t, resp, "collaborators")
}
