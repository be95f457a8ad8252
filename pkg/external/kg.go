// Package external contains the HTTP clients for the collaborator
// services the risk engine fans out to, and the resilient wrapper that
// adds circuit breaking and caching around them.
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/medsafe-risk-server/internal/domain"
)

// KGClient talks to the knowledge-graph service, which serves patient
// history, per-drug adverse-reaction flags and interaction evidence paths.
type KGClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewKGClient creates a knowledge-graph client.
func NewKGClient(config domain.CollaboratorConfig) *KGClient {
	return &KGClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// historyResponse is the wire shape of a patient history lookup.
type historyResponse struct {
	Allergies  []string `json:"allergies"`
	Conditions []string `json:"conditions"`
}

// GetPatientHistory fetches the allergy and condition sets for a patient.
// A 404 maps to domain.ErrPatientNotFound.
func (c *KGClient) GetPatientHistory(ctx context.Context, patientID string) (*domain.PatientHistory, error) {
	endpoint := fmt.Sprintf("%s/patients/%s/history", c.baseURL, url.PathEscape(patientID))

	var resp historyResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return domain.NewPatientHistory(patientID, resp.Allergies, resp.Conditions), nil
}

// adrResponse is the wire shape of an adverse-reaction lookup.
type adrResponse struct {
	Risk        float64 `json:"risk"`
	Description string  `json:"description"`
}

// GetADR fetches the adverse-reaction signal for one drug in the context
// of one patient.
func (c *KGClient) GetADR(ctx context.Context, patientID, drugID string) (*domain.ADRResult, error) {
	endpoint := fmt.Sprintf("%s/adr?%s", c.baseURL, url.Values{
		"patient_id": {patientID},
		"drug_id":    {drugID},
	}.Encode())

	var resp adrResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &domain.ADRResult{
		DrugID:      drugID,
		Risk:        resp.Risk,
		Description: resp.Description,
	}, nil
}

// evidenceResponse is the wire shape of an evidence-path lookup.
type evidenceResponse struct {
	Paths []domain.EvidencePath `json:"paths"`
}

// GetEvidencePaths fetches the knowledge-graph paths supporting an
// interaction between two drugs.
func (c *KGClient) GetEvidencePaths(ctx context.Context, drugID1, drugID2 string) ([]domain.EvidencePath, error) {
	endpoint := fmt.Sprintf("%s/evidence?%s", c.baseURL, url.Values{
		"drug1": {drugID1},
		"drug2": {drugID2},
	}.Encode())

	var resp evidenceResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Paths, nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *KGClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building knowledge graph request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("knowledge graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrPatientNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("knowledge graph returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding knowledge graph response: %w", err)
	}
	return nil
}
