package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/medsafe-risk-server/internal/domain"
)

// DDIClient talks to the interaction prediction service (the GNN model
// serving layer) that scores unordered drug pairs.
type DDIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDDIClient creates an interaction predictor client.
func NewDDIClient(config domain.CollaboratorConfig) *DDIClient {
	return &DDIClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// ddiResponse is the wire shape of a pair prediction.
type ddiResponse struct {
	Risk  float64               `json:"risk"`
	Paths []domain.EvidencePath `json:"paths"`
}

// GetDDI predicts the interaction risk for a drug pair.
func (c *DDIClient) GetDDI(ctx context.Context, drugID1, drugID2 string) (*domain.DDIResult, error) {
	endpoint := fmt.Sprintf("%s/predict?%s", c.baseURL, url.Values{
		"drug1": {drugID1},
		"drug2": {drugID2},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building DDI request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("DDI request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DDI predictor returned status %d", resp.StatusCode)
	}

	var body ddiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding DDI response: %w", err)
	}

	return &domain.DDIResult{
		Risk:  body.Risk,
		Paths: body.Paths,
	}, nil
}
