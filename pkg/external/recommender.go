package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/medsafe-risk-server/internal/domain"
)

// RecommenderClient talks to the alternative-drug recommendation
// service, which groups therapeutically similar drugs by ATC class and
// filters candidates against the patient's allergy and condition sets.
type RecommenderClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRecommenderClient creates a recommender client.
func NewRecommenderClient(config domain.CollaboratorConfig) *RecommenderClient {
	return &RecommenderClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// alternativesRequest is the wire shape of a recommendation lookup. The
// patient history travels as exclusion context.
type alternativesRequest struct {
	DrugID     string   `json:"drug_id"`
	Allergies  []string `json:"allergies"`
	Conditions []string `json:"conditions"`
}

// alternativesResponse is the wire shape of the recommender reply.
type alternativesResponse struct {
	Alternatives []string `json:"alternatives"`
}

// GetAlternatives fetches alternative drug identifiers for one drug.
func (c *RecommenderClient) GetAlternatives(ctx context.Context, drugID string, history *domain.PatientHistory) ([]string, error) {
	payload := alternativesRequest{DrugID: drugID}
	if history != nil {
		payload.Allergies = history.AllergyList()
		payload.Conditions = history.ConditionList()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling recommender request: %w", err)
	}

	endpoint := c.baseURL + "/alternatives"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building recommender request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recommender request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recommender returned status %d", resp.StatusCode)
	}

	var reply alternativesResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decoding recommender response: %w", err)
	}
	return reply.Alternatives, nil
}
