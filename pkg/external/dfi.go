package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/medsafe-risk-server/internal/domain"
)

// DFIClient talks to the drug-food interaction service.
type DFIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDFIClient creates a food-interaction client.
func NewDFIClient(config domain.CollaboratorConfig) *DFIClient {
	return &DFIClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// dfiResponse is the wire shape of a food-interaction lookup.
type dfiResponse struct {
	Items []struct {
		FoodItem string `json:"food_item"`
		Advice   string `json:"advice"`
		Type     string `json:"type"`
		Reason   string `json:"reason"`
	} `json:"items"`
}

// GetDFI fetches the food-interaction cautions for one drug.
func (c *DFIClient) GetDFI(ctx context.Context, drugID string) ([]domain.DFIItem, error) {
	endpoint := fmt.Sprintf("%s/dfi/%s", c.baseURL, url.PathEscape(drugID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building DFI request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("DFI request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DFI service returned status %d", resp.StatusCode)
	}

	var body dfiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding DFI response: %w", err)
	}

	items := make([]domain.DFIItem, 0, len(body.Items))
	for _, it := range body.Items {
		items = append(items, domain.DFIItem{
			FoodItem: it.FoodItem,
			Advice:   it.Advice,
			Type:     it.Type,
			Reason:   it.Reason,
		})
	}
	return items, nil
}
