package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/medsafe-risk-server/internal/domain"
)

// FeatureGenClient talks to the feature generation service that embeds
// (patient, drug) pairs into knowledge-graph feature vectors. Vectors
// are stable for a given pair, so responses are held in a bounded
// in-process LRU.
type FeatureGenClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *lru.Cache[string, *domain.FeatureVector]
}

// NewFeatureGenClient creates a feature generation client with an LRU of
// the given size.
func NewFeatureGenClient(config domain.CollaboratorConfig, lruSize int) (*FeatureGenClient, error) {
	if lruSize <= 0 {
		lruSize = 1024
	}
	cache, err := lru.New[string, *domain.FeatureVector](lruSize)
	if err != nil {
		return nil, fmt.Errorf("creating feature LRU: %w", err)
	}

	return &FeatureGenClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		cache: cache,
	}, nil
}

// featureResponse is the wire shape of a feature lookup.
type featureResponse struct {
	DrugID string    `json:"drug_id"`
	Values []float64 `json:"values"`
}

// GetFeatures fetches the feature vector for one drug in the context of
// one patient, serving repeats from the LRU.
func (c *FeatureGenClient) GetFeatures(ctx context.Context, patientID, drugID string) (*domain.FeatureVector, error) {
	key := patientID + "|" + drugID
	if fv, ok := c.cache.Get(key); ok {
		return fv, nil
	}

	endpoint := fmt.Sprintf("%s/features?%s", c.baseURL, url.Values{
		"patient_id": {patientID},
		"drug_id":    {drugID},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building featuregen request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("featuregen request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("featuregen returned status %d", resp.StatusCode)
	}

	var body featureResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding featuregen response: %w", err)
	}

	fv := &domain.FeatureVector{DrugID: drugID, Values: body.Values}
	c.cache.Add(key, fv)
	return fv, nil
}
