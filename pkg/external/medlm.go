package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/medsafe-risk-server/internal/domain"
)

// MedLMClient talks to the medical language-model service that suggests
// home remedies for a drug by display name. The backing model is
// expensive, so calls go through a token-bucket rate limiter.
type MedLMClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewMedLMClient creates a remedy client with the configured
// requests-per-second limit.
func NewMedLMClient(config domain.CollaboratorConfig) *MedLMClient {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 5
	}
	return &MedLMClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// remedyResponse is the wire shape of a remedy lookup.
type remedyResponse struct {
	Remedies []struct {
		Remedy         string  `json:"remedy"`
		Description    string  `json:"description"`
		CautionaryNote string  `json:"cautionary_note"`
		Confidence     float64 `json:"confidence"`
	} `json:"remedies"`
}

// GetHomeRemedies fetches home-remedy suggestions for a drug.
func (c *MedLMClient) GetHomeRemedies(ctx context.Context, drugName string) ([]domain.RemedySuggestion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("medlm rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/remedies?%s", c.baseURL, url.Values{
		"drug": {drugName},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building medlm request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("medlm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("medlm returned status %d", resp.StatusCode)
	}

	var body remedyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding medlm response: %w", err)
	}

	remedies := make([]domain.RemedySuggestion, 0, len(body.Remedies))
	for _, r := range body.Remedies {
		remedies = append(remedies, domain.RemedySuggestion{
			Remedy:         r.Remedy,
			Description:    r.Description,
			CautionaryNote: r.CautionaryNote,
			Confidence:     r.Confidence,
		})
	}
	return remedies, nil
}
