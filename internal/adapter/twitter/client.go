// Package twitter wraps the Twitter v2 recent search API as a social
// signal provider.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
)

// ProviderSocialSearch is the ID under which this client's provider registers.
const ProviderSocialSearch = "social_search"

const maxResults = "10"

// Client calls the Twitter recent search endpoint.
type Client struct {
	bearerToken string
	httpClient  *http.Client
	baseURL     string
	logger      *slog.Logger
}

// NewClient creates a Twitter search client.
func NewClient(bearerToken string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		bearerToken: bearerToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.twitter.com/2/tweets/search/recent",
		logger:  logger,
	}
}

// Search runs a recent search for params["q"]. Results are textual and go
// through priority classification downstream.
func (c *Client) Search(ctx context.Context, params map[string]string) ([]domain.Signal, error) {
	q := url.Values{
		"query":        {params["q"]},
		"max_results":  {maxResults},
		"tweet.fields": {"created_at,author_id"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{
			Provider: ProviderSocialSearch,
			Status:   domain.StatusNetworkFailure,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, &domain.UpstreamError{
			Provider: ProviderSocialSearch,
			Status:   domain.StatusMalformedResponse,
			Err:      err,
		}
	}

	signals := make([]domain.Signal, 0, len(searchResp.Data))
	for _, tw := range searchResp.Data {
		raw, _ := json.Marshal(tw)
		signals = append(signals, domain.Signal{
			ID:         tw.ID,
			Provider:   ProviderSocialSearch,
			Text:       tw.Text,
			Link:       "https://twitter.com/i/web/status/" + tw.ID,
			Payload:    raw,
			ObservedAt: tw.CreatedAt,
		})
	}
	return signals, nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return &domain.UpstreamError{Provider: ProviderSocialSearch, Status: domain.StatusRateLimited}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &domain.UpstreamError{Provider: ProviderSocialSearch, Status: domain.StatusUnauthorized}
	case code == http.StatusBadRequest:
		return &domain.UpstreamError{Provider: ProviderSocialSearch, Status: domain.StatusBadRequest}
	case code >= 500:
		return &domain.UpstreamError{
			Provider: ProviderSocialSearch,
			Status:   domain.StatusNetworkFailure,
			Err:      fmt.Errorf("status %d", code),
		}
	default:
		return &domain.UpstreamError{
			Provider: ProviderSocialSearch,
			Status:   domain.StatusMalformedResponse,
			Err:      fmt.Errorf("unexpected status %d", code),
		}
	}
}

// Twitter API response types.

type searchResponse struct {
	Data []tweet `json:"data"`
}

type tweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}
