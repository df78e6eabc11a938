// Package gemini wraps the Gemini generateContent API as signal providers
// for location extraction and image verification.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
)

// Provider IDs under which this client's providers register.
const (
	ProviderExtractLocation = "extract_location"
	ProviderVerifyImage     = "verify_image"
)

const defaultModel = "gemini-1.5-flash"

// Client calls the Gemini generateContent endpoint.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
	logger     *slog.Logger
}

// NewClient creates a Gemini client. Generation calls are slow compared to
// the other upstreams, so give this one a generous timeout.
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		model:   defaultModel,
		logger:  logger,
	}
}

// ExtractLocation asks the model to pull a place name out of
// params["description"].
func (c *Client) ExtractLocation(ctx context.Context, params map[string]string) ([]domain.Signal, error) {
	prompt := fmt.Sprintf("Extract location from: %s", params["description"])
	return c.generate(ctx, ProviderExtractLocation, prompt)
}

// VerifyImage asks the model to assess the image at params["image_url"].
func (c *Client) VerifyImage(ctx context.Context, params map[string]string) ([]domain.Signal, error) {
	prompt := fmt.Sprintf(
		"Analyze image at %s for signs of manipulation or disaster context.",
		params["image_url"],
	)
	return c.generate(ctx, ProviderVerifyImage, prompt)
}

func (c *Client) generate(ctx context.Context, provider, prompt string) ([]domain.Signal, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: provider, Status: domain.StatusNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	if err := statusError(provider, resp.StatusCode); err != nil {
		return nil, err
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, &domain.UpstreamError{Provider: provider, Status: domain.StatusMalformedResponse, Err: err}
	}

	text := genResp.text()
	if text == "" {
		return nil, &domain.UpstreamError{
			Provider: provider,
			Status:   domain.StatusMalformedResponse,
			Err:      fmt.Errorf("no candidates in response"),
		}
	}

	raw, _ := json.Marshal(genResp)
	return []domain.Signal{{
		Provider:   provider,
		Text:       text,
		Payload:    raw,
		ObservedAt: domain.Now(),
	}}, nil
}

func statusError(provider string, code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusRateLimited}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusUnauthorized}
	case code == http.StatusBadRequest:
		return &domain.UpstreamError{Provider: provider, Status: domain.StatusBadRequest}
	case code >= 500:
		return &domain.UpstreamError{
			Provider: provider,
			Status:   domain.StatusNetworkFailure,
			Err:      fmt.Errorf("status %d", code),
		}
	default:
		return &domain.UpstreamError{
			Provider: provider,
			Status:   domain.StatusMalformedResponse,
			Err:      fmt.Errorf("unexpected status %d", code),
		}
	}
}

// Gemini API request/response types.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

func (r generateResponse) text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

type candidate struct {
	Content content `json:"content"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}
