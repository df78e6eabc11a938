package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
)

func testClient(baseURL string) *Client {
	return &Client{
		apiKey:     "test-key",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		model:      defaultModel,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func modelReply(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	resp := generateResponse{
		Candidates: []candidate{{Content: content{Parts: []part{{Text: text}}}}},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestClient_ExtractLocation_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, defaultModel)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "Extract location from: flooding near downtown Houston", req.Contents[0].Parts[0].Text)

		modelReply(t, w, "Houston, Texas")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	signals, err := c.ExtractLocation(context.Background(), map[string]string{
		"description": "flooding near downtown Houston",
	})
	require.NoError(t, err)
	require.Len(t, signals, 1)

	assert.Equal(t, ProviderExtractLocation, signals[0].Provider)
	assert.Equal(t, "Houston, Texas", signals[0].Text)
	assert.NotEmpty(t, signals[0].Payload)
}

func TestClient_VerifyImage_PromptIncludesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Contents[0].Parts[0].Text, "https://example.com/storm.jpg")
		assert.Contains(t, req.Contents[0].Parts[0].Text, "manipulation or disaster context")

		modelReply(t, w, "No signs of manipulation detected.")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	signals, err := c.VerifyImage(context.Background(), map[string]string{
		"image_url": "https://example.com/storm.jpg",
	})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, ProviderVerifyImage, signals[0].Provider)
	assert.Equal(t, "No signs of manipulation detected.", signals[0].Text)
}

func TestClient_EmptyCandidatesIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(generateResponse{}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.ExtractLocation(context.Background(), map[string]string{"description": "x"})
	require.Error(t, err)

	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, domain.StatusMalformedResponse, upstream.Status)
	assert.False(t, upstream.Transient())
}

func TestClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.VerifyImage(context.Background(), map[string]string{"image_url": "https://example.com/a.png"})
	require.Error(t, err)

	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, domain.StatusRateLimited, upstream.Status)
	assert.True(t, upstream.Transient())
}

func TestClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := testClient(srv.URL)
	_, err := c.ExtractLocation(ctx, map[string]string{"description": "x"})
	require.Error(t, err)
}
