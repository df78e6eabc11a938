package femafeed

import (
	"context"
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

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>FEMA Disaster Declarations</title>
    <item>
      <title>Texas Severe Storms and Flooding (DR-4781)</title>
      <link>https://www.fema.gov/disaster/4781</link>
      <guid>fema-4781</guid>
      <description>Major disaster declaration for Texas.</description>
      <pubDate>Sat, 14 Mar 2026 09:30:00 +0000</pubDate>
    </item>
    <item>
      <title>  </title>
      <link>https://www.fema.gov/disaster/empty</link>
    </item>
    <item>
      <title>California Wildfires (DR-4782)</title>
      <link>https://www.fema.gov/disaster/4782</link>
    </item>
  </channel>
</rss>`

func testClient(feedURL string) *Client {
	return &Client{
		feedURL:    feedURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Updates_ParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	signals, err := c.Updates(context.Background(), nil)
	require.NoError(t, err)

	// The untitled item is skipped.
	require.Len(t, signals, 2)

	assert.Equal(t, "fema-4781", signals[0].ID)
	assert.Equal(t, ProviderOfficialUpdates, signals[0].Provider)
	assert.Equal(t, "Texas Severe Storms and Flooding (DR-4781)", signals[0].Title)
	assert.Equal(t, "https://www.fema.gov/disaster/4781", signals[0].Link)
	assert.Equal(t, "Major disaster declaration for Texas.", signals[0].Text)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), signals[0].ObservedAt.UTC())

	// Missing guid falls back to the link; missing pubDate stays zero.
	assert.Equal(t, "https://www.fema.gov/disaster/4782", signals[1].ID)
	assert.True(t, signals[1].ObservedAt.IsZero())
}

func TestClient_Updates_EmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<rss version="2.0"><channel></channel></rss>`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	signals, err := c.Updates(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestClient_Updates_MalformedXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"xml"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Updates(context.Background(), nil)
	require.Error(t, err)

	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, domain.StatusMalformedResponse, upstream.Status)
}

func TestClient_Updates_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Updates(context.Background(), nil)
	require.Error(t, err)

	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, domain.StatusNetworkFailure, upstream.Status)
	assert.True(t, upstream.Transient())
}
