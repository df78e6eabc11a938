// Package femafeed reads the FEMA disaster RSS feed as a provider of
// official updates.
package femafeed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
)

// ProviderOfficialUpdates is the ID under which this client's provider
// registers.
const ProviderOfficialUpdates = "official_updates"

// Client fetches and parses the FEMA disaster feed.
type Client struct {
	feedURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a feed client for the given URL.
func NewClient(feedURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		feedURL: feedURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Updates fetches the feed and returns one signal per item. The feed is
// public and takes no parameters.
func (c *Client) Updates(ctx context.Context, _ map[string]string) ([]domain.Signal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{
			Provider: ProviderOfficialUpdates,
			Status:   domain.StatusNetworkFailure,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status := domain.StatusNetworkFailure
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			status = domain.StatusBadRequest
		}
		return nil, &domain.UpstreamError{
			Provider: ProviderOfficialUpdates,
			Status:   status,
			Err:      fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var feed rss
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, &domain.UpstreamError{
			Provider: ProviderOfficialUpdates,
			Status:   domain.StatusMalformedResponse,
			Err:      err,
		}
	}

	signals := make([]domain.Signal, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		raw, _ := json.Marshal(it)
		s := domain.Signal{
			ID:       strings.TrimSpace(it.GUID),
			Provider: ProviderOfficialUpdates,
			Title:    title,
			Text:     strings.TrimSpace(it.Description),
			Link:     strings.TrimSpace(it.Link),
			Payload:  raw,
		}
		if s.ID == "" {
			s.ID = s.Link
		}
		if ts, err := parsePubDate(it.PubDate); err == nil {
			s.ObservedAt = ts
		}
		signals = append(signals, s)
	}
	return signals, nil
}

func parsePubDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty pubDate")
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized pubDate %q", v)
}

// RSS feed types, limited to the fields the feed actually carries.

type rss struct {
	XMLName xml.Name `xml:"rss" json:"-"`
	Channel channel  `xml:"channel"`
}

type channel struct {
	Items []item `xml:"item"`
}

type item struct {
	Title       string `xml:"title" json:"title"`
	Link        string `xml:"link" json:"link"`
	GUID        string `xml:"guid" json:"guid,omitempty"`
	Description string `xml:"description" json:"description,omitempty"`
	PubDate     string `xml:"pubDate" json:"pub_date,omitempty"`
}
