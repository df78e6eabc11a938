package domain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Signal is the normalized representation of one upstream result item.
// Only the fields relevant to the originating provider are populated;
// Payload always carries the raw provider response for that item.
type Signal struct {
	ID               string          `json:"id,omitempty"`
	Provider         string          `json:"provider"`
	Text             string          `json:"text,omitempty"`
	Title            string          `json:"title,omitempty"`
	Link             string          `json:"link,omitempty"`
	Lat              float64         `json:"lat"`
	Lon              float64         `json:"lon"`
	FormattedAddress string          `json:"formatted_address,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	IsPriority       bool            `json:"is_priority,omitempty"`
	ObservedAt       time.Time       `json:"observed_at,omitzero"`
}

// Result is what the aggregator returns to callers. Items is never nil:
// a provider returning zero items is a valid, cacheable result.
type Result struct {
	Items  []Signal `json:"items"`
	Cached bool     `json:"cached"`
}

// Provider is the uniform contract wrapping one upstream data source.
// Implementations must honor ctx cancellation and return an *UpstreamError
// for provider failures so callers can distinguish transient from permanent.
type Provider interface {
	Fetch(ctx context.Context, params map[string]string) ([]Signal, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, params map[string]string) ([]Signal, error)

func (f ProviderFunc) Fetch(ctx context.Context, params map[string]string) ([]Signal, error) {
	return f(ctx, params)
}

// NormalizeParams trims parameter values and drops keys whose trimmed value
// is empty, so logically identical requests share one canonical form.
func NormalizeParams(params map[string]string) map[string]string {
	normalized := make(map[string]string, len(params))
	for k, v := range params {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		normalized[strings.TrimSpace(k)] = v
	}
	return normalized
}

// Fingerprint derives the deterministic cache key for a provider request.
// Parameters are serialized in sorted key order so key ordering at the call
// site never changes the fingerprint. Every component is length-prefixed,
// making the serialization injective: no byte inside a key or value can
// shift a component boundary, so distinct requests cannot collide.
func Fingerprint(providerID string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	part := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	part(providerID)
	for _, k := range keys {
		part(k)
		part(params[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
