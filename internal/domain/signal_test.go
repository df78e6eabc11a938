package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_StableAcrossKeyOrder(t *testing.T) {
	a := Fingerprint("geocode", map[string]string{"location_name": "Paris", "lang": "en"})
	b := Fingerprint("geocode", map[string]string{"lang": "en", "location_name": "Paris"})
	assert.Equal(t, a, b)
}

func TestFingerprint_DistinguishesRequests(t *testing.T) {
	base := Fingerprint("geocode", map[string]string{"location_name": "Paris"})

	assert.NotEqual(t, base, Fingerprint("geocode", map[string]string{"location_name": "London"}))
	assert.NotEqual(t, base, Fingerprint("places", map[string]string{"location_name": "Paris"}))
	assert.NotEqual(t, base, Fingerprint("geocode", map[string]string{"location": "Paris"}))
}

func TestFingerprint_KeyValueBoundary(t *testing.T) {
	// "ab"="c" and "a"="bc" must not serialize identically.
	a := Fingerprint("p", map[string]string{"ab": "c"})
	b := Fingerprint("p", map[string]string{"a": "bc"})
	assert.NotEqual(t, a, b)
}

func TestFingerprint_PairBoundary(t *testing.T) {
	// Separator bytes appearing inside keys or values must not shift a
	// pair boundary. Both shapes are reachable through URL-encoded query
	// keys, so a collision would serve one request's cached result for
	// another.
	assert.NotEqual(t,
		Fingerprint("p", map[string]string{"a=b": "c"}),
		Fingerprint("p", map[string]string{"a": "b=c"}))

	assert.NotEqual(t,
		Fingerprint("p", map[string]string{"a": "x\x00b=y"}),
		Fingerprint("p", map[string]string{"a": "x", "b": "y"}))

	assert.NotEqual(t,
		Fingerprint("p\x00a=b", nil),
		Fingerprint("p", map[string]string{"a": "b"}))
}

func TestCoordinates_ZeroValuesSerialized(t *testing.T) {
	// Lat/lon 0.0 is a real location (Null Island); coordinates must not
	// disappear from responses when they are zero.
	sig, err := json.Marshal(Signal{Provider: "geocode", FormattedAddress: "Gulf of Guinea"})
	require.NoError(t, err)
	assert.Contains(t, string(sig), `"lat":0`)
	assert.Contains(t, string(sig), `"lon":0`)

	res, err := json.Marshal(Resource{ID: "r-1", Name: "Offshore supply point"})
	require.NoError(t, err)
	assert.Contains(t, string(res), `"lat":0`)
	assert.Contains(t, string(res), `"lon":0`)
}

func TestNormalizeParams(t *testing.T) {
	got := NormalizeParams(map[string]string{
		"location_name": "  Paris ",
		"empty":         "   ",
		"q":             "flood",
	})
	assert.Equal(t, map[string]string{"location_name": "Paris", "q": "flood"}, got)
}

func TestNormalizeParams_EqualFingerprintAfterTrim(t *testing.T) {
	a := Fingerprint("geocode", NormalizeParams(map[string]string{"location_name": "Paris"}))
	b := Fingerprint("geocode", NormalizeParams(map[string]string{"location_name": " Paris ", "unused": ""}))
	assert.Equal(t, a, b)
}

func TestUpstreamError_Transient(t *testing.T) {
	assert.True(t, (&UpstreamError{Provider: "social-search", Status: StatusRateLimited}).Transient())
	assert.True(t, (&UpstreamError{Provider: "geocode", Status: StatusNetworkFailure}).Transient())
	assert.False(t, (&UpstreamError{Provider: "geocode", Status: StatusBadRequest}).Transient())
	assert.False(t, (&UpstreamError{Provider: "geocode", Status: StatusMalformedResponse}).Transient())
	assert.False(t, (&UpstreamError{Provider: "geocode", Status: StatusUnauthorized}).Transient())
}
