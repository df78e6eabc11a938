package domain

import "fmt"

// UpstreamStatus categorizes provider failures.
type UpstreamStatus string

const (
	StatusRateLimited       UpstreamStatus = "rate_limited"
	StatusNetworkFailure    UpstreamStatus = "network_failure"
	StatusMalformedResponse UpstreamStatus = "malformed_response"
	StatusUnauthorized      UpstreamStatus = "unauthorized"
	StatusBadRequest        UpstreamStatus = "bad_request"
)

// UpstreamError reports a provider failure. Transient errors are safe to
// retry on the next call; permanent ones are surfaced as-is.
type UpstreamError struct {
	Provider string
	Status   UpstreamStatus
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: upstream %s", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: upstream %s: %v", e.Provider, e.Status, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Transient reports whether retrying the same request later may succeed.
func (e *UpstreamError) Transient() bool {
	return e.Status == StatusRateLimited || e.Status == StatusNetworkFailure
}

// ValidationError rejects a request before any cache lookup happens, so bad
// input never pollutes the cache.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Field, e.Reason)
}

// CacheStoreError reports that the cache's backing store is unreachable.
// The cache degrades to direct uncached provider calls instead of surfacing
// this to callers; it exists so the degradation can be logged and counted.
type CacheStoreError struct {
	Op  string
	Err error
}

func (e *CacheStoreError) Error() string {
	return fmt.Sprintf("cache store %s: %v", e.Op, e.Err)
}

func (e *CacheStoreError) Unwrap() error { return e.Err }
