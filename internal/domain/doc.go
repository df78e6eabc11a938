// Package domain models disaster-related signals aggregated from external
// providers.
//
// # Signals
//
// A Signal is the normalized unit of upstream data. Providers return wildly
// different shapes (geocoding features, generative-AI text, tweets, scraped
// feed items); adapters map each shape onto the common Signal fields and keep
// the untouched provider payload in Signal.Payload for callers that need the
// raw response.
//
// # Providers
//
// Every upstream source implements the single-method Provider contract.
// The aggregator treats all providers uniformly: it only chooses which
// provider to call and which cache TTL to apply. Provider-specific behavior
// (required parameters, request timeouts, urgency classification, degraded
// fallbacks) is declared at registration time, never hardcoded per provider.
//
// # Fingerprints
//
// Cache keys are deterministic SHA-256 fingerprints of the provider id and
// its normalized parameter set (trimmed values, empty keys dropped, stable
// key order). Identical logical requests always hash to the same fingerprint,
// so bursts of duplicate queries collapse onto one cache entry and one
// in-flight upstream call. See [Fingerprint].
//
// # Priority classification
//
// Free-text signals (social posts, citizen reports) are flagged urgent by a
// pure keyword classifier: a signal is priority iff its lower-cased text
// contains one of the configured keywords. The keyword list is configuration,
// not a constant; the default set is {"urgent", "sos", "emergency", "help",
// "immediate", "critical", "asap", "rescue", "danger"}. Classification is
// total over all strings and cannot fail.
//
// # Mutation events
//
// A MutationEvent records a committed create/update/delete of a domain record
// (disaster, report, resource). Sequence numbers increase monotonically per
// entity type and are assigned by the record owner at commit time. Events are
// fan-out only; they are never persisted or replayed for late subscribers.
package domain
