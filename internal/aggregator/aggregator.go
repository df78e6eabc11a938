// Package aggregator orchestrates provider calls through the fingerprint
// cache and normalizes their results for callers.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/disaster-signal-hub/internal/cache"
	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
	"github.com/couchcryptid/disaster-signal-hub/internal/observability"
)

// DefaultTTL is the cache lifetime applied when a registration does not
// override it.
const DefaultTTL = time.Hour

// Registration declares how one provider is aggregated. The aggregator never
// special-cases a provider beyond what is declared here.
type Registration struct {
	Provider domain.Provider

	// TTL is the cache lifetime for this provider's results (DefaultTTL if zero).
	TTL time.Duration

	// Timeout bounds each upstream fetch. Zero means the caller's context
	// deadline applies unchanged.
	Timeout time.Duration

	// Required lists parameter keys that must be present and non-empty.
	Required []string

	// Textual marks providers whose items carry free text that should be
	// run through the priority classifier.
	Textual bool

	// BestEffort providers degrade to a placeholder item on transient
	// upstream failure instead of failing the caller.
	BestEffort bool
}

// Aggregator serves provider requests through the cache.
type Aggregator struct {
	cache      *cache.Cache[[]domain.Signal]
	classifier *domain.Classifier
	logger     *slog.Logger
	metrics    *observability.Metrics

	// registrations is written only during wiring, before Request is called.
	registrations map[string]Registration
}

// New creates an Aggregator. Providers are added with Register before serving.
func New(c *cache.Cache[[]domain.Signal], classifier *domain.Classifier, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		cache:         c,
		classifier:    classifier,
		logger:        logger,
		metrics:       metrics,
		registrations: make(map[string]Registration),
	}
}

// Register adds a provider under id. Registration happens at wiring time and
// is not safe to interleave with Request.
func (a *Aggregator) Register(id string, reg Registration) error {
	if id == "" {
		return fmt.Errorf("provider id is required")
	}
	if reg.Provider == nil {
		return fmt.Errorf("provider %q has no implementation", id)
	}
	if _, exists := a.registrations[id]; exists {
		return fmt.Errorf("provider %q already registered", id)
	}
	a.registrations[id] = reg
	return nil
}

// Request fetches data for (providerID, params), serving from the cache when
// a valid entry exists. Invalid input is rejected before any fingerprint is
// computed. Result.Items is never nil on a nil error.
func (a *Aggregator) Request(ctx context.Context, providerID string, params map[string]string) (domain.Result, error) {
	reg, ok := a.registrations[providerID]
	if !ok {
		return domain.Result{}, &domain.ValidationError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", providerID)}
	}

	normalized := domain.NormalizeParams(params)
	for _, key := range reg.Required {
		if normalized[key] == "" {
			return domain.Result{}, &domain.ValidationError{Field: key, Reason: "required parameter is missing or empty"}
		}
	}

	fingerprint := domain.Fingerprint(providerID, normalized)

	items, cached, err := a.cache.GetOrLoad(ctx, fingerprint, a.ttlFor(reg), func(ctx context.Context) ([]domain.Signal, error) {
		return a.fetch(ctx, providerID, reg, normalized)
	})
	if err != nil {
		if reg.BestEffort && transient(err) {
			a.metrics.ProviderRequests.WithLabelValues(providerID, "degraded").Inc()
			a.logger.Warn("provider degraded to placeholder result", "provider", providerID, "error", err)
			return domain.Result{Items: a.classify(reg, placeholderItems(providerID))}, nil
		}
		return domain.Result{}, err
	}

	return domain.Result{Items: a.classify(reg, items), Cached: cached}, nil
}

// Invalidate drops the cached entry for (providerID, params) so the next
// request reloads from the provider.
func (a *Aggregator) Invalidate(ctx context.Context, providerID string, params map[string]string) {
	a.cache.Invalidate(ctx, domain.Fingerprint(providerID, domain.NormalizeParams(params)))
}

// Ready reports whether the aggregator's cache store is reachable.
func (a *Aggregator) Ready(ctx context.Context) error {
	return a.cache.Ready(ctx)
}

func (a *Aggregator) fetch(ctx context.Context, providerID string, reg Registration, params map[string]string) ([]domain.Signal, error) {
	if reg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, reg.Timeout)
		defer cancel()
	}

	start := time.Now()
	items, err := reg.Provider.Fetch(ctx, params)
	a.metrics.ProviderDuration.WithLabelValues(providerID).Observe(time.Since(start).Seconds())
	if err != nil {
		a.metrics.ProviderRequests.WithLabelValues(providerID, "error").Inc()
		return nil, err
	}
	a.metrics.ProviderRequests.WithLabelValues(providerID, "success").Inc()

	if items == nil {
		// Zero items is a valid, cacheable result.
		items = []domain.Signal{}
	}
	return items, nil
}

func (a *Aggregator) classify(reg Registration, items []domain.Signal) []domain.Signal {
	if items == nil {
		items = []domain.Signal{}
	}
	if !reg.Textual {
		return items
	}
	// Copy before stamping: concurrent callers joined on one in-flight load
	// share the loaded slice.
	classified := make([]domain.Signal, len(items))
	copy(classified, items)
	for i := range classified {
		classified[i].IsPriority = a.classifier.IsPriorityText(classified[i].Text)
		if classified[i].IsPriority {
			a.metrics.PrioritySignals.Inc()
		}
	}
	return classified
}

func (a *Aggregator) ttlFor(reg Registration) time.Duration {
	if reg.TTL > 0 {
		return reg.TTL
	}
	return DefaultTTL
}

func transient(err error) bool {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Transient()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func placeholderItems(providerID string) []domain.Signal {
	return []domain.Signal{{
		ID:         "placeholder",
		Provider:   providerID,
		Text:       "Search temporarily unavailable. Results will resume when the upstream provider recovers.",
		ObservedAt: domain.Now(),
	}}
}
