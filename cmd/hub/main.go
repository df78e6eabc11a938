package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-signal-hub/internal/adapter/femafeed"
	"github.com/couchcryptid/disaster-signal-hub/internal/adapter/gemini"
	"github.com/couchcryptid/disaster-signal-hub/internal/adapter/googlemaps"
	httpadapter "github.com/couchcryptid/disaster-signal-hub/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/disaster-signal-hub/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-signal-hub/internal/adapter/twitter"
	"github.com/couchcryptid/disaster-signal-hub/internal/aggregator"
	"github.com/couchcryptid/disaster-signal-hub/internal/broadcast"
	"github.com/couchcryptid/disaster-signal-hub/internal/cache"
	"github.com/couchcryptid/disaster-signal-hub/internal/config"
	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
	"github.com/couchcryptid/disaster-signal-hub/internal/observability"
	"github.com/couchcryptid/disaster-signal-hub/internal/recordstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Cache backend (feature-flagged via CACHE_BACKEND).
	var store cache.Store
	switch cfg.CacheBackend {
	case config.CacheBackendSQLite:
		sqliteStore, err := cache.OpenSQLiteStore(cfg.CacheSQLitePath)
		if err != nil {
			logger.Error("failed to open sqlite cache", "path", cfg.CacheSQLitePath, "error", err)
			os.Exit(1)
		}
		store = sqliteStore
		logger.Info("sqlite cache enabled", "path", cfg.CacheSQLitePath)
	default:
		store = cache.NewMemoryStore()
		logger.Info("in-memory cache enabled")
	}

	signalCache := cache.New[[]domain.Signal](store, clock, logger, metrics)
	classifier := domain.NewClassifier(cfg.PriorityKeywords)

	agg := aggregator.New(signalCache, classifier, logger, metrics)
	registerProviders(cfg, agg, logger)

	bus := broadcast.New(cfg.EventBufferSize, logger, metrics)
	records := recordstore.New(bus, classifier, clock, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, agg, records, bus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional Kafka egress for mutation events.
	var eventPublisher *kafkaadapter.EventPublisher
	if cfg.KafkaEnabled {
		eventPublisher = kafkaadapter.NewEventPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic, bus, logger, metrics)
		logger.Info("kafka egress enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
		go func() {
			if err := eventPublisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("kafka publisher error", "error", err)
			}
		}()
	}

	// Background sweep of expired cache entries.
	if cfg.CacheSweepInterval > 0 {
		go signalCache.RunSweeper(ctx, cfg.CacheSweepInterval)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	bus.Close()
	if eventPublisher != nil {
		if err := eventPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("cache store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// registerProviders wires each upstream whose credentials are configured.
// Missing credentials disable the provider rather than failing startup,
// except social search, which falls back to canned results for local use.
func registerProviders(cfg *config.Config, agg *aggregator.Aggregator, logger *slog.Logger) {
	if cfg.GoogleMapsAPIKey != "" {
		maps := googlemaps.NewClient(cfg.GoogleMapsAPIKey, cfg.GeocodeTimeout, logger)
		mustRegister(agg, googlemaps.ProviderGeocode, aggregator.Registration{
			Provider: domain.ProviderFunc(maps.Geocode),
			TTL:      cfg.GeocodeTTL,
			Timeout:  cfg.GeocodeTimeout,
			Required: []string{"location_name"},
		})
		mustRegister(agg, googlemaps.ProviderHospitals, aggregator.Registration{
			Provider: domain.ProviderFunc(maps.Hospitals),
			TTL:      cfg.PlacesTTL,
			Timeout:  cfg.PlacesTimeout,
			Required: []string{"lat", "lng"},
		})
		logger.Info("google maps providers enabled")
	} else {
		logger.Info("google maps providers disabled, no api key")
	}

	if cfg.GeminiAPIKey != "" {
		gem := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiTimeout, logger)
		mustRegister(agg, gemini.ProviderExtractLocation, aggregator.Registration{
			Provider: domain.ProviderFunc(gem.ExtractLocation),
			TTL:      cfg.GeminiTTL,
			Timeout:  cfg.GeminiTimeout,
			Required: []string{"description"},
			Textual:  true,
		})
		mustRegister(agg, gemini.ProviderVerifyImage, aggregator.Registration{
			Provider: domain.ProviderFunc(gem.VerifyImage),
			TTL:      cfg.GeminiTTL,
			Timeout:  cfg.GeminiTimeout,
			Required: []string{"image_url"},
			Textual:  true,
		})
		logger.Info("gemini providers enabled")
	} else {
		logger.Info("gemini providers disabled, no api key")
	}

	social := aggregator.Registration{
		TTL:        cfg.SocialSearchTTL,
		Timeout:    cfg.SocialSearchTimeout,
		Required:   []string{"q"},
		Textual:    true,
		BestEffort: true,
	}
	if cfg.TwitterBearerToken != "" {
		tw := twitter.NewClient(cfg.TwitterBearerToken, cfg.SocialSearchTimeout, logger)
		social.Provider = domain.ProviderFunc(tw.Search)
		logger.Info("social search enabled")
	} else {
		social.Provider = twitter.MockSearch()
		logger.Info("social search using canned results, no bearer token")
	}
	mustRegister(agg, twitter.ProviderSocialSearch, social)

	fema := femafeed.NewClient(cfg.FemaFeedURL, cfg.FemaFeedTimeout, logger)
	mustRegister(agg, femafeed.ProviderOfficialUpdates, aggregator.Registration{
		Provider:   domain.ProviderFunc(fema.Updates),
		TTL:        cfg.FemaFeedTTL,
		Timeout:    cfg.FemaFeedTimeout,
		Textual:    true,
		BestEffort: true,
	})
	logger.Info("official updates feed enabled", "url", cfg.FemaFeedURL)
}

func mustRegister(agg *aggregator.Aggregator, id string, reg aggregator.Registration) {
	if err := agg.Register(id, reg); err != nil {
		slog.Error("failed to register provider", "provider", id, "error", err)
		os.Exit(1)
	}
}
