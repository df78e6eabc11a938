package twitter

import (
	"context"
	"fmt"

	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
)

// MockSearch returns a provider that serves canned tweets for local
// development, used when no bearer token is configured.
func MockSearch() domain.ProviderFunc {
	templates := []string{
		"URGENT: severe flooding reported near %s, roads impassable",
		"Power outages across %s after the storm, crews on the way",
		"Shelter open at the community center for anyone displaced in %s",
	}
	return func(_ context.Context, params map[string]string) ([]domain.Signal, error) {
		signals := make([]domain.Signal, 0, len(templates))
		for i, tmpl := range templates {
			signals = append(signals, domain.Signal{
				ID:         fmt.Sprintf("mock-%d", i+1),
				Provider:   ProviderSocialSearch,
				Text:       fmt.Sprintf(tmpl, params["q"]),
				ObservedAt: domain.Now(),
			})
		}
		return signals, nil
	}
}
