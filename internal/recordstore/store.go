// Package recordstore owns the hub's domain records (disasters, reports,
// resources) and is the single origin of mutation events: every committed
// create/update/delete publishes exactly one event, with a per-entity-type
// sequence assigned under the commit lock so subscribers observe mutations in
// order.
//
// The store is in-memory; durable persistence of domain records is outside
// the hub's guarantees. Because it is injected everywhere it is used, a
// durable implementation can replace it without touching callers.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Publisher receives one event per committed mutation.
type Publisher interface {
	Publish(event domain.MutationEvent)
}

// DisasterPatch updates a disaster; nil fields are left unchanged.
type DisasterPatch struct {
	Title        *string
	LocationName *string
	Description  *string
	Tags         *[]string
}

// ReportPatch updates a report; nil fields are left unchanged. Changing
// Content re-runs the priority classifier.
type ReportPatch struct {
	Content  *string
	ImageURL *string
}

// ResourcePatch updates a resource; nil fields are left unchanged.
type ResourcePatch struct {
	Name        *string
	Type        *string
	Description *string
	Lat         *float64
	Lon         *float64
}

// Store holds the hub's domain records.
type Store struct {
	publisher  Publisher
	classifier *domain.Classifier
	clock      clockwork.Clock
	logger     *slog.Logger

	mu        sync.Mutex
	disasters map[string]domain.Disaster
	reports   map[string]domain.Report
	resources map[string]domain.Resource
	sequences map[domain.EntityType]int64
}

// New creates an empty record store publishing mutations to publisher.
func New(publisher Publisher, classifier *domain.Classifier, clock clockwork.Clock, logger *slog.Logger) *Store {
	return &Store{
		publisher:  publisher,
		classifier: classifier,
		clock:      clock,
		logger:     logger,
		disasters:  make(map[string]domain.Disaster),
		reports:    make(map[string]domain.Report),
		resources:  make(map[string]domain.Resource),
		sequences:  make(map[domain.EntityType]int64),
	}
}

// CreateDisaster commits a new disaster record.
func (s *Store) CreateDisaster(ctx context.Context, disaster domain.Disaster) (domain.Disaster, error) {
	if err := ctx.Err(); err != nil {
		return domain.Disaster{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	disaster.ID = uuid.NewString()
	disaster.CreatedAt = now
	disaster.UpdatedAt = now
	s.disasters[disaster.ID] = disaster

	s.publish(domain.MutationCreated, domain.EntityDisaster, disaster.ID, disaster)
	return disaster, nil
}

// GetDisaster returns one disaster by id.
func (s *Store) GetDisaster(ctx context.Context, id string) (domain.Disaster, error) {
	if err := ctx.Err(); err != nil {
		return domain.Disaster{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	disaster, ok := s.disasters[id]
	if !ok {
		return domain.Disaster{}, ErrNotFound
	}
	return disaster, nil
}

// ListDisasters returns all disasters, optionally filtered to those carrying tag.
func (s *Store) ListDisasters(ctx context.Context, tag string) ([]domain.Disaster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Disaster, 0, len(s.disasters))
	for _, disaster := range s.disasters {
		if tag != "" && !slices.Contains(disaster.Tags, tag) {
			continue
		}
		out = append(out, disaster)
	}
	slices.SortFunc(out, func(a, b domain.Disaster) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// UpdateDisaster applies patch to an existing disaster and commits the result.
func (s *Store) UpdateDisaster(ctx context.Context, id string, patch DisasterPatch) (domain.Disaster, error) {
	if err := ctx.Err(); err != nil {
		return domain.Disaster{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	disaster, ok := s.disasters[id]
	if !ok {
		return domain.Disaster{}, ErrNotFound
	}
	if patch.Title != nil {
		disaster.Title = *patch.Title
	}
	if patch.LocationName != nil {
		disaster.LocationName = *patch.LocationName
	}
	if patch.Description != nil {
		disaster.Description = *patch.Description
	}
	if patch.Tags != nil {
		disaster.Tags = slices.Clone(*patch.Tags)
	}
	disaster.UpdatedAt = s.clock.Now()
	s.disasters[id] = disaster

	s.publish(domain.MutationUpdated, domain.EntityDisaster, id, disaster)
	return disaster, nil
}

// DeleteDisaster removes a disaster.
func (s *Store) DeleteDisaster(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	disaster, ok := s.disasters[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.disasters, id)

	s.publish(domain.MutationDeleted, domain.EntityDisaster, id, disaster)
	return nil
}

// CreateReport commits a new report, classifying its content for urgency.
func (s *Store) CreateReport(ctx context.Context, report domain.Report) (domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return domain.Report{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	report.ID = uuid.NewString()
	report.Priority = s.classifier.IsPriorityText(report.Content)
	report.CreatedAt = now
	report.UpdatedAt = now
	s.reports[report.ID] = report

	s.publish(domain.MutationCreated, domain.EntityReport, report.ID, report)
	return report, nil
}

// GetReport returns one report by id.
func (s *Store) GetReport(ctx context.Context, id string) (domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return domain.Report{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok {
		return domain.Report{}, ErrNotFound
	}
	return report, nil
}

// ListReports returns all reports in creation order.
func (s *Store) ListReports(ctx context.Context) ([]domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Report, 0, len(s.reports))
	for _, report := range s.reports {
		out = append(out, report)
	}
	slices.SortFunc(out, func(a, b domain.Report) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// UpdateReport applies patch to an existing report and commits the result.
func (s *Store) UpdateReport(ctx context.Context, id string, patch ReportPatch) (domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return domain.Report{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok {
		return domain.Report{}, ErrNotFound
	}
	if patch.Content != nil {
		report.Content = *patch.Content
		report.Priority = s.classifier.IsPriorityText(report.Content)
	}
	if patch.ImageURL != nil {
		report.ImageURL = *patch.ImageURL
	}
	report.UpdatedAt = s.clock.Now()
	s.reports[id] = report

	s.publish(domain.MutationUpdated, domain.EntityReport, id, report)
	return report, nil
}

// DeleteReport removes a report.
func (s *Store) DeleteReport(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.reports, id)

	s.publish(domain.MutationDeleted, domain.EntityReport, id, report)
	return nil
}

// CreateResource commits a new resource record.
func (s *Store) CreateResource(ctx context.Context, resource domain.Resource) (domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return domain.Resource{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	resource.ID = uuid.NewString()
	resource.CreatedAt = now
	resource.UpdatedAt = now
	s.resources[resource.ID] = resource

	s.publish(domain.MutationCreated, domain.EntityResource, resource.ID, resource)
	return resource, nil
}

// ListResources returns all resources in creation order.
func (s *Store) ListResources(ctx context.Context) ([]domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Resource, 0, len(s.resources))
	for _, resource := range s.resources {
		out = append(out, resource)
	}
	slices.SortFunc(out, func(a, b domain.Resource) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// UpdateResource applies patch to an existing resource and commits the result.
func (s *Store) UpdateResource(ctx context.Context, id string, patch ResourcePatch) (domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return domain.Resource{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resource, ok := s.resources[id]
	if !ok {
		return domain.Resource{}, ErrNotFound
	}
	if patch.Name != nil {
		resource.Name = *patch.Name
	}
	if patch.Type != nil {
		resource.Type = *patch.Type
	}
	if patch.Description != nil {
		resource.Description = *patch.Description
	}
	if patch.Lat != nil {
		resource.Lat = *patch.Lat
	}
	if patch.Lon != nil {
		resource.Lon = *patch.Lon
	}
	resource.UpdatedAt = s.clock.Now()
	s.resources[id] = resource

	s.publish(domain.MutationUpdated, domain.EntityResource, id, resource)
	return resource, nil
}

// DeleteResource removes a resource.
func (s *Store) DeleteResource(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resource, ok := s.resources[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.resources, id)

	s.publish(domain.MutationDeleted, domain.EntityResource, id, resource)
	return nil
}

// publish assigns the next sequence for the entity type and emits the event.
// Callers hold s.mu, which is what makes sequences monotone per entity type
// and keeps publication in commit order.
func (s *Store) publish(kind domain.MutationKind, entityType domain.EntityType, id string, record any) {
	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("mutation payload not serializable", "entity_type", entityType, "entity_id", id, "error", err)
		payload = nil
	}

	s.sequences[entityType]++
	s.publisher.Publish(domain.MutationEvent{
		Kind:       kind,
		EntityType: entityType,
		EntityID:   id,
		Payload:    payload,
		Sequence:   s.sequences[entityType],
		OccurredAt: s.clock.Now(),
	})
}
