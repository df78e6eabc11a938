package domain

import (
	"encoding/json"
	"time"
)

// MutationKind identifies what happened to a domain record.
type MutationKind string

const (
	MutationCreated MutationKind = "created"
	MutationUpdated MutationKind = "updated"
	MutationDeleted MutationKind = "deleted"
)

// EntityType identifies which kind of domain record mutated.
type EntityType string

const (
	EntityDisaster EntityType = "disaster"
	EntityReport   EntityType = "report"
	EntityResource EntityType = "resource"
)

// MutationEvent describes a committed create/update/delete of a domain
// record. Sequence increases monotonically per EntityType and is assigned by
// the record store at commit time. Events are consumed read-only by
// subscribers and never persisted by the hub.
type MutationEvent struct {
	Kind       MutationKind    `json:"kind"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Sequence   int64           `json:"sequence"`
	OccurredAt time.Time       `json:"occurred_at"`
}
