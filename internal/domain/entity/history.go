package entity

import (
	"time"

	"github.com/fpfinfo/sosfu/internal/domain/workflow"
)

// HistoryEntry is one record of the append-only audit trail. Written only
// by the status engine; ordered by timestamp with insertion order breaking
// ties.
type HistoryEntry struct {
	ID             int64          `json:"id"`
	EntityKind     workflow.Kind  `json:"entity_kind"`
	EntityID       string         `json:"entity_id"`
	PreviousStatus workflow.State `json:"previous_status"`
	NewStatus      workflow.State `json:"new_status"`
	ActorID        string         `json:"actor_id"`
	ActorRole      workflow.Role  `json:"actor_role"`
	Reason         string         `json:"reason,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Actor is the acting user resolved by the identity provider for a
// transition call.
type Actor struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Role workflow.Role `json:"role"`
}

// SystemActor is the scheduler identity used for deadline transitions.
var SystemActor = Actor{ID: "system", Name: "Scheduler", Role: workflow.RoleSystem}

// Notification is a human-readable status-change message pushed to the
// best-effort notification sink.
type Notification struct {
	EntityKind  workflow.Kind  `json:"entity_kind"`
	EntityID    string         `json:"entity_id"`
	RecipientID string         `json:"recipient_id"`
	Status      workflow.State `json:"status"`
	Message     string         `json:"message"`
	CreatedAt   time.Time      `json:"created_at"`
}
