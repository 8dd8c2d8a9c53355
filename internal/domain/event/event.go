package event

import (
	"time"

	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"github.com/google/uuid"
)

// Event represents a domain event addressed to one workflow entity
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	EntityKind workflow.Kind          `json:"entity_kind"`
	EntityID   string                 `json:"entity_id"`
	Payload    map[string]interface{} `json:"payload"`
	Timestamp  time.Time              `json:"timestamp"`
}

// New creates a new domain event with an auto-generated id and timestamp
func New(eventType Type, kind workflow.Kind, entityID string, payload map[string]interface{}) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		EntityKind: kind,
		EntityID:   entityID,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// PayloadString retrieves a string value from the payload
func (e *Event) PayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// PayloadState retrieves a workflow state from the payload
func (e *Event) PayloadState(key string) workflow.State {
	return workflow.State(e.PayloadString(key))
}
