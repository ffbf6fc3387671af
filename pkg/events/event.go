package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "ASSIST_RUN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the common implementation embedded by concrete events.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewAssistRunCompleted records a finished assist pipeline run.
func NewAssistRunCompleted(userId, projectId, intent string, operationCount int, durationMs int64) Event {
	return BaseEvent{
		Type: "ASSIST_RUN_COMPLETED",
		Data: map[string]interface{}{
			"user_id":         userId,
			"project_id":      projectId,
			"intent":          intent,
			"operation_count": operationCount,
			"duration_ms":     durationMs,
		},
		OccurredAt: time.Now(),
	}
}

// NewAssistRunFailed records a pipeline run that ended with an error.
func NewAssistRunFailed(userId, projectId, reason string) Event {
	return BaseEvent{
		Type: "ASSIST_RUN_FAILED",
		Data: map[string]interface{}{
			"user_id":    userId,
			"project_id": projectId,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}
