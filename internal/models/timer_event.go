package models

import "time"

// Event types written to the timer log.
const (
	EventStarted     = "STARTED"
	EventSkipped     = "SKIPPED"
	EventCompleted   = "COMPLETED"
	EventError       = "ERROR"
	EventAborted     = "ABORTED"
	EventManualRelay = "MANUAL_RELAY"
)

// TimerEvent is a single log entry. TimerID is 0 for operator events.
type TimerEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	TimerID     int64     `json:"timer_id,omitempty"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
