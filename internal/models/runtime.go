package models

import "time"

// RunState is the timer runtime state machine position.
type RunState string

const (
	StateInactive RunState = "inactive"
	StateRunning  RunState = "running"
	StateError    RunState = "error"
)

// TimerRuntime is the engine-owned execution context of one definition.
// It is never persisted.
type TimerRuntime struct {
	State              RunState
	CurrentActionIndex int
	ActionBegun        bool
	ResumeAt           time.Time
	LastError          string

	StartedAt       time.Time
	ActionStartedAt time.Time
	// LastTriggeredOn is the local calendar day (2006-01-02) whose trigger was consumed.
	LastTriggeredOn string

	Samples           []float64
	MeasuredWaterTemp *float64
	CalculatedHours   float64
	// Kept marks relays held on across completion for a 24h cycle.
	Kept [NumRelays]bool
}

// RuntimeContext is the Directory view of a TimerRuntime.
type RuntimeContext struct {
	State               RunState   `json:"state"`
	CurrentActionIndex  int        `json:"currentActionIndex"`
	CurrentAction       string     `json:"currentAction,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	StartedAt           *time.Time `json:"startedAt,omitempty"`
	ResumeAt            *time.Time `json:"resumeAt,omitempty"`
	TotalElapsedMinutes int        `json:"totalElapsedMinutes"`
	MeasuredWaterTemp   *float64   `json:"measuredWaterTemp,omitempty"`
	CalculatedHours     float64    `json:"calculatedHours,omitempty"`
	LastTriggeredOn     string     `json:"lastTriggeredOn,omitempty"`
}

// TimerStatus is one Directory row.
type TimerStatus struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Enabled     bool           `json:"enabled"`
	ActionCount int            `json:"actionCount"`
	Context     RuntimeContext `json:"context"`
}
