package models

// StartKind selects how a timer's daily start minute is computed.
type StartKind string

const (
	StartFixed   StartKind = "fixed"
	StartSunrise StartKind = "sunrise"
	StartSunset  StartKind = "sunset"
)

// StartTime is either a wall-clock time or an offset from sunrise/sunset.
type StartTime struct {
	Kind          StartKind `json:"kind" yaml:"kind" validate:"required,oneof=fixed sunrise sunset"`
	Hour          int       `json:"hour" yaml:"hour" validate:"min=0,max=23"`
	Minute        int       `json:"minute" yaml:"minute" validate:"min=0,max=59"`
	OffsetMinutes int       `json:"offsetMinutes" yaml:"offsetMinutes" validate:"min=-720,max=720"`
}

// ConditionKind names a gating predicate over the sensor snapshot.
type ConditionKind string

const (
	CondCoverOpen    ConditionKind = "cover_open"
	CondCoverClosed  ConditionKind = "cover_closed"
	CondWaterTempMin ConditionKind = "water_temp_min" // water >= value
	CondWaterTempMax ConditionKind = "water_temp_max" // water <= value
	CondExtTempMin   ConditionKind = "ext_temp_min"
	CondExtTempMax   ConditionKind = "ext_temp_max"
	CondPressureMin  ConditionKind = "pressure_min"
	CondPressureMax  ConditionKind = "pressure_max"
	CondNoLeak       ConditionKind = "no_leak"
)

// Condition is one start gate. Value is in °C or bar depending on Kind.
// Continuous conditions are also enforced while the timer runs.
type Condition struct {
	Kind       ConditionKind `json:"kind" yaml:"kind" validate:"required,oneof=cover_open cover_closed water_temp_min water_temp_max ext_temp_min ext_temp_max pressure_min pressure_max no_leak"`
	Value      float64       `json:"value" yaml:"value" validate:"min=-100,max=200"`
	Continuous bool          `json:"continuous,omitempty" yaml:"continuous,omitempty"`
}

// ActionKind tags the Action variant.
type ActionKind string

const (
	ActionRelay              ActionKind = "relay"
	ActionWait               ActionKind = "wait"
	ActionMeasureTemperature ActionKind = "measure_temperature"
	ActionAutoDuration       ActionKind = "auto_duration"
	ActionBuzzer             ActionKind = "buzzer"
	ActionLed                ActionKind = "led"
)

// LedMode is the status LED animation.
type LedMode string

const (
	LedSteady   LedMode = "steady"
	LedBlinking LedMode = "blinking"
	LedPulsing  LedMode = "pulsing"
)

type RelayParams struct {
	Index           int  `json:"index" yaml:"index" validate:"min=0,max=4"`
	On              bool `json:"on" yaml:"on"`
	PreDelayMinutes int  `json:"preDelayMinutes" yaml:"preDelayMinutes" validate:"min=0,max=1440"`
}

type WaitParams struct {
	Minutes int `json:"minutes" yaml:"minutes" validate:"min=1,max=1440"`
}

// MeasureParams: the pump warm-up before the averaged reading is complete.
type MeasureParams struct {
	AfterPumpMinutes int `json:"afterPumpMinutes" yaml:"afterPumpMinutes" validate:"min=0,max=240"`
}

// DefaultExpression is used when an AutoDuration equation is not custom.
const DefaultExpression = "waterTemp / 2"

// Equation is the formula an AutoDuration evaluates, in hours.
type Equation struct {
	UseCustom  bool   `json:"useCustom" yaml:"useCustom"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty" validate:"max=256"`
}

// Source returns the expression that will actually be evaluated.
func (e Equation) Source() string {
	if e.UseCustom {
		return e.Expression
	}
	return DefaultExpression
}

type AutoDurationParams struct {
	Equation Equation `json:"equation" yaml:"equation"`
}

// BuzzerParams: zero beeps sounds the continuous alarm pattern.
type BuzzerParams struct {
	BeepCount int `json:"beepCount" yaml:"beepCount" validate:"min=0,max=10"`
}

// LedParams: zero duration keeps the LED state until changed.
type LedParams struct {
	Color           int     `json:"color" yaml:"color" validate:"min=0,max=7"`
	Mode            LedMode `json:"mode" yaml:"mode" validate:"required,oneof=steady blinking pulsing"`
	DurationSeconds int     `json:"durationSeconds" yaml:"durationSeconds" validate:"min=0,max=86400"`
}

// Action is a tagged variant; exactly the payload named by Kind is set.
type Action struct {
	Kind         ActionKind          `json:"kind" yaml:"kind" validate:"required,oneof=relay wait measure_temperature auto_duration buzzer led"`
	Description  string              `json:"description,omitempty" yaml:"description,omitempty" validate:"max=64"`
	Relay        *RelayParams        `json:"relay,omitempty" yaml:"relay,omitempty"`
	Wait         *WaitParams         `json:"wait,omitempty" yaml:"wait,omitempty"`
	Measure      *MeasureParams      `json:"measure,omitempty" yaml:"measure,omitempty"`
	AutoDuration *AutoDurationParams `json:"autoDuration,omitempty" yaml:"autoDuration,omitempty"`
	Buzzer       *BuzzerParams       `json:"buzzer,omitempty" yaml:"buzzer,omitempty"`
	Led          *LedParams          `json:"led,omitempty" yaml:"led,omitempty"`
}

// Limits enforced when a definition is authored.
const (
	MaxTimers     = 20
	MaxConditions = 10
	MaxActions    = 50
)

// TimerDefinition is the persisted, user-authored automation.
// Days is indexed by time.Weekday (Sunday = 0).
type TimerDefinition struct {
	ID         int64       `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name" validate:"required,max=64"`
	Enabled    bool        `json:"enabled" yaml:"enabled"`
	Days       [7]bool     `json:"days" yaml:"days"`
	StartTime  StartTime   `json:"startTime" yaml:"startTime"`
	Conditions []Condition `json:"conditions" yaml:"conditions" validate:"max=10,dive"`
	Actions    []Action    `json:"actions" yaml:"actions" validate:"required,min=1,max=50,dive"`
}

// Clone returns a deep copy so callers cannot alias engine-owned slices.
func (d TimerDefinition) Clone() TimerDefinition {
	out := d
	out.Conditions = append([]Condition(nil), d.Conditions...)
	out.Actions = make([]Action, len(d.Actions))
	for i, a := range d.Actions {
		out.Actions[i] = a.clone()
	}
	return out
}

func (a Action) clone() Action {
	out := a
	if a.Relay != nil {
		v := *a.Relay
		out.Relay = &v
	}
	if a.Wait != nil {
		v := *a.Wait
		out.Wait = &v
	}
	if a.Measure != nil {
		v := *a.Measure
		out.Measure = &v
	}
	if a.AutoDuration != nil {
		v := *a.AutoDuration
		out.AutoDuration = &v
	}
	if a.Buzzer != nil {
		v := *a.Buzzer
		out.Buzzer = &v
	}
	if a.Led != nil {
		v := *a.Led
		out.Led = &v
	}
	return out
}

// ChangeKind describes a configuration store mutation.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
	ChangeToggled ChangeKind = "toggled"
)

// TimerChange is the notification the scheduler consumes after a store write.
// Definition is nil for deletions.
type TimerChange struct {
	Kind       ChangeKind
	ID         int64
	Definition *TimerDefinition
}
