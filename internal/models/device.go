package models

import (
	"math"
	"time"
)

// NumRelays is the number of switchable outputs on the controller board.
const NumRelays = 5

const (
	RelayPump         = 0
	RelayElectrolyser = 1
	RelayLamp         = 2
	RelayValve        = 3
	RelayHeatPump     = 4
)

var RelayNames = [NumRelays]string{"pump", "electrolyser", "lamp", "valve", "heat_pump"}

// RelayName returns a printable label for a relay index.
func RelayName(i int) string {
	if i < 0 || i >= NumRelays {
		return "unknown"
	}
	return RelayNames[i]
}

var LedColors = [8]string{"black", "blue", "green", "cyan", "red", "magenta", "yellow", "white"}

// Reading is a numeric sensor value; OK is false when the sensor is absent or faulted.
type Reading struct {
	Value float64 `json:"value"`
	OK    bool    `json:"ok"`
}

// Available reports whether the reading can be used in a comparison.
func (r Reading) Available() bool {
	return r.OK && !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

// Valid wraps a good reading.
func Valid(v float64) Reading { return Reading{Value: v, OK: true} }

// Switch is a binary sensor.
type Switch struct {
	On bool `json:"on"`
	OK bool `json:"ok"`
}

// SensorSnapshot is the consistent set of readings used for one tick.
type SensorSnapshot struct {
	WaterTemp     Reading   `json:"waterTemp"`
	ExtTemp       Reading   `json:"extTemp"`
	WaterPressure Reading   `json:"waterPressure"`
	WeatherMax    Reading   `json:"weatherMax"`
	WeatherMin    Reading   `json:"weatherMin"`
	Sunshine      Reading   `json:"sunshine"`
	CoverOpen     Switch    `json:"coverOpen"`
	WaterLeak     Switch    `json:"waterLeak"`
	TakenAt       time.Time `json:"takenAt"`
}

// RelayState is the API view of one output.
type RelayState struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	On    bool   `json:"on"`
	// Owner is the latest claimant: a timer id, -1 for the operator, 0 for none.
	Owner int64 `json:"owner"`
	// Holders are every claimant keeping the relay on, oldest first.
	Holders []int64 `json:"holders,omitempty"`
}

// Outputs is the last buzzer/LED command the device accepted.
type Outputs struct {
	LedColor       int       `json:"ledColor"`
	LedColorName   string    `json:"ledColorName"`
	LedMode        LedMode   `json:"ledMode"`
	LedUntil       time.Time `json:"ledUntil,omitempty"`
	LastBeepCount  int       `json:"lastBeepCount"`
	BuzzerSounded  int       `json:"buzzerSounded"`
	BuzzerEnabled  bool      `json:"buzzerEnabled"`
	BuzzerMuted    bool      `json:"buzzerMuted"`
	LastBuzzerTime time.Time `json:"lastBuzzerTime,omitempty"`
}
