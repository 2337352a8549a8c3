package engine

import (
	"errors"
	"fmt"

	"poolconnect/internal/expr"
	"poolconnect/internal/models"
)

// Auto-duration bounds in hours.
const (
	MinAutoHours = 3.0
	MaxAutoHours = 24.0

	// continuityHours is the computed duration from which a run is treated
	// as a continuous daily cycle.
	continuityHours = 23.5
)

var errSensorUnavailable = errors.New("sensor unavailable")

// ClampHours bounds a computed duration to [MinAutoHours, MaxAutoHours].
func ClampHours(h float64) float64 {
	switch {
	case h < MinAutoHours:
		return MinAutoHours
	case h > MaxAutoHours:
		return MaxAutoHours
	}
	return h
}

// AutoDurationHours evaluates eq and returns the raw and clamped hours.
func AutoDurationHours(eq models.Equation, lookup expr.Lookup) (raw, clamped float64, err error) {
	raw, err = expr.Evaluate(eq.Source(), lookup)
	if err != nil {
		return 0, 0, fmt.Errorf("equation %q: %w", eq.Source(), err)
	}
	return raw, ClampHours(raw), nil
}

// snapshotLookup resolves equation variables from a snapshot. waterTemp
// prefers the averaged measurement when one was taken during the run.
func snapshotLookup(snap models.SensorSnapshot, measured *float64) expr.Lookup {
	return func(name string) (float64, error) {
		var r models.Reading
		switch name {
		case expr.VarWaterTemp:
			if measured != nil {
				return *measured, nil
			}
			r = snap.WaterTemp
		case expr.VarExtTemp:
			r = snap.ExtTemp
		case expr.VarWeatherMax:
			r = snap.WeatherMax
		case expr.VarWeatherMin:
			r = snap.WeatherMin
		case expr.VarSunshine:
			r = snap.Sunshine
		default:
			return 0, fmt.Errorf("%w: %s", expr.ErrUnknownVariable, name)
		}
		if !r.Available() {
			return 0, fmt.Errorf("%w: %s", errSensorUnavailable, name)
		}
		return r.Value, nil
	}
}
