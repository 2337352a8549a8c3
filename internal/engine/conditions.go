package engine

import (
	"fmt"

	"poolconnect/internal/models"
)

// EvaluateConditions reports whether every condition holds against snap.
// An implicit no-leak gate always applies. Missing or faulted readings fail closed.
func EvaluateConditions(conds []models.Condition, snap models.SensorSnapshot) bool {
	if !leakFree(snap) {
		return false
	}
	for _, c := range conds {
		if !conditionHolds(c, snap) {
			return false
		}
	}
	return true
}

// SafetyHolds is the mid-run check: the leak gate plus every Continuous condition.
// When it fails the returned reason is suitable for lastError.
func SafetyHolds(conds []models.Condition, snap models.SensorSnapshot) (bool, string) {
	if !snap.WaterLeak.OK {
		return false, "leak sensor unavailable"
	}
	if snap.WaterLeak.On {
		return false, "leak detected"
	}
	for _, c := range conds {
		if c.Continuous && !conditionHolds(c, snap) {
			return false, fmt.Sprintf("condition %s no longer met", DescribeCondition(c))
		}
	}
	return true, ""
}

func leakFree(snap models.SensorSnapshot) bool {
	return snap.WaterLeak.OK && !snap.WaterLeak.On
}

func conditionHolds(c models.Condition, snap models.SensorSnapshot) bool {
	switch c.Kind {
	case models.CondCoverOpen:
		return snap.CoverOpen.OK && snap.CoverOpen.On
	case models.CondCoverClosed:
		return snap.CoverOpen.OK && !snap.CoverOpen.On
	case models.CondWaterTempMin:
		return atLeast(snap.WaterTemp, c.Value)
	case models.CondWaterTempMax:
		return atMost(snap.WaterTemp, c.Value)
	case models.CondExtTempMin:
		return atLeast(snap.ExtTemp, c.Value)
	case models.CondExtTempMax:
		return atMost(snap.ExtTemp, c.Value)
	case models.CondPressureMin:
		return atLeast(snap.WaterPressure, c.Value)
	case models.CondPressureMax:
		return atMost(snap.WaterPressure, c.Value)
	case models.CondNoLeak:
		return leakFree(snap)
	}
	return false
}

func atLeast(r models.Reading, v float64) bool { return r.Available() && r.Value >= v }

func atMost(r models.Reading, v float64) bool { return r.Available() && r.Value <= v }

// DescribeCondition renders a condition for logs and errors.
func DescribeCondition(c models.Condition) string {
	switch c.Kind {
	case models.CondCoverOpen, models.CondCoverClosed, models.CondNoLeak:
		return string(c.Kind)
	}
	return fmt.Sprintf("%s %g", c.Kind, c.Value)
}
