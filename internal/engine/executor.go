package engine

import (
	"fmt"
	"time"

	"poolconnect/internal/models"
)

type stepOutcome int

const (
	stepWait stepOutcome = iota
	stepDone
	stepFail
)

// measureSamples is how many water temperature readings are averaged.
const measureSamples = 3

// execute advances the current action by at most one completion. Actions
// never block: anything that must wait stores an absolute ResumeAt.
func (s *Scheduler) execute(t *tick, e *entry) {
	if e.rt.CurrentActionIndex >= len(e.def.Actions) {
		t.done = append(t.done, e)
		return
	}
	a := e.def.Actions[e.rt.CurrentActionIndex]
	if !e.rt.ActionBegun {
		s.begin(t, e, a)
	}

	var (
		out    stepOutcome
		reason string
	)
	switch a.Kind {
	case models.ActionRelay:
		out = s.stepRelay(t, e, a.Relay)
	case models.ActionWait:
		out = stepUntil(t, e, time.Duration(a.Wait.Minutes)*time.Minute)
	case models.ActionMeasureTemperature:
		out, reason = s.stepMeasure(t, e, a.Measure)
	case models.ActionAutoDuration:
		out, reason = s.stepAutoDuration(t, e, a.AutoDuration)
	case models.ActionBuzzer:
		if err := s.dev.TriggerBuzzer(a.Buzzer.BeepCount); err != nil {
			out, reason = stepFail, fmt.Sprintf("buzzer: %v", err)
		} else {
			out = stepDone
		}
	case models.ActionLed:
		if err := s.dev.SetLED(a.Led.Color, a.Led.Mode, a.Led.DurationSeconds); err != nil {
			out, reason = stepFail, fmt.Sprintf("led: %v", err)
		} else {
			out = stepDone
		}
	default:
		out, reason = stepFail, fmt.Sprintf("unsupported action %q", a.Kind)
	}

	switch out {
	case stepFail:
		s.fail(t, e, reason)
	case stepDone:
		t.done = append(t.done, e)
	}
}

func (s *Scheduler) begin(t *tick, e *entry, a models.Action) {
	e.rt.ActionBegun = true
	e.rt.ActionStartedAt = t.now
	e.rt.ResumeAt = time.Time{}
	if a.Kind == models.ActionMeasureTemperature {
		e.rt.Samples = nil
		e.rt.MeasuredWaterTemp = nil
		if t.relays[models.RelayPump] && !s.pumpOnSince.IsZero() {
			e.rt.ActionStartedAt = s.pumpOnSince
		}
	}
	s.log.Debugw("action_begin", "timer_id", e.def.ID, "index", e.rt.CurrentActionIndex, "kind", a.Kind)
}

// stepUntil completes once d has elapsed since the action began.
func stepUntil(t *tick, e *entry, d time.Duration) stepOutcome {
	if e.rt.ResumeAt.IsZero() {
		e.rt.ResumeAt = e.rt.ActionStartedAt.Add(d)
	}
	if t.now.Before(e.rt.ResumeAt) {
		return stepWait
	}
	return stepDone
}

func (s *Scheduler) stepRelay(t *tick, e *entry, p *models.RelayParams) stepOutcome {
	if p.PreDelayMinutes > 0 && stepUntil(t, e, time.Duration(p.PreDelayMinutes)*time.Minute) == stepWait {
		return stepWait
	}
	if !p.On && s.holdsForNextCycle(e, t.now, p.Index) {
		e.rt.Kept[p.Index] = true
		s.log.Infow("relay_kept_for_next_cycle", "timer_id", e.def.ID, "relay", models.RelayName(p.Index))
		return stepDone
	}
	t.intents = append(t.intents, intent{owner: e.def.ID, relay: p.Index, on: p.On})
	return stepDone
}

// holdsForNextCycle reports whether a trailing relay-off may be skipped
// because a ~24h run is about to restart and would switch the relay on again.
func (s *Scheduler) holdsForNextCycle(e *entry, now time.Time, relay int) bool {
	if e.rt.CalculatedHours < continuityHours {
		return false
	}
	i := e.rt.CurrentActionIndex
	for _, a := range e.def.Actions[i:] {
		if a.Kind != models.ActionRelay || a.Relay.On {
			return false
		}
	}
	if !switchesOn(e.def.Actions[:i], relay) {
		return false
	}
	return s.due(e, now)
}

func switchesOn(actions []models.Action, relay int) bool {
	for _, a := range actions {
		switch a.Kind {
		case models.ActionRelay:
			if a.Relay.On && a.Relay.Index == relay {
				return true
			}
		case models.ActionMeasureTemperature:
			if relay == models.RelayPump {
				return true
			}
		}
	}
	return false
}

// stepMeasure runs the pump for the warm-up and averages readings taken at
// each third of it. A stopped pump is switched on and the warm-up restarts.
func (s *Scheduler) stepMeasure(t *tick, e *entry, p *models.MeasureParams) (stepOutcome, string) {
	if !t.relays[models.RelayPump] {
		t.intents = append(t.intents, intent{owner: e.def.ID, relay: models.RelayPump, on: true})
		e.rt.Samples = nil
		e.rt.ActionStartedAt = t.now
		e.rt.ResumeAt = time.Time{}
		s.log.Infow("measure_pump_started", "timer_id", e.def.ID)
		return stepWait, ""
	}

	warm := time.Duration(p.AfterPumpMinutes) * time.Minute
	n := len(e.rt.Samples)
	due := e.rt.ActionStartedAt.Add(warm * time.Duration(n+1) / measureSamples)
	if t.now.Before(due) {
		e.rt.ResumeAt = due
		return stepWait, ""
	}
	if !t.snap.WaterTemp.Available() {
		return stepFail, "water temperature unavailable"
	}
	e.rt.Samples = append(e.rt.Samples, t.snap.WaterTemp.Value)
	s.log.Debugw("measure_sample", "timer_id", e.def.ID, "sample", len(e.rt.Samples), "water_temp", t.snap.WaterTemp.Value)
	if len(e.rt.Samples) < measureSamples {
		e.rt.ResumeAt = e.rt.ActionStartedAt.Add(warm * time.Duration(len(e.rt.Samples)+1) / measureSamples)
		return stepWait, ""
	}

	var sum float64
	for _, v := range e.rt.Samples {
		sum += v
	}
	avg := sum / float64(len(e.rt.Samples))
	e.rt.MeasuredWaterTemp = &avg
	e.rt.ResumeAt = time.Time{}
	s.log.Infow("measure_complete", "timer_id", e.def.ID, "water_temp_avg", avg)
	return stepDone, ""
}

func (s *Scheduler) stepAutoDuration(t *tick, e *entry, p *models.AutoDurationParams) (stepOutcome, string) {
	if e.rt.ResumeAt.IsZero() {
		raw, hours, err := AutoDurationHours(p.Equation, snapshotLookup(t.snap, e.rt.MeasuredWaterTemp))
		if err != nil {
			return stepFail, err.Error()
		}
		e.rt.CalculatedHours = hours
		e.rt.ResumeAt = e.rt.ActionStartedAt.Add(time.Duration(hours * float64(time.Hour)))
		s.log.Infow("auto_duration_computed", "timer_id", e.def.ID, "equation", p.Equation.Source(),
			"raw_hours", raw, "hours", hours, "resume_at", e.rt.ResumeAt)
	}
	if t.now.Before(e.rt.ResumeAt) {
		return stepWait, ""
	}
	return stepDone, ""
}
