// Package device provides the controller's Device I/O: relays, sensors,
// buzzer and status LED. Simulator models the pool board in software.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"poolconnect/internal/logger"
	"poolconnect/internal/models"
)

var (
	ErrInterlock    = errors.New("pump must be active")
	ErrInvalidRelay = errors.New("invalid relay index")
	ErrInvalidLed   = errors.New("invalid led command")
	ErrInvalidBeeps = errors.New("beep count out of range")
)

// Simulation constants.
const (
	DefaultAmbientC   = 22.0
	HeatPerHourC      = 0.8 // heat pump gain with circulation
	DriftPerHourC     = 0.3 // relaxation toward ambient
	PressureRunning   = 1.2 // bar with the pump on
	PressureIdle      = 0.2
	maxBeeps          = 10
	maxLedColor       = 7
	defaultWaterTempC = 18.0
)

// Config tunes the simulator.
type Config struct {
	AmbientC      float64
	WaterC        float64
	BuzzerEnabled bool
}

// SensorOverride replaces simulated readings. Nil fields are left alone;
// names in Unavailable are reported as faulted until set again.
type SensorOverride struct {
	WaterTemp     *float64 `json:"waterTemp,omitempty"`
	ExtTemp       *float64 `json:"extTemp,omitempty"`
	WaterPressure *float64 `json:"waterPressure,omitempty"`
	WeatherMax    *float64 `json:"weatherMax,omitempty"`
	WeatherMin    *float64 `json:"weatherMin,omitempty"`
	Sunshine      *float64 `json:"sunshine,omitempty"`
	CoverOpen     *bool    `json:"coverOpen,omitempty"`
	WaterLeak     *bool    `json:"waterLeak,omitempty"`
	Unavailable   []string `json:"unavailable,omitempty"`
}

// Simulator is an in-memory pool board. It is safe for concurrent use.
type Simulator struct {
	log *logger.Logger
	now func() time.Time

	mu       sync.Mutex
	ambientC float64
	relays   [models.NumRelays]bool
	sensors  models.SensorSnapshot
	outputs  models.Outputs
	lastStep time.Time
}

// NewSimulator returns a board with all relays off and plausible readings.
func NewSimulator(cfg Config, log *logger.Logger) *Simulator {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.AmbientC == 0 {
		cfg.AmbientC = DefaultAmbientC
	}
	if cfg.WaterC == 0 {
		cfg.WaterC = defaultWaterTempC
	}
	return &Simulator{
		log:      log,
		now:      time.Now,
		ambientC: cfg.AmbientC,
		sensors: models.SensorSnapshot{
			WaterTemp:     models.Valid(cfg.WaterC),
			ExtTemp:       models.Valid(cfg.AmbientC),
			WaterPressure: models.Valid(PressureIdle),
			WeatherMax:    models.Valid(cfg.AmbientC + 4),
			WeatherMin:    models.Valid(cfg.AmbientC - 6),
			Sunshine:      models.Valid(50),
			CoverOpen:     models.Switch{On: true, OK: true},
			WaterLeak:     models.Switch{On: false, OK: true},
		},
		outputs: models.Outputs{
			LedMode:       models.LedSteady,
			LedColorName:  models.LedColors[0],
			BuzzerEnabled: cfg.BuzzerEnabled,
		},
	}
}

// SetRelay switches one output. The electrolyser refuses to start without
// the pump, and stopping the pump also stops the electrolyser.
func (d *Simulator) SetRelay(index int, on bool) error {
	if index < 0 || index >= models.NumRelays {
		return fmt.Errorf("%w: %d", ErrInvalidRelay, index)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if index == models.RelayElectrolyser && on && !d.relays[models.RelayPump] {
		return ErrInterlock
	}
	d.relays[index] = on
	if index == models.RelayPump && !on && d.relays[models.RelayElectrolyser] {
		d.relays[models.RelayElectrolyser] = false
		d.log.Infow("electrolyser_cascade_off")
	}
	d.updatePressure()
	d.log.Debugw("relay_set", "relay", models.RelayName(index), "on", on)
	return nil
}

// Relay reports one output state.
func (d *Simulator) Relay(index int) (bool, error) {
	if index < 0 || index >= models.NumRelays {
		return false, fmt.Errorf("%w: %d", ErrInvalidRelay, index)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.relays[index], nil
}

// Relays returns the current output states.
func (d *Simulator) Relays() [models.NumRelays]bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.relays
}

// Snapshot returns a consistent copy of every reading.
func (d *Simulator) Snapshot() models.SensorSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.sensors
	s.TakenAt = d.now().UTC()
	return s
}

// TriggerBuzzer sounds beeps; zero is the continuous alarm pattern. When the
// buzzer is disabled or muted the command is accepted and ignored.
func (d *Simulator) TriggerBuzzer(beeps int) error {
	if beeps < 0 || beeps > maxBeeps {
		return fmt.Errorf("%w: %d", ErrInvalidBeeps, beeps)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.outputs.BuzzerEnabled || d.outputs.BuzzerMuted {
		d.log.Debugw("buzzer_suppressed", "beeps", beeps, "enabled", d.outputs.BuzzerEnabled, "muted", d.outputs.BuzzerMuted)
		return nil
	}
	d.outputs.LastBeepCount = beeps
	d.outputs.BuzzerSounded++
	d.outputs.LastBuzzerTime = d.now().UTC()
	d.log.Infow("buzzer", "beeps", beeps)
	return nil
}

// SetLED sets the status LED; durationSeconds of zero persists.
func (d *Simulator) SetLED(color int, mode models.LedMode, durationSeconds int) error {
	if color < 0 || color > maxLedColor || durationSeconds < 0 {
		return fmt.Errorf("%w: color=%d duration=%d", ErrInvalidLed, color, durationSeconds)
	}
	switch mode {
	case models.LedSteady, models.LedBlinking, models.LedPulsing:
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidLed, mode)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs.LedColor = color
	d.outputs.LedColorName = models.LedColors[color]
	d.outputs.LedMode = mode
	d.outputs.LedUntil = time.Time{}
	if durationSeconds > 0 {
		d.outputs.LedUntil = d.now().UTC().Add(time.Duration(durationSeconds) * time.Second)
	}
	d.log.Debugw("led_set", "color", d.outputs.LedColorName, "mode", mode, "duration_s", durationSeconds)
	return nil
}

// SetBuzzerMode changes the buzzer enable and mute flags.
func (d *Simulator) SetBuzzerMode(enabled, muted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs.BuzzerEnabled = enabled
	d.outputs.BuzzerMuted = muted
}

// Outputs returns the buzzer/LED state, expiring a timed LED command.
func (d *Simulator) Outputs() models.Outputs {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expireLED(d.now())
	return d.outputs
}

// Override applies operator-supplied readings.
func (d *Simulator) Override(o SensorOverride) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := func(r *models.Reading, v *float64) {
		if v != nil {
			*r = models.Valid(*v)
		}
	}
	set(&d.sensors.WaterTemp, o.WaterTemp)
	set(&d.sensors.ExtTemp, o.ExtTemp)
	set(&d.sensors.WaterPressure, o.WaterPressure)
	set(&d.sensors.WeatherMax, o.WeatherMax)
	set(&d.sensors.WeatherMin, o.WeatherMin)
	set(&d.sensors.Sunshine, o.Sunshine)
	if o.CoverOpen != nil {
		d.sensors.CoverOpen = models.Switch{On: *o.CoverOpen, OK: true}
	}
	if o.WaterLeak != nil {
		d.sensors.WaterLeak = models.Switch{On: *o.WaterLeak, OK: true}
	}
	for _, name := range o.Unavailable {
		if err := d.markUnavailable(name); err != nil {
			return err
		}
	}
	return nil
}

func (d *Simulator) markUnavailable(name string) error {
	switch name {
	case "waterTemp":
		d.sensors.WaterTemp.OK = false
	case "extTemp":
		d.sensors.ExtTemp.OK = false
	case "waterPressure":
		d.sensors.WaterPressure.OK = false
	case "weatherMax":
		d.sensors.WeatherMax.OK = false
	case "weatherMin":
		d.sensors.WeatherMin.OK = false
	case "sunshine":
		d.sensors.Sunshine.OK = false
	case "coverOpen":
		d.sensors.CoverOpen.OK = false
	case "waterLeak":
		d.sensors.WaterLeak.OK = false
	default:
		return fmt.Errorf("unknown sensor %q", name)
	}
	return nil
}

// Run advances the physics at the given interval until ctx is canceled.
func (d *Simulator) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			d.Step(now)
		}
	}
}

// Step integrates water temperature since the previous step. With pump and
// heat pump running the water warms; otherwise it relaxes toward ambient.
func (d *Simulator) Step(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastStep.IsZero() {
		d.lastStep = now
		return
	}
	hours := now.Sub(d.lastStep).Hours()
	if hours <= 0 {
		return
	}
	d.lastStep = now

	w := &d.sensors.WaterTemp
	if !w.OK {
		return
	}
	if d.relays[models.RelayPump] && d.relays[models.RelayHeatPump] {
		w.Value += HeatPerHourC * hours
		return
	}
	w.Value = driftToward(w.Value, d.ambientC, DriftPerHourC*hours)
}

func (d *Simulator) updatePressure() {
	if !d.sensors.WaterPressure.OK {
		return
	}
	if d.relays[models.RelayPump] {
		d.sensors.WaterPressure.Value = PressureRunning
	} else {
		d.sensors.WaterPressure.Value = PressureIdle
	}
}

func (d *Simulator) expireLED(now time.Time) {
	if d.outputs.LedUntil.IsZero() || now.Before(d.outputs.LedUntil) {
		return
	}
	d.outputs.LedColor = 0
	d.outputs.LedColorName = models.LedColors[0]
	d.outputs.LedMode = models.LedSteady
	d.outputs.LedUntil = time.Time{}
}

func driftToward(v, target, step float64) float64 {
	if v > target {
		return maxFloat(v-step, target)
	}
	return minFloat(v+step, target)
}

func maxFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}
