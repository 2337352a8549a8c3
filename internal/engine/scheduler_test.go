package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"poolconnect/internal/device"
	"poolconnect/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func at(day, h, m int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type relayWrite struct {
	relay int
	on    bool
}

// recordingDevice wraps the simulator, logging relay writes and injecting failures.
type recordingDevice struct {
	*device.Simulator
	mu     sync.Mutex
	writes []relayWrite
	fail   map[int]error
}

func newDevice() *recordingDevice {
	return &recordingDevice{Simulator: device.NewSimulator(device.Config{AmbientC: 20, WaterC: 20, BuzzerEnabled: true}, nil)}
}

func (d *recordingDevice) SetRelay(i int, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail[i]; err != nil {
		return err
	}
	d.writes = append(d.writes, relayWrite{i, on})
	return d.Simulator.SetRelay(i, on)
}

func (d *recordingDevice) offWrites(relay int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, w := range d.writes {
		if w.relay == relay && !w.on {
			n++
		}
	}
	return n
}

func (d *recordingDevice) setWater(v float64) {
	_ = d.Override(device.SensorOverride{WaterTemp: &v})
}

func (d *recordingDevice) setLeak(v bool) {
	_ = d.Override(device.SensorOverride{WaterLeak: &v})
}

type memSink struct {
	mu     sync.Mutex
	events []models.TimerEvent
}

func (m *memSink) Append(_ context.Context, e models.TimerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memSink) types(id int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		if e.TimerID == id {
			out = append(out, e.Type)
		}
	}
	return out
}

func relay(i int, on bool) models.Action {
	return models.Action{Kind: models.ActionRelay, Relay: &models.RelayParams{Index: i, On: on}}
}

func wait(min int) models.Action {
	return models.Action{Kind: models.ActionWait, Wait: &models.WaitParams{Minutes: min}}
}

func auto(expression string) models.Action {
	eq := models.Equation{}
	if expression != "" {
		eq = models.Equation{UseCustom: true, Expression: expression}
	}
	return models.Action{Kind: models.ActionAutoDuration, AutoDuration: &models.AutoDurationParams{Equation: eq}}
}

func measure(min int) models.Action {
	return models.Action{Kind: models.ActionMeasureTemperature, Measure: &models.MeasureParams{AfterPumpMinutes: min}}
}

func timerDef(id int64, hour, minute int, actions ...models.Action) models.TimerDefinition {
	return models.TimerDefinition{
		ID:        id,
		Name:      "timer",
		Enabled:   true,
		Days:      [7]bool{true, true, true, true, true, true, true},
		StartTime: models.StartTime{Kind: models.StartFixed, Hour: hour, Minute: minute},
		Actions:   actions,
	}
}

type harness struct {
	s     *Scheduler
	dev   *recordingDevice
	sink  *memSink
	reg   *prometheus.Registry
	clock time.Time
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{dev: newDevice(), sink: &memSink{}, reg: prometheus.NewRegistry(), clock: monday}
	base := []Option{
		WithLocation(time.UTC),
		WithEventSink(h.sink),
		WithMetrics(NewMetrics(h.reg)),
		WithClock(func() time.Time { return h.clock }),
	}
	h.s = New(h.dev, append(base, opts...)...)
	return h
}

func (h *harness) tick(now time.Time) {
	h.clock = now
	h.s.Tick(context.Background(), now)
}

func (h *harness) status(t *testing.T, id int64) models.RuntimeContext {
	t.Helper()
	st, ok := h.s.Status(id)
	require.True(t, ok, "timer %d missing from directory", id)
	return st.Context
}

func TestScheduler_RunsPipelineToCompletion(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayPump, true), wait(5), relay(models.RelayPump, false))})

	h.tick(at(0, 7, 59))
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)

	h.tick(at(0, 8, 0))
	ctx := h.status(t, 1)
	assert.Equal(t, models.StateRunning, ctx.State)
	assert.Equal(t, 1, ctx.CurrentActionIndex)
	assert.True(t, h.dev.Relays()[models.RelayPump])
	assert.Equal(t, int64(1), h.s.RelayStates()[models.RelayPump].Owner)

	h.tick(at(0, 8, 1))
	h.tick(at(0, 8, 5))
	assert.Equal(t, 1, h.status(t, 1).CurrentActionIndex, "wait began at 08:01 and lasts until 08:06")

	h.tick(at(0, 8, 6))
	assert.Equal(t, 2, h.status(t, 1).CurrentActionIndex)

	h.tick(at(0, 8, 7))
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)
	assert.False(t, h.dev.Relays()[models.RelayPump])
	assert.Equal(t, []string{models.EventStarted, models.EventCompleted}, h.sink.types(1))

	h.tick(at(0, 9, 0))
	assert.Equal(t, models.StateInactive, h.status(t, 1).State, "one trigger per day")
}

func TestScheduler_ConditionBlocksStart(t *testing.T) {
	h := newHarness(t)
	def := timerDef(1, 8, 0, relay(models.RelayPump, true), wait(60))
	def.Conditions = []models.Condition{{Kind: models.CondWaterTempMin, Value: 15}}
	h.s.Load([]models.TimerDefinition{def})
	h.dev.setWater(10)

	for m := 0; m < 30; m++ {
		h.tick(at(0, 8, m))
		assert.Equal(t, models.StateInactive, h.status(t, 1).State)
	}
	assert.False(t, h.dev.Relays()[models.RelayPump])
	assert.Equal(t, []string{models.EventSkipped}, h.sink.types(1))

	h.dev.setWater(16)
	h.tick(at(0, 9, 0))
	assert.Equal(t, models.StateInactive, h.status(t, 1).State, "the failed check consumed today's trigger")

	h.tick(at(1, 8, 0))
	assert.Equal(t, models.StateRunning, h.status(t, 1).State)
}

func TestScheduler_SkipsIneligibleDay(t *testing.T) {
	h := newHarness(t)
	def := timerDef(1, 8, 0, relay(models.RelayPump, true), wait(10))
	def.Days = [7]bool{}
	def.Days[time.Tuesday] = true
	h.s.Load([]models.TimerDefinition{def})

	h.tick(at(0, 8, 0))
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)
	h.tick(at(1, 8, 0))
	assert.Equal(t, models.StateRunning, h.status(t, 1).State)
}

func TestScheduler_DisableReleasesWithinOneTick(t *testing.T) {
	h := newHarness(t)
	def := timerDef(1, 8, 0, relay(models.RelayPump, true), relay(models.RelayHeatPump, true), wait(120))
	h.s.Load([]models.TimerDefinition{def})

	h.tick(at(0, 8, 0))
	h.tick(at(0, 8, 1))
	h.tick(at(0, 8, 2))
	relays := h.dev.Relays()
	require.True(t, relays[models.RelayPump])
	require.True(t, relays[models.RelayHeatPump])

	def.Enabled = false
	h.s.Apply(models.TimerChange{Kind: models.ChangeToggled, ID: 1, Definition: &def})
	h.tick(at(0, 8, 3))

	st, _ := h.s.Status(1)
	assert.False(t, st.Enabled)
	assert.Equal(t, models.StateInactive, st.Context.State)
	relays = h.dev.Relays()
	assert.False(t, relays[models.RelayPump])
	assert.False(t, relays[models.RelayHeatPump])
	for _, r := range h.s.RelayStates() {
		assert.Zero(t, r.Owner)
	}
	assert.Contains(t, h.sink.types(1), models.EventAborted)
}

func TestScheduler_DeleteReleasesAndRemoves(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayLamp, true), wait(60))})
	h.tick(at(0, 8, 0))
	require.True(t, h.dev.Relays()[models.RelayLamp])

	h.s.Apply(models.TimerChange{Kind: models.ChangeDeleted, ID: 1})
	h.tick(at(0, 8, 1))

	_, ok := h.s.Status(1)
	assert.False(t, ok)
	assert.Empty(t, h.s.Directory())
	assert.False(t, h.dev.Relays()[models.RelayLamp])
}

func TestScheduler_SameRelayConflictResolvedByID(t *testing.T) {
	tests := []struct {
		name      string
		first     bool
		second    bool
		wantOn    bool
		wantOwner int64
	}{
		{"higher id switches off", true, false, false, 0},
		{"higher id switches on", false, true, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.s.Load([]models.TimerDefinition{
				timerDef(2, 8, 0, relay(models.RelayLamp, tt.second), wait(60)),
				timerDef(1, 8, 0, relay(models.RelayLamp, tt.first), wait(60)),
			})
			h.tick(at(0, 8, 0))

			assert.Equal(t, tt.wantOn, h.dev.Relays()[models.RelayLamp])
			assert.Equal(t, tt.wantOwner, h.s.RelayStates()[models.RelayLamp].Owner)
			assert.Equal(t, models.StateRunning, h.status(t, 1).State)
			assert.Equal(t, models.StateRunning, h.status(t, 2).State)
			assert.Equal(t, 1.0, testutil.ToFloat64(h.s.metrics.conflicts))
		})
	}
}

func TestScheduler_ManualRequestAppliedAfterTimers(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayLamp, true), wait(60))})

	require.NoError(t, h.s.RequestRelay(models.RelayLamp, false))
	h.tick(at(0, 8, 0))
	assert.False(t, h.dev.Relays()[models.RelayLamp])
	assert.Equal(t, 1, h.status(t, 1).CurrentActionIndex)

	require.NoError(t, h.s.RequestRelay(models.RelayValve, true))
	h.tick(at(0, 8, 1))
	assert.True(t, h.dev.Relays()[models.RelayValve])
	assert.Equal(t, OperatorOwner, h.s.RelayStates()[models.RelayValve].Owner)

	assert.ErrorIs(t, h.s.RequestRelay(9, true), ErrInvalidRelay)
}

func TestScheduler_InterlockFailureIsAttributed(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayElectrolyser, true), wait(60))})

	h.tick(at(0, 8, 0))
	ctx := h.status(t, 1)
	assert.Equal(t, models.StateError, ctx.State)
	assert.Equal(t, "relay electrolyser: pump must be active", ctx.LastError)
	assert.False(t, h.dev.Relays()[models.RelayElectrolyser])

	h.tick(at(0, 8, 1))
	assert.Equal(t, models.StateError, h.status(t, 1).State, "errors are not retried")
}

func TestScheduler_HardwareErrorReleasesOwnedRelays(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayPump, true), relay(models.RelayValve, true), wait(10))})
	h.dev.fail = map[int]error{models.RelayValve: errors.New("coil open")}

	h.tick(at(0, 8, 0))
	require.True(t, h.dev.Relays()[models.RelayPump])
	h.tick(at(0, 8, 1))

	ctx := h.status(t, 1)
	assert.Equal(t, models.StateError, ctx.State)
	assert.Equal(t, "relay valve: coil open", ctx.LastError)
	assert.False(t, h.dev.Relays()[models.RelayPump])
}

func TestScheduler_LeakDuringRunErrorsThenRecoversNextDay(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayPump, true), wait(60), relay(models.RelayPump, false))})

	h.tick(at(0, 8, 0))
	h.tick(at(0, 8, 1))
	h.dev.setLeak(true)
	h.tick(at(0, 8, 2))

	ctx := h.status(t, 1)
	assert.Equal(t, models.StateError, ctx.State)
	assert.Equal(t, "leak detected", ctx.LastError)
	assert.False(t, h.dev.Relays()[models.RelayPump])

	h.dev.setLeak(false)
	h.tick(at(0, 12, 0))
	assert.Equal(t, models.StateError, h.status(t, 1).State)

	h.tick(at(1, 8, 0))
	ctx = h.status(t, 1)
	assert.Equal(t, models.StateRunning, ctx.State)
	assert.Empty(t, ctx.LastError)
}

func TestScheduler_ReenableClearsError(t *testing.T) {
	h := newHarness(t)
	def := timerDef(1, 8, 0, relay(models.RelayElectrolyser, true))
	h.s.Load([]models.TimerDefinition{def})
	h.tick(at(0, 8, 0))
	require.Equal(t, models.StateError, h.status(t, 1).State)

	def.Enabled = false
	h.s.Apply(models.TimerChange{Kind: models.ChangeToggled, ID: 1, Definition: &def})
	h.tick(at(0, 8, 1))
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)

	def.Enabled = true
	h.s.Apply(models.TimerChange{Kind: models.ChangeToggled, ID: 1, Definition: &def})
	ctx := h.status(t, 1)
	assert.Equal(t, models.StateInactive, ctx.State)
	assert.Empty(t, ctx.LastError)
}

func TestScheduler_DefaultAutoDuration(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayPump, true), auto(""), relay(models.RelayPump, false))})
	h.dev.setWater(20)

	h.tick(at(0, 8, 0))
	h.tick(at(0, 8, 1))
	ctx := h.status(t, 1)
	assert.InDelta(t, 10, ctx.CalculatedHours, 1e-9)
	require.NotNil(t, ctx.ResumeAt)
	assert.Equal(t, at(0, 18, 1), *ctx.ResumeAt)

	h.tick(at(0, 18, 0))
	assert.Equal(t, 1, h.status(t, 1).CurrentActionIndex)
	h.tick(at(0, 18, 1))
	h.tick(at(0, 18, 2))
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)
	assert.False(t, h.dev.Relays()[models.RelayPump])
}

func TestScheduler_AutoDurationClampedToBounds(t *testing.T) {
	for _, tc := range []struct {
		water float64
		hours float64
	}{{80, 24}, {2, 3}} {
		h := newHarness(t)
		h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, auto(""), wait(1))})
		h.dev.setWater(tc.water)
		h.tick(at(0, 8, 0))
		assert.InDelta(t, tc.hours, h.status(t, 1).CalculatedHours, 1e-9)
	}
}

func TestScheduler_EquationErrorFailsRun(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayPump, true), auto("10 / (waterTemp - 20)"))})
	h.dev.setWater(20)

	h.tick(at(0, 8, 0))
	h.tick(at(0, 8, 1))
	ctx := h.status(t, 1)
	assert.Equal(t, models.StateError, ctx.State)
	assert.Contains(t, ctx.LastError, "division by zero")
	assert.False(t, h.dev.Relays()[models.RelayPump])
}

func TestScheduler_MeasureAveragesThreeSamples(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, measure(15), auto(""))})

	h.tick(at(0, 8, 0))
	assert.True(t, h.dev.Relays()[models.RelayPump], "measure starts the pump")
	assert.Equal(t, 0, h.status(t, 1).CurrentActionIndex)

	h.dev.setWater(20)
	h.tick(at(0, 8, 1))
	h.tick(at(0, 8, 5))
	h.dev.setWater(22)
	h.tick(at(0, 8, 10))
	h.dev.setWater(24)
	h.tick(at(0, 8, 14))
	assert.Equal(t, 0, h.status(t, 1).CurrentActionIndex)
	h.tick(at(0, 8, 15))

	ctx := h.status(t, 1)
	assert.Equal(t, 1, ctx.CurrentActionIndex)
	require.NotNil(t, ctx.MeasuredWaterTemp)
	assert.InDelta(t, 22, *ctx.MeasuredWaterTemp, 1e-9)

	h.dev.setWater(40)
	h.tick(at(0, 8, 16))
	assert.InDelta(t, 11, h.status(t, 1).CalculatedHours, 1e-9, "auto duration uses the measured average")
}

func TestScheduler_ContinuousCycleKeepsRelaysOn(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayPump, true), auto("24"), relay(models.RelayPump, false))})

	h.tick(at(0, 8, 0))
	h.tick(at(0, 8, 1))
	require.InDelta(t, 24, h.status(t, 1).CalculatedHours, 1e-9)

	h.tick(at(1, 8, 1))
	h.tick(at(1, 8, 2))
	assert.True(t, h.dev.Relays()[models.RelayPump], "pump kept across completion")
	assert.Equal(t, int64(1), h.s.RelayStates()[models.RelayPump].Owner)
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)

	h.tick(at(1, 8, 3))
	ctx := h.status(t, 1)
	assert.Equal(t, models.StateRunning, ctx.State)
	assert.Equal(t, dayKey(at(1, 8, 3)), ctx.LastTriggeredOn)
	assert.True(t, h.dev.Relays()[models.RelayPump])
	assert.Zero(t, h.dev.offWrites(models.RelayPump))
}

func TestScheduler_ContinuousCycleReleasesWhenNoRestart(t *testing.T) {
	h := newHarness(t)
	def := timerDef(1, 8, 0, relay(models.RelayPump, true), auto("24"), relay(models.RelayPump, false))
	def.Days = [7]bool{}
	def.Days[time.Monday] = true
	h.s.Load([]models.TimerDefinition{def})

	h.tick(at(0, 8, 0))
	h.tick(at(0, 8, 1))
	h.tick(at(1, 8, 1))
	h.tick(at(1, 8, 2))
	assert.False(t, h.dev.Relays()[models.RelayPump], "Tuesday is not eligible so the relay-off runs")
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)
}

func TestScheduler_CreatedAfterStartWaitsForNextDay(t *testing.T) {
	h := newHarness(t)
	h.clock = at(0, 10, 0)
	def := timerDef(7, 8, 0, relay(models.RelayLamp, true), wait(30))
	h.s.Apply(models.TimerChange{Kind: models.ChangeCreated, ID: 7, Definition: &def})

	h.tick(at(0, 10, 0))
	assert.Equal(t, models.StateInactive, h.status(t, 7).State)

	h.tick(at(1, 8, 0))
	assert.Equal(t, models.StateRunning, h.status(t, 7).State)
}

func TestScheduler_LoadCatchesUpAfterOutage(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayLamp, true), wait(30))})
	h.tick(at(0, 10, 0))
	assert.Equal(t, models.StateRunning, h.status(t, 1).State)
}

func TestScheduler_UpdateWhileRunningAborts(t *testing.T) {
	h := newHarness(t)
	def := timerDef(1, 8, 0, relay(models.RelayLamp, true), wait(30))
	h.s.Load([]models.TimerDefinition{def})
	h.tick(at(0, 8, 0))

	h.clock = at(0, 8, 1)
	def.Name = "renamed"
	h.s.Apply(models.TimerChange{Kind: models.ChangeUpdated, ID: 1, Definition: &def})
	h.tick(at(0, 8, 1))

	st, _ := h.s.Status(1)
	assert.Equal(t, "renamed", st.Name)
	assert.Equal(t, models.StateInactive, st.Context.State)
	assert.False(t, h.dev.Relays()[models.RelayLamp])
}

func TestScheduler_BuzzerAndLedCompleteImmediately(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0,
		models.Action{Kind: models.ActionBuzzer, Buzzer: &models.BuzzerParams{BeepCount: 2}},
		models.Action{Kind: models.ActionLed, Led: &models.LedParams{Color: 2, Mode: models.LedPulsing}},
	)})

	h.tick(at(0, 8, 0))
	assert.Equal(t, 1, h.status(t, 1).CurrentActionIndex)
	h.tick(at(0, 8, 1))
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)

	out := h.dev.Outputs()
	assert.Equal(t, 1, out.BuzzerSounded)
	assert.Equal(t, 2, out.LastBeepCount)
	assert.Equal(t, "green", out.LedColorName)
	assert.Equal(t, models.LedPulsing, out.LedMode)
}

type fakeSun struct{ rise, set int }

func (f fakeSun) SunMinutes(time.Time) (int, int) { return f.rise, f.set }

func TestScheduler_SunriseRelativeStart(t *testing.T) {
	h := newHarness(t, WithSunClock(fakeSun{rise: 6*60 + 30, set: 21 * 60}))
	def := timerDef(1, 0, 0, relay(models.RelayLamp, true), wait(30))
	def.StartTime = models.StartTime{Kind: models.StartSunrise, OffsetMinutes: 30}
	lamp := timerDef(2, 0, 0, relay(models.RelayLamp, true), wait(30))
	lamp.StartTime = models.StartTime{Kind: models.StartSunset, OffsetMinutes: -60}
	h.s.Load([]models.TimerDefinition{def, lamp})

	h.tick(at(0, 6, 59))
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)
	h.tick(at(0, 7, 0))
	assert.Equal(t, models.StateRunning, h.status(t, 1).State)

	h.tick(at(0, 19, 59))
	assert.Equal(t, models.StateInactive, h.status(t, 2).State)
	h.tick(at(0, 20, 0))
	assert.Equal(t, models.StateRunning, h.status(t, 2).State)
}

func TestScheduler_ShutdownReleasesTimerRelays(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayPump, true), wait(60))})
	h.tick(at(0, 8, 0))
	require.NoError(t, h.s.RequestRelay(models.RelayLamp, true))
	h.tick(at(0, 8, 1))

	h.s.Shutdown(context.Background())
	relays := h.dev.Relays()
	assert.False(t, relays[models.RelayPump])
	assert.True(t, relays[models.RelayLamp], "operator relays are left alone")
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)
}

func TestScheduler_DirectoryShape(t *testing.T) {
	h := newHarness(t)
	def := timerDef(3, 8, 0, relay(models.RelayPump, true), wait(60))
	def.Actions[1].Description = "Filtration"
	h.s.Load([]models.TimerDefinition{def, timerDef(1, 9, 0, wait(1))})
	h.tick(at(0, 8, 0))
	h.tick(at(0, 8, 30))

	dir := h.s.Directory()
	require.Len(t, dir, 2)
	assert.Equal(t, int64(1), dir[0].ID)
	assert.Equal(t, int64(3), dir[1].ID)
	assert.Equal(t, 2, dir[1].ActionCount)
	assert.Equal(t, "Filtration", dir[1].Context.CurrentAction)
	assert.Equal(t, 30, dir[1].Context.TotalElapsedMinutes)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.s.metrics.running))
}

func TestScheduler_OverlappingTimersShareRelay(t *testing.T) {
	tests := []struct {
		name       string
		longStart  int
		shortStart int
	}{
		{"second claim on an already running relay", 0, 30},
		{"claims in the same tick", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.s.Load([]models.TimerDefinition{
				timerDef(2, 8, tt.longStart, relay(models.RelayPump, true), wait(120)),
				timerDef(1, 8, tt.shortStart, relay(models.RelayPump, true), wait(10)),
			})

			for m := 0; m <= 45; m++ {
				h.tick(at(0, 8, m))
			}
			require.Equal(t, models.StateInactive, h.status(t, 1).State, "short timer completed")
			assert.Equal(t, models.StateRunning, h.status(t, 2).State)
			assert.True(t, h.dev.Relays()[models.RelayPump], "long timer still needs the pump")
			assert.Zero(t, h.dev.offWrites(models.RelayPump))
			st := h.s.RelayStates()[models.RelayPump]
			assert.Equal(t, int64(2), st.Owner)
			assert.Equal(t, []int64{2}, st.Holders)

			for m := 0; m <= 5; m++ {
				h.tick(at(0, 10, m))
			}
			assert.Equal(t, models.StateInactive, h.status(t, 2).State)
			assert.False(t, h.dev.Relays()[models.RelayPump], "last holder released the pump")
			assert.Empty(t, h.s.RelayStates()[models.RelayPump].Holders)
		})
	}
}

func TestScheduler_OperatorClaimSurvivesTimerRelease(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayLamp, true), wait(5))})

	h.tick(at(0, 8, 0))
	require.NoError(t, h.s.RequestRelay(models.RelayLamp, true))
	for m := 1; m <= 8; m++ {
		h.tick(at(0, 8, m))
	}
	assert.Equal(t, models.StateInactive, h.status(t, 1).State)
	assert.True(t, h.dev.Relays()[models.RelayLamp])
	assert.Equal(t, OperatorOwner, h.s.RelayStates()[models.RelayLamp].Owner)
}

func TestScheduler_ReleaseFailureRecordedAsLastError(t *testing.T) {
	h := newHarness(t)
	h.s.Load([]models.TimerDefinition{timerDef(1, 8, 0, relay(models.RelayPump, true), wait(5))})

	h.tick(at(0, 8, 0))
	require.True(t, h.dev.Relays()[models.RelayPump])
	h.dev.mu.Lock()
	h.dev.fail = map[int]error{models.RelayPump: errors.New("contactor stuck")}
	h.dev.mu.Unlock()

	for m := 1; m <= 7; m++ {
		h.tick(at(0, 8, m))
	}
	ctx := h.status(t, 1)
	assert.Equal(t, models.StateInactive, ctx.State)
	assert.Equal(t, "release relay pump: contactor stuck", ctx.LastError)
	assert.Contains(t, h.sink.types(1), models.EventError)
}
