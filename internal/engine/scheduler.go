// Package engine runs flexible timers: it decides when each definition
// starts, gates the start on sensor conditions, steps through the action
// pipeline and arbitrates the shared relays once per tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"poolconnect/internal/logger"
	"poolconnect/internal/models"
)

// Device is the hardware surface the scheduler drives.
type Device interface {
	SetRelay(index int, on bool) error
	Relays() [models.NumRelays]bool
	Snapshot() models.SensorSnapshot
	TriggerBuzzer(beeps int) error
	SetLED(color int, mode models.LedMode, durationSeconds int) error
}

// EventSink receives timer lifecycle events after each tick.
type EventSink interface {
	Append(ctx context.Context, e models.TimerEvent) error
}

// OperatorOwner marks a relay switched on by a manual request.
const OperatorOwner int64 = -1

var ErrInvalidRelay = errors.New("invalid relay index")

// Option configures the scheduler.
type Option func(*Scheduler)

func WithLogger(log *logger.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

func WithEventSink(sink EventSink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithSunClock sets the source of sunrise/sunset minutes.
func WithSunClock(sc SunClock) Option {
	return func(s *Scheduler) { s.sun = sc }
}

// WithLocation sets the timezone that defines calendar days and start times.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// WithClock overrides the wall clock used outside of Tick.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.clock = now }
}

type entry struct {
	def     models.TimerDefinition
	rt      models.TimerRuntime
	deleted bool
	abort   string
}

// Scheduler owns every TimerRuntime and is the only writer of relays
// requested by timers or by the operator.
type Scheduler struct {
	dev     Device
	log     *logger.Logger
	sink    EventSink
	metrics *Metrics
	sun     SunClock
	loc     *time.Location
	clock   func() time.Time

	mu          sync.Mutex
	entries     map[int64]*entry
	owners      [models.NumRelays]holders
	pumpOnSince time.Time
	manual      []intent
	pending     []models.TimerEvent
}

// New creates a scheduler driving dev.
func New(dev Device, opts ...Option) *Scheduler {
	s := &Scheduler{
		dev:     dev,
		log:     logger.Nop(),
		sun:     FixedSun{},
		loc:     time.Local,
		clock:   time.Now,
		entries: make(map[int64]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load installs the persisted definitions at boot. Definitions are not armed,
// so a start time that passed while the controller was down still fires today.
func (s *Scheduler) Load(defs []models.TimerDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range defs {
		s.entries[d.ID] = &entry{
			def: d.Clone(),
			rt:  models.TimerRuntime{State: models.StateInactive},
		}
	}
	s.log.Infow("timers_loaded", "count", len(defs))
}

// Apply consumes a configuration store notification. Effects on running
// timers (abort, relay release) take place on the next tick.
func (s *Scheduler) Apply(ch models.TimerChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock().In(s.loc)

	e, ok := s.entries[ch.ID]
	switch ch.Kind {
	case models.ChangeCreated, models.ChangeUpdated:
		if ch.Definition == nil {
			return
		}
		def := ch.Definition.Clone()
		def.ID = ch.ID
		if !ok {
			e = &entry{rt: models.TimerRuntime{State: models.StateInactive}}
			s.entries[ch.ID] = e
		}
		switch e.rt.State {
		case models.StateRunning:
			e.abort = "definition changed"
		case models.StateError:
			s.reset(e)
		}
		e.def = def
		s.arm(e, now)
	case models.ChangeDeleted:
		if ok {
			e.deleted = true
		}
	case models.ChangeToggled:
		if !ok || ch.Definition == nil {
			return
		}
		enabled := ch.Definition.Enabled
		e.def.Enabled = enabled
		if !enabled {
			if e.rt.State == models.StateRunning {
				e.abort = "timer disabled"
			}
			return
		}
		if e.rt.State == models.StateError {
			s.reset(e)
		}
		s.arm(e, now)
	}
	s.log.Debugw("timer_change_applied", "timer_id", ch.ID, "kind", ch.Kind)
}

// arm consumes today's trigger when the start time has already passed, so a
// definition created or edited in the afternoon first runs on the next eligible day.
func (s *Scheduler) arm(e *entry, now time.Time) {
	if minuteOfDay(now) >= s.startMinute(e.def.StartTime, now) {
		e.rt.LastTriggeredOn = dayKey(now)
	}
}

// RequestRelay queues an operator relay command for the next tick, where it
// is applied after every timer intent.
func (s *Scheduler) RequestRelay(index int, on bool) error {
	if index < 0 || index >= models.NumRelays {
		return fmt.Errorf("%w: %d", ErrInvalidRelay, index)
	}
	owner := OperatorOwner
	s.mu.Lock()
	s.manual = append(s.manual, intent{owner: owner, relay: index, on: on})
	s.mu.Unlock()
	return nil
}

// Run ticks at the given interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	s.log.Infow("scheduler_started", "interval", interval.String(), "location", s.loc.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("scheduler_stopped")
			return
		case now := <-t.C:
			if ctx.Err() != nil {
				s.log.Infow("scheduler_stopped")
				return
			}
			s.Tick(ctx, now)
		}
	}
}

type release struct {
	id   int64
	keep [models.NumRelays]bool
}

// tick is the scratch state of one evaluation pass.
type tick struct {
	now     time.Time
	snap    models.SensorSnapshot
	relays  [models.NumRelays]bool
	intents []intent
	done    []*entry
	release []release
	remove  []int64
}

// Tick performs one scheduling pass: evaluate every timer in id order,
// arbitrate relay intents, then commit completions and release outputs.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	began := time.Now()

	s.mu.Lock()
	t := &tick{
		now:    now.In(s.loc),
		snap:   s.dev.Snapshot(),
		relays: s.dev.Relays(),
	}
	for _, id := range s.sortedIDs() {
		s.evaluate(t, s.entries[id])
	}
	t.intents = append(t.intents, s.manual...)
	s.manual = nil

	failures := s.arbitrate(t)
	s.commit(t, failures)

	running := 0
	for _, e := range s.entries {
		if e.rt.State == models.StateRunning {
			running++
		}
	}
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.flush(ctx, events)
	s.metrics.observeTick(time.Since(began), running)
}

func (s *Scheduler) evaluate(t *tick, e *entry) {
	id := e.def.ID
	switch {
	case e.deleted:
		if e.rt.State == models.StateRunning {
			s.emit(t.now, id, models.EventAborted, "timer deleted", nil)
		}
		t.release = append(t.release, release{id: id})
		t.remove = append(t.remove, id)
		return
	case e.abort != "":
		reason := e.abort
		e.abort = ""
		if e.rt.State == models.StateRunning {
			s.emit(t.now, id, models.EventAborted, reason, nil)
			s.log.Infow("timer_aborted", "timer_id", id, "reason", reason)
		}
		s.reset(e)
		t.release = append(t.release, release{id: id})
		return
	case !e.def.Enabled:
		if e.rt.State != models.StateInactive {
			s.reset(e)
		}
		if s.ownsAny(id) {
			t.release = append(t.release, release{id: id})
		}
		return
	}

	if e.rt.State == models.StateError {
		if !s.due(e, t.now) {
			return
		}
		s.reset(e)
	}

	if e.rt.State == models.StateInactive {
		if !s.due(e, t.now) {
			if s.ownsAny(id) {
				t.release = append(t.release, release{id: id})
			}
			return
		}
		e.rt.LastTriggeredOn = dayKey(t.now)
		if !EvaluateConditions(e.def.Conditions, t.snap) {
			s.emit(t.now, id, models.EventSkipped, "start conditions not met", nil)
			s.log.Infow("timer_skipped", "timer_id", id, "name", e.def.Name)
			if s.ownsAny(id) {
				t.release = append(t.release, release{id: id})
			}
			return
		}
		s.start(e, t.now)
	}

	if ok, reason := SafetyHolds(e.def.Conditions, t.snap); !ok {
		s.fail(t, e, reason)
		return
	}
	s.execute(t, e)
}

// due reports whether the timer's trigger for now's calendar day is pending.
func (s *Scheduler) due(e *entry, now time.Time) bool {
	if !e.def.Enabled || !e.def.Days[int(now.Weekday())] {
		return false
	}
	if e.rt.LastTriggeredOn == dayKey(now) {
		return false
	}
	return minuteOfDay(now) >= s.startMinute(e.def.StartTime, now)
}

func (s *Scheduler) startMinute(st models.StartTime, day time.Time) int {
	var m int
	switch st.Kind {
	case models.StartSunrise:
		rise, _ := s.sun.SunMinutes(day)
		m = rise + st.OffsetMinutes
	case models.StartSunset:
		_, set := s.sun.SunMinutes(day)
		m = set + st.OffsetMinutes
	default:
		return st.Hour*60 + st.Minute
	}
	if m < 0 {
		return 0
	}
	if m > 24*60-1 {
		return 24*60 - 1
	}
	return m
}

func (s *Scheduler) start(e *entry, now time.Time) {
	e.rt = models.TimerRuntime{
		State:           models.StateRunning,
		StartedAt:       now,
		LastTriggeredOn: dayKey(now),
	}
	s.metrics.transition(string(models.StateRunning))
	s.emit(now, e.def.ID, models.EventStarted, fmt.Sprintf("%s started", e.def.Name), nil)
	s.log.Infow("timer_started", "timer_id", e.def.ID, "name", e.def.Name, "actions", len(e.def.Actions))
}

func (s *Scheduler) fail(t *tick, e *entry, reason string) {
	e.rt.State = models.StateError
	e.rt.LastError = reason
	e.rt.ResumeAt = time.Time{}
	t.release = append(t.release, release{id: e.def.ID})
	s.metrics.transition(string(models.StateError))
	s.emit(t.now, e.def.ID, models.EventError, reason, map[string]any{
		"action_index": e.rt.CurrentActionIndex,
	})
	s.log.Warnw("timer_failed", "timer_id", e.def.ID, "name", e.def.Name,
		"action_index", e.rt.CurrentActionIndex, "reason", reason)
}

// reset returns a runtime to Inactive, keeping only the consumed trigger day.
func (s *Scheduler) reset(e *entry) {
	if e.rt.State != models.StateInactive {
		s.metrics.transition(string(models.StateInactive))
	}
	e.rt = models.TimerRuntime{
		State:           models.StateInactive,
		LastTriggeredOn: e.rt.LastTriggeredOn,
	}
}

func (s *Scheduler) advance(t *tick, e *entry) {
	e.rt.CurrentActionIndex++
	e.rt.ActionBegun = false
	e.rt.ResumeAt = time.Time{}
	if e.rt.CurrentActionIndex < len(e.def.Actions) {
		return
	}

	keep := e.rt.Kept
	elapsed := int(t.now.Sub(e.rt.StartedAt).Minutes())
	s.emit(t.now, e.def.ID, models.EventCompleted, fmt.Sprintf("%s completed", e.def.Name), map[string]any{
		"elapsed_minutes":  elapsed,
		"calculated_hours": e.rt.CalculatedHours,
	})
	s.log.Infow("timer_completed", "timer_id", e.def.ID, "name", e.def.Name,
		"elapsed_minutes", elapsed, "kept_relays", keptNames(keep))
	s.reset(e)
	t.release = append(t.release, release{id: e.def.ID, keep: keep})
}

func (s *Scheduler) commit(t *tick, failures map[int64]error) {
	ids := make([]int64, 0, len(failures))
	for id := range failures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if e, ok := s.entries[id]; ok && e.rt.State == models.StateRunning {
			s.fail(t, e, failures[id].Error())
		}
	}

	for _, e := range t.done {
		if _, failed := failures[e.def.ID]; failed || e.rt.State != models.StateRunning {
			continue
		}
		s.advance(t, e)
	}

	for _, r := range t.release {
		s.releaseOwned(t, r)
	}
	for _, id := range t.remove {
		delete(s.entries, id)
		s.log.Infow("timer_removed", "timer_id", id)
	}
	s.syncOwners(t.now)
}

func (s *Scheduler) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Scheduler) emit(now time.Time, id int64, typ, desc string, meta map[string]any) {
	ev := models.TimerEvent{
		OccurredAt:  now.UTC(),
		Type:        typ,
		TimerID:     id,
		Description: desc,
	}
	if meta != nil {
		ev.Metadata = meta
	}
	s.pending = append(s.pending, ev)
}

func (s *Scheduler) flush(ctx context.Context, events []models.TimerEvent) {
	if s.sink == nil {
		return
	}
	for _, ev := range events {
		if err := s.sink.Append(ctx, ev); err != nil {
			s.log.Errorw("event_append_failed", "err", err, "type", ev.Type, "timer_id", ev.TimerID)
		}
	}
}

// Directory returns a status row per definition, ordered by id.
func (s *Scheduler) Directory() []models.TimerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock().In(s.loc)
	out := make([]models.TimerStatus, 0, len(s.entries))
	for _, id := range s.sortedIDs() {
		e := s.entries[id]
		if e.deleted {
			continue
		}
		out = append(out, statusOf(e, now))
	}
	return out
}

// Status returns one Directory row.
func (s *Scheduler) Status(id int64) (models.TimerStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.deleted {
		return models.TimerStatus{}, false
	}
	return statusOf(e, s.clock().In(s.loc)), true
}

func statusOf(e *entry, now time.Time) models.TimerStatus {
	rt := e.rt
	ctx := models.RuntimeContext{
		State:              rt.State,
		CurrentActionIndex: rt.CurrentActionIndex,
		LastError:          rt.LastError,
		CalculatedHours:    rt.CalculatedHours,
		LastTriggeredOn:    rt.LastTriggeredOn,
	}
	if rt.MeasuredWaterTemp != nil {
		v := *rt.MeasuredWaterTemp
		ctx.MeasuredWaterTemp = &v
	}
	if rt.State == models.StateRunning {
		started := rt.StartedAt
		ctx.StartedAt = &started
		ctx.TotalElapsedMinutes = int(now.Sub(rt.StartedAt).Minutes())
		if !rt.ResumeAt.IsZero() {
			resume := rt.ResumeAt
			ctx.ResumeAt = &resume
		}
		if rt.CurrentActionIndex < len(e.def.Actions) {
			a := e.def.Actions[rt.CurrentActionIndex]
			ctx.CurrentAction = a.Description
			if ctx.CurrentAction == "" {
				ctx.CurrentAction = string(a.Kind)
			}
		}
	}
	return models.TimerStatus{
		ID:          e.def.ID,
		Name:        e.def.Name,
		Enabled:     e.def.Enabled,
		ActionCount: len(e.def.Actions),
		Context:     ctx,
	}
}

// Shutdown drops every timer claim, switches off relays nobody else holds
// and aborts running timers.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.mu.Lock()
	now := s.clock().In(s.loc)
	for r := 0; r < models.NumRelays; r++ {
		var held holders
		for _, id := range s.owners[r] {
			if id <= 0 {
				held = held.add(id)
			}
		}
		if len(held) == len(s.owners[r]) {
			continue
		}
		s.owners[r] = held
		if len(held) > 0 || !s.dev.Relays()[r] {
			continue
		}
		if err := s.write(r, false); err != nil {
			s.log.Errorw("relay_release_failed", "err", err, "relay", models.RelayName(r))
		}
	}
	for _, id := range s.sortedIDs() {
		e := s.entries[id]
		if e.rt.State == models.StateRunning {
			s.emit(now, id, models.EventAborted, "controller shutting down", nil)
			s.reset(e)
		}
	}
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.flush(ctx, events)
	s.log.Infow("scheduler_outputs_released")
}
