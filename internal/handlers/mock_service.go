package handlers

import (
	"context"

	"poolconnect/internal/device"
	"poolconnect/internal/models"
	"poolconnect/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockTimers struct {
	defs      []models.TimerDefinition
	err       error
	scenarios []service.Scenario

	lastCreated  models.TimerDefinition
	lastUpdateID int64
	lastEnabled  *bool
	lastScenario string
	deleted      []int64
}

func (m *mockTimers) find(id int64) (models.TimerDefinition, error) {
	for _, d := range m.defs {
		if d.ID == id {
			return d, nil
		}
	}
	return models.TimerDefinition{}, service.ErrTimerNotFound
}

func (m *mockTimers) List(ctx context.Context) ([]models.TimerDefinition, error) {
	return m.defs, m.err
}

func (m *mockTimers) Get(ctx context.Context, id int64) (models.TimerDefinition, error) {
	if m.err != nil {
		return models.TimerDefinition{}, m.err
	}
	return m.find(id)
}

func (m *mockTimers) Create(ctx context.Context, d models.TimerDefinition) (models.TimerDefinition, error) {
	m.lastCreated = d
	if m.err != nil {
		return models.TimerDefinition{}, m.err
	}
	d.ID = int64(len(m.defs) + 1)
	m.defs = append(m.defs, d)
	return d, nil
}

func (m *mockTimers) Update(ctx context.Context, id int64, d models.TimerDefinition) (models.TimerDefinition, error) {
	m.lastUpdateID = id
	if m.err != nil {
		return models.TimerDefinition{}, m.err
	}
	if _, err := m.find(id); err != nil {
		return models.TimerDefinition{}, err
	}
	d.ID = id
	return d, nil
}

func (m *mockTimers) Delete(ctx context.Context, id int64) error {
	if m.err != nil {
		return m.err
	}
	if _, err := m.find(id); err != nil {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockTimers) SetEnabled(ctx context.Context, id int64, enabled bool) (models.TimerDefinition, error) {
	m.lastEnabled = &enabled
	d, err := m.find(id)
	if err != nil {
		return models.TimerDefinition{}, err
	}
	d.Enabled = enabled
	return d, nil
}

func (m *mockTimers) Scenarios() ([]service.Scenario, error) {
	return m.scenarios, nil
}

func (m *mockTimers) CreateFromScenario(ctx context.Context, key, name string) (models.TimerDefinition, error) {
	m.lastScenario = key
	for _, sc := range m.scenarios {
		if sc.Key == key {
			d := sc.Timer
			if name != "" {
				d.Name = name
			}
			return m.Create(ctx, d)
		}
	}
	return models.TimerDefinition{}, service.ErrScenarioNotFound
}

func (m *mockTimers) Seed(ctx context.Context, path string) (int, error) {
	return 0, nil
}

type mockDirectory struct {
	rows []models.TimerStatus
	err  error
}

func (m *mockDirectory) List(ctx context.Context) ([]models.TimerStatus, error) {
	return m.rows, m.err
}

func (m *mockDirectory) Get(ctx context.Context, id int64) (models.TimerStatus, error) {
	for _, r := range m.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return models.TimerStatus{}, service.ErrTimerNotFound
}

func (m *mockDirectory) ActiveCount(ctx context.Context) (int, error) {
	n := 0
	for _, r := range m.rows {
		if r.Context.State == models.StateRunning {
			n++
		}
	}
	return n, m.err
}

type mockEventLog struct {
	resp []models.TimerEvent
	err  error
	last service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.TimerEvent, error) {
	m.last = f
	return m.resp, m.err
}

type mockDevice struct {
	snap     models.SensorSnapshot
	relays   []models.RelayState
	outputs  models.Outputs
	err      error
	requests []models.RelayState
	override device.SensorOverride
}

func (m *mockDevice) Snapshot(ctx context.Context) (models.SensorSnapshot, error) {
	return m.snap, m.err
}

func (m *mockDevice) Relays(ctx context.Context) ([]models.RelayState, error) {
	return m.relays, m.err
}

func (m *mockDevice) RequestRelay(ctx context.Context, index int, on bool) error {
	if m.err != nil {
		return m.err
	}
	m.requests = append(m.requests, models.RelayState{Index: index, On: on})
	return nil
}

func (m *mockDevice) Override(ctx context.Context, o device.SensorOverride) (models.SensorSnapshot, error) {
	m.override = o
	return m.snap, m.err
}

func (m *mockDevice) Outputs(ctx context.Context) (models.Outputs, error) {
	return m.outputs, m.err
}

func (m *mockDevice) SetBuzzerMode(ctx context.Context, enabled, muted bool) (models.Outputs, error) {
	m.outputs.BuzzerEnabled = enabled
	m.outputs.BuzzerMuted = muted
	return m.outputs, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
