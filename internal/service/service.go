package service

import (
	"context"

	"poolconnect/internal/device"
	"poolconnect/internal/logger"
	"poolconnect/internal/models"
	"poolconnect/internal/repository"
)

// Timers is the configuration store of timer definitions.
type Timers interface {
	List(ctx context.Context) ([]models.TimerDefinition, error)
	Get(ctx context.Context, id int64) (models.TimerDefinition, error)
	Create(ctx context.Context, d models.TimerDefinition) (models.TimerDefinition, error)
	Update(ctx context.Context, id int64, d models.TimerDefinition) (models.TimerDefinition, error)
	Delete(ctx context.Context, id int64) error
	SetEnabled(ctx context.Context, id int64, enabled bool) (models.TimerDefinition, error)
	Scenarios() ([]Scenario, error)
	CreateFromScenario(ctx context.Context, key, name string) (models.TimerDefinition, error)
	Seed(ctx context.Context, path string) (int, error)
}

// Directory exposes read-only runtime state per timer.
type Directory interface {
	List(ctx context.Context) ([]models.TimerStatus, error)
	Get(ctx context.Context, id int64) (models.TimerStatus, error)
	ActiveCount(ctx context.Context) (int, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.TimerEvent, error)
}

// Device exposes sensors, relays and the buzzer/LED outputs.
type Device interface {
	Snapshot(ctx context.Context) (models.SensorSnapshot, error)
	Relays(ctx context.Context) ([]models.RelayState, error)
	RequestRelay(ctx context.Context, index int, on bool) error
	Override(ctx context.Context, o device.SensorOverride) (models.SensorSnapshot, error)
	Outputs(ctx context.Context) (models.Outputs, error)
	SetBuzzerMode(ctx context.Context, enabled, muted bool) (models.Outputs, error)
}

// Engine is the scheduler surface the services depend on.
type Engine interface {
	ChangeNotifier
	Runtimes
	RelayController
}

// Service aggregates all sub-services.
type Service struct {
	Timers
	Directory
	EventLog
	Device
}

// NewService wires the repository layer, the scheduler and the board into concrete services.
func NewService(repos *repository.Repository, engine Engine, board Board, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		Timers:    NewTimerService(repos.TimerRepo, engine, log.Named("timers")),
		Directory: NewDirectoryService(engine),
		EventLog:  NewEventLogService(repos.EventRepo),
		Device:    NewDeviceService(board, engine, log.Named("device")),
	}
}
