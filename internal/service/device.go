package service

import (
	"context"
	"fmt"

	"poolconnect/internal/device"
	"poolconnect/internal/logger"
	"poolconnect/internal/models"
)

// Board is the simulated hardware as seen by the API.
type Board interface {
	Snapshot() models.SensorSnapshot
	Outputs() models.Outputs
	Override(o device.SensorOverride) error
	SetBuzzerMode(enabled, muted bool)
}

// RelayController is the scheduler's relay surface.
type RelayController interface {
	RequestRelay(index int, on bool) error
	RelayStates() []models.RelayState
}

// DeviceService exposes sensors and outputs and forwards manual relay
// requests to the scheduler, which arbitrates them on its next tick.
type DeviceService struct {
	board  Board
	relays RelayController
	log    *logger.Logger
}

func NewDeviceService(board Board, relays RelayController, log *logger.Logger) *DeviceService {
	if log == nil {
		log = logger.Nop()
	}
	return &DeviceService{board: board, relays: relays, log: log}
}

func (s *DeviceService) Snapshot(ctx context.Context) (models.SensorSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.SensorSnapshot{}, err
	}
	return s.board.Snapshot(), nil
}

func (s *DeviceService) Relays(ctx context.Context) ([]models.RelayState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.relays.RelayStates(), nil
}

// RequestRelay queues an operator command; it takes effect on the next tick.
func (s *DeviceService) RequestRelay(ctx context.Context, index int, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if index < 0 || index >= models.NumRelays {
		return invalid("relay", "must be between 0 and %d", models.NumRelays-1)
	}
	if err := s.relays.RequestRelay(index, on); err != nil {
		return fmt.Errorf("request relay %s: %w", models.RelayName(index), err)
	}
	s.log.Infow("manual_relay_requested", "relay", models.RelayName(index), "on", on)
	return nil
}

// Override injects simulated sensor readings.
func (s *DeviceService) Override(ctx context.Context, o device.SensorOverride) (models.SensorSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.SensorSnapshot{}, err
	}
	if err := s.board.Override(o); err != nil {
		return models.SensorSnapshot{}, invalid("unavailable", "%v", err)
	}
	s.log.Infow("sensors_overridden", "unavailable", o.Unavailable)
	return s.board.Snapshot(), nil
}

func (s *DeviceService) Outputs(ctx context.Context) (models.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return models.Outputs{}, err
	}
	return s.board.Outputs(), nil
}

// SetBuzzerMode enables or mutes the buzzer for timer-driven beeps.
func (s *DeviceService) SetBuzzerMode(ctx context.Context, enabled, muted bool) (models.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return models.Outputs{}, err
	}
	s.board.SetBuzzerMode(enabled, muted)
	s.log.Infow("buzzer_mode_set", "enabled", enabled, "muted", muted)
	return s.board.Outputs(), nil
}
