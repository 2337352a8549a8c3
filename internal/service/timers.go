package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"poolconnect/internal/logger"
	"poolconnect/internal/models"
	"poolconnect/internal/repository"
)

var ErrTimerNotFound = errors.New("timer not found")

// ChangeNotifier receives store mutations after they are persisted.
type ChangeNotifier interface {
	Apply(ch models.TimerChange)
}

// TimerService is the configuration store: it validates, persists and then
// notifies the scheduler of every change.
type TimerService struct {
	repo   repository.TimerRepo
	notify ChangeNotifier
	log    *logger.Logger
}

func NewTimerService(repo repository.TimerRepo, notify ChangeNotifier, log *logger.Logger) *TimerService {
	if log == nil {
		log = logger.Nop()
	}
	return &TimerService{repo: repo, notify: notify, log: log}
}

func (s *TimerService) List(ctx context.Context) ([]models.TimerDefinition, error) {
	return s.repo.List(ctx)
}

func (s *TimerService) Get(ctx context.Context, id int64) (models.TimerDefinition, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.TimerDefinition{}, err
	}
	if d == nil {
		return models.TimerDefinition{}, fmt.Errorf("timer %d: %w", id, ErrTimerNotFound)
	}
	return *d, nil
}

// Create stores a new definition and returns it with its assigned id.
func (s *TimerService) Create(ctx context.Context, d models.TimerDefinition) (models.TimerDefinition, error) {
	d.Name = strings.TrimSpace(d.Name)
	if err := ValidateDefinition(d); err != nil {
		return models.TimerDefinition{}, err
	}
	n, err := s.repo.Count(ctx)
	if err != nil {
		return models.TimerDefinition{}, err
	}
	if n >= models.MaxTimers {
		return models.TimerDefinition{}, invalid("", "at most %d timers can be defined", models.MaxTimers)
	}

	id, err := s.repo.Create(ctx, d)
	if err != nil {
		return models.TimerDefinition{}, err
	}
	d.ID = id
	s.publish(models.ChangeCreated, id, &d)
	s.log.Infow("timer_created", "timer_id", id, "name", d.Name, "actions", len(d.Actions))
	return d, nil
}

// Update replaces a definition. A running timer is aborted on the next tick.
func (s *TimerService) Update(ctx context.Context, id int64, d models.TimerDefinition) (models.TimerDefinition, error) {
	d.ID = id
	d.Name = strings.TrimSpace(d.Name)
	if err := ValidateDefinition(d); err != nil {
		return models.TimerDefinition{}, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return models.TimerDefinition{}, notFound(err, id)
	}
	s.publish(models.ChangeUpdated, id, &d)
	s.log.Infow("timer_updated", "timer_id", id, "name", d.Name)
	return d, nil
}

func (s *TimerService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, id)
	}
	s.publish(models.ChangeDeleted, id, nil)
	s.log.Infow("timer_deleted", "timer_id", id)
	return nil
}

// SetEnabled toggles a definition and returns the stored result.
func (s *TimerService) SetEnabled(ctx context.Context, id int64, enabled bool) (models.TimerDefinition, error) {
	if err := s.repo.SetEnabled(ctx, id, enabled); err != nil {
		return models.TimerDefinition{}, notFound(err, id)
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return models.TimerDefinition{}, err
	}
	s.publish(models.ChangeToggled, id, &d)
	s.log.Infow("timer_toggled", "timer_id", id, "enabled", enabled)
	return d, nil
}

func (s *TimerService) publish(kind models.ChangeKind, id int64, d *models.TimerDefinition) {
	if s.notify == nil {
		return
	}
	ch := models.TimerChange{Kind: kind, ID: id}
	if d != nil {
		c := d.Clone()
		ch.Definition = &c
	}
	s.notify.Apply(ch)
}

func notFound(err error, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("timer %d: %w", id, ErrTimerNotFound)
	}
	return err
}
