package service

import (
	"context"
	"fmt"

	"poolconnect/internal/models"
)

// Runtimes is the read side of the scheduler.
type Runtimes interface {
	Directory() []models.TimerStatus
	Status(id int64) (models.TimerStatus, bool)
}

// DirectoryService exposes the per-timer runtime view.
type DirectoryService struct {
	runtimes Runtimes
}

func NewDirectoryService(runtimes Runtimes) *DirectoryService {
	return &DirectoryService{runtimes: runtimes}
}

// List returns one row per definition ordered by id.
func (s *DirectoryService) List(ctx context.Context) ([]models.TimerStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := s.runtimes.Directory()
	if out == nil {
		out = []models.TimerStatus{}
	}
	return out, nil
}

func (s *DirectoryService) Get(ctx context.Context, id int64) (models.TimerStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.TimerStatus{}, err
	}
	st, ok := s.runtimes.Status(id)
	if !ok {
		return models.TimerStatus{}, fmt.Errorf("timer %d: %w", id, ErrTimerNotFound)
	}
	return st, nil
}

// ActiveCount reports how many timers are currently running.
func (s *DirectoryService) ActiveCount(ctx context.Context) (int, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		if r.Context.State == models.StateRunning {
			n++
		}
	}
	return n, nil
}
