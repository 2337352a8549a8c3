package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"poolconnect/internal/models"
	"poolconnect/internal/repository"
)

// LogFilter supports history filtering by time range, type and timer.
type LogFilter struct {
	From    time.Time // inclusive; zero means no lower bound
	To      time.Time // inclusive; zero means no upper bound
	Type    string    // "", "STARTED", "SKIPPED", "COMPLETED", "ERROR", "ABORTED", "MANUAL_RELAY"
	TimerID int64
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errInvalidTimerID   = errors.New("invalid timer id: must be positive")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (repository.EventFilter, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.EventFilter{}, errInvalidTimeRange
	}
	if f.TimerID < 0 {
		return repository.EventFilter{}, errInvalidTimerID
	}
	return repository.EventFilter{
		From:    from,
		To:      to,
		Type:    normalizeEventType(f.Type),
		TimerID: f.TimerID,
	}, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.TimerEvent, error) {
	rf, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error(), Err: err}
	}
	return s.eventRepo.List(ctx, rf)
}
