package repository

import (
	"context"
	"database/sql"
	"time"

	"poolconnect/internal/models"
)

// TimerRepo persists timer definitions.
type TimerRepo interface {
	Create(ctx context.Context, d models.TimerDefinition) (int64, error)
	Update(ctx context.Context, d models.TimerDefinition) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*models.TimerDefinition, error)
	List(ctx context.Context) ([]models.TimerDefinition, error)
	Count(ctx context.Context) (int, error)
}

// EventFilter narrows an event log query; zero fields are ignored.
type EventFilter struct {
	From    time.Time
	To      time.Time
	Type    string
	TimerID int64
}

// EventRepo is the append-only timer event log.
type EventRepo interface {
	Append(ctx context.Context, e models.TimerEvent) error
	List(ctx context.Context, f EventFilter) ([]models.TimerEvent, error)
}

type Repository struct {
	TimerRepo TimerRepo
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		TimerRepo: NewTimerSQLite(db),
		EventRepo: NewEventSQLite(db),
	}
}
