package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"poolconnect/internal/models"
)

// ErrNotFound is returned by writes that matched no row.
var ErrNotFound = errors.New("not found")

type TimerSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewTimerSQLite(db *sql.DB) *TimerSQLite {
	return &TimerSQLite{db: db, now: time.Now}
}

var _ TimerRepo = (*TimerSQLite)(nil)

const (
	insertTimerSQL = `INSERT INTO timer_definitions (name, enabled, days, start_time, conditions, actions, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	updateTimerSQL = `UPDATE timer_definitions SET name = ?, enabled = ?, days = ?, start_time = ?, conditions = ?, actions = ?, updated_at = ? WHERE id = ?`

	setTimerEnabledSQL = `UPDATE timer_definitions SET enabled = ?, updated_at = ? WHERE id = ?`

	deleteTimerSQL = `DELETE FROM timer_definitions WHERE id = ?`

	selectTimerSQL = `SELECT id, name, enabled, days, start_time, conditions, actions FROM timer_definitions WHERE id = ?`

	listTimersSQL = `SELECT id, name, enabled, days, start_time, conditions, actions FROM timer_definitions ORDER BY id ASC`

	countTimersSQL = `SELECT COUNT(*) FROM timer_definitions`
)

// timerColumns holds the JSON-encoded columns of a definition.
type timerColumns struct {
	days, start, conditions, actions string
}

func encodeTimer(d models.TimerDefinition) (timerColumns, error) {
	var (
		c   timerColumns
		err error
	)
	if c.days, err = marshalColumn(d.Days); err != nil {
		return c, fmt.Errorf("encode days: %w", err)
	}
	if c.start, err = marshalColumn(d.StartTime); err != nil {
		return c, fmt.Errorf("encode start_time: %w", err)
	}
	conds := d.Conditions
	if conds == nil {
		conds = []models.Condition{}
	}
	if c.conditions, err = marshalColumn(conds); err != nil {
		return c, fmt.Errorf("encode conditions: %w", err)
	}
	if c.actions, err = marshalColumn(d.Actions); err != nil {
		return c, fmt.Errorf("encode actions: %w", err)
	}
	return c, nil
}

func marshalColumn(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimer(row rowScanner) (models.TimerDefinition, error) {
	var (
		d models.TimerDefinition
		c timerColumns
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Enabled, &c.days, &c.start, &c.conditions, &c.actions); err != nil {
		return d, err
	}
	if err := json.Unmarshal([]byte(c.days), &d.Days); err != nil {
		return d, fmt.Errorf("decode days of timer %d: %w", d.ID, err)
	}
	if err := json.Unmarshal([]byte(c.start), &d.StartTime); err != nil {
		return d, fmt.Errorf("decode start_time of timer %d: %w", d.ID, err)
	}
	if err := json.Unmarshal([]byte(c.conditions), &d.Conditions); err != nil {
		return d, fmt.Errorf("decode conditions of timer %d: %w", d.ID, err)
	}
	// No conditions are stored as [] and read back as nil.
	if len(d.Conditions) == 0 {
		d.Conditions = nil
	}
	if err := json.Unmarshal([]byte(c.actions), &d.Actions); err != nil {
		return d, fmt.Errorf("decode actions of timer %d: %w", d.ID, err)
	}
	return d, nil
}

// Create inserts a definition and returns its id. Ids are never reused.
func (r *TimerSQLite) Create(ctx context.Context, d models.TimerDefinition) (int64, error) {
	c, err := encodeTimer(d)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, insertTimerSQL, d.Name, d.Enabled, c.days, c.start, c.conditions, c.actions, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert timer %q: %w", d.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for timer %q: %w", d.Name, err)
	}
	return id, nil
}

// Update replaces every field of an existing definition.
func (r *TimerSQLite) Update(ctx context.Context, d models.TimerDefinition) error {
	c, err := encodeTimer(d)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, updateTimerSQL, d.Name, d.Enabled, c.days, c.start, c.conditions, c.actions, r.now().UTC(), d.ID)
	if err != nil {
		return fmt.Errorf("update timer %d: %w", d.ID, err)
	}
	return expectOneRow(res, d.ID)
}

func (r *TimerSQLite) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := r.db.ExecContext(ctx, setTimerEnabledSQL, enabled, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set enabled on timer %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (r *TimerSQLite) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteTimerSQL, id)
	if err != nil {
		return fmt.Errorf("delete timer %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

// Get fetches one definition. Returns (nil, nil) if not found.
func (r *TimerSQLite) Get(ctx context.Context, id int64) (*models.TimerDefinition, error) {
	d, err := scanTimer(r.db.QueryRowContext(ctx, selectTimerSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select timer %d: %w", id, err)
	}
	return &d, nil
}

// List returns every definition ordered by id.
func (r *TimerSQLite) List(ctx context.Context) ([]models.TimerDefinition, error) {
	rows, err := r.db.QueryContext(ctx, listTimersSQL)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	out := make([]models.TimerDefinition, 0, models.MaxTimers)
	for rows.Next() {
		d, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TimerSQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countTimersSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count timers: %w", err)
	}
	return n, nil
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for timer %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("timer %d: %w", id, ErrNotFound)
	}
	return nil
}
