package service

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"poolconnect/internal/models"

	"gopkg.in/yaml.v3"
)

// Scenario is a ready-made timer the dashboard can instantiate.
type Scenario struct {
	Key         string                 `json:"key" yaml:"key"`
	Title       string                 `json:"title" yaml:"title"`
	Description string                 `json:"description" yaml:"description"`
	Timer       models.TimerDefinition `json:"timer" yaml:"timer"`
}

var ErrScenarioNotFound = errors.New("scenario not found")

//go:embed scenarios.yml
var scenariosYAML []byte

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

type seedFile struct {
	Timers []models.TimerDefinition `yaml:"timers"`
}

// Scenarios returns the built-in presets.
func Scenarios() ([]Scenario, error) {
	var f scenarioFile
	if err := yaml.Unmarshal(scenariosYAML, &f); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}
	return f.Scenarios, nil
}

// Scenarios lists the presets; it is exposed on the service for the handlers.
func (s *TimerService) Scenarios() ([]Scenario, error) {
	return Scenarios()
}

// CreateFromScenario stores a copy of a preset. A non-empty name replaces the preset's.
func (s *TimerService) CreateFromScenario(ctx context.Context, key, name string) (models.TimerDefinition, error) {
	all, err := Scenarios()
	if err != nil {
		return models.TimerDefinition{}, err
	}
	for _, sc := range all {
		if sc.Key != key {
			continue
		}
		d := sc.Timer.Clone()
		if name != "" {
			d.Name = name
		}
		return s.Create(ctx, d)
	}
	return models.TimerDefinition{}, fmt.Errorf("%q: %w", key, ErrScenarioNotFound)
}

// Seed imports definitions from a YAML file when the store is empty.
// A missing file is not an error. It returns the number of timers created.
func (s *TimerService) Seed(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Debugw("seed_skipped", "reason", "store not empty", "count", n)
		return 0, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Infow("seed_file_missing", "path", path)
			return 0, nil
		}
		return 0, fmt.Errorf("read seed file %q: %w", path, err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("decode seed file %q: %w", path, err)
	}

	created := 0
	for i, d := range f.Timers {
		d.ID = 0
		if _, err := s.Create(ctx, d); err != nil {
			return created, fmt.Errorf("seed timer %d (%q): %w", i, d.Name, err)
		}
		created++
	}
	s.log.Infow("timers_seeded", "path", path, "count", created)
	return created, nil
}
