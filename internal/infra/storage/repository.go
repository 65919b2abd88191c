package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
)

var (
	// ErrRunNotFound is returned when a run has no archived outcomes
	ErrRunNotFound = errors.New("run not found")
)

// OutcomeRepository archives deal outcomes per run.
type OutcomeRepository interface {
	// Save upserts one outcome
	Save(ctx context.Context, out domain.Outcome) error

	// SaveAll archives a full run atomically
	SaveAll(ctx context.Context, outcomes []domain.Outcome) error

	// ListByRun returns a run's outcomes in deal order
	ListByRun(ctx context.Context, runID string) ([]domain.Outcome, error)

	// DeleteRunsOlderThan prunes runs archived before the cutoff and
	// returns how many outcome rows were removed
	DeleteRunsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
