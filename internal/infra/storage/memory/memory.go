// Package memory provides an in-memory outcome archive for runs without a
// database and for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/infra/storage"
)

type record struct {
	outcome  domain.Outcome
	archived time.Time
}

// OutcomeRepo keeps archived outcomes in process memory.
type OutcomeRepo struct {
	mu   sync.RWMutex
	rows map[string]map[string]record // run_id -> deal_id -> record
	now  func() time.Time
}

// NewOutcomeRepo creates an empty in-memory archive.
func NewOutcomeRepo() *OutcomeRepo {
	return &OutcomeRepo{
		rows: make(map[string]map[string]record),
		now:  time.Now,
	}
}

// Save upserts one outcome.
func (r *OutcomeRepo) Save(_ context.Context, out domain.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveLocked(out)
	return nil
}

// SaveAll archives a full run.
func (r *OutcomeRepo) SaveAll(_ context.Context, outcomes []domain.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, out := range outcomes {
		r.saveLocked(out)
	}
	return nil
}

func (r *OutcomeRepo) saveLocked(out domain.Outcome) {
	run, ok := r.rows[out.RunID]
	if !ok {
		run = make(map[string]record)
		r.rows[out.RunID] = run
	}
	run[out.DealID] = record{outcome: out, archived: r.now()}
}

// ListByRun returns a run's outcomes sorted by deal id.
func (r *OutcomeRepo) ListByRun(_ context.Context, runID string) ([]domain.Outcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.rows[runID]
	if !ok {
		return nil, storage.ErrRunNotFound
	}

	outcomes := make([]domain.Outcome, 0, len(run))
	for _, rec := range run {
		outcomes = append(outcomes, rec.outcome)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].DealID < outcomes[j].DealID
	})
	return outcomes, nil
}

// DeleteRunsOlderThan drops every run whose newest record predates cutoff.
func (r *OutcomeRepo) DeleteRunsOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for runID, run := range r.rows {
		newest := time.Time{}
		for _, rec := range run {
			if rec.archived.After(newest) {
				newest = rec.archived
			}
		}
		if newest.Before(cutoff) {
			deleted += int64(len(run))
			delete(r.rows, runID)
		}
	}
	return deleted, nil
}
