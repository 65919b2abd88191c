// Package ledger enforces the external API call budget.
//
// This package contains:
//   - Ledger: persisted daily quota with atomic reserve/release
//   - Gate: blocking token bucket for the per-second rate ceiling
//   - Store implementations: file-backed and redis-backed day counters
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/metrics"
)

// Store persists the used-call counter across process restarts,
// keyed by UTC calendar day (YYYY-MM-DD).
type Store interface {
	Load(day string) (int, error)
	Save(day string, used int) error
}

// Ledger tracks daily API call consumption against a fixed quota.
// Reserve and Release are safe for concurrent use; a reservation is a
// read-modify-write under one lock so two concurrent callers can never
// jointly exceed the quota.
type Ledger struct {
	mu    sync.Mutex
	quota int
	used  int
	day   string
	store Store

	now func() time.Time
}

// New creates a Ledger with the given daily quota, loading any usage
// already recorded for today.
func New(quota int, store Store) (*Ledger, error) {
	l := &Ledger{
		quota: quota,
		store: store,
		now:   time.Now,
	}
	l.day = l.today()

	used, err := store.Load(l.day)
	if err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	}
	l.used = used
	return l, nil
}

func (l *Ledger) today() string {
	return l.now().UTC().Format("2006-01-02")
}

// rolloverLocked resets the counter on the first access of a new UTC day.
// Caller must hold l.mu.
func (l *Ledger) rolloverLocked() error {
	today := l.today()
	if today == l.day {
		return nil
	}
	l.day = today
	l.used = 0
	return l.store.Save(l.day, 0)
}

// Reserve claims n budget units. Returns domain.ErrBudgetExhausted when the
// reservation would push today's usage past the quota; the counter is left
// untouched in that case.
func (l *Ledger) Reserve(n int) error {
	if n <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rolloverLocked(); err != nil {
		return err
	}

	if l.used+n > l.quota {
		metrics.BudgetDenials.Inc()
		return fmt.Errorf("%w: used %d of %d, requested %d",
			domain.ErrBudgetExhausted, l.used, l.quota, n)
	}

	l.used += n
	if err := l.store.Save(l.day, l.used); err != nil {
		// Persist failure: roll the reservation back so memory and store
		// never disagree in the ledger's favor.
		l.used -= n
		return fmt.Errorf("persist ledger state: %w", err)
	}
	return nil
}

// Release returns n unused units to the pool, compensating a reservation
// whose external call never happened.
func (l *Ledger) Release(n int) {
	if n <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.used -= n
	if l.used < 0 {
		l.used = 0
	}
	// Best effort: a failed save here self-heals on the next Reserve.
	_ = l.store.Save(l.day, l.used)
}

// Remaining returns how many units are left today.
func (l *Ledger) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rolloverLocked(); err != nil {
		return 0
	}

	remaining := l.quota - l.used
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Used returns today's consumed units.
func (l *Ledger) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}
