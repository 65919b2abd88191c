package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/infra/ledger"
	"github.com/vietddude/docketbench/internal/retrieval/metrics"
	"github.com/vietddude/docketbench/internal/retrieval/telemetry"
)

// PoolConfig holds worker-pool settings.
type PoolConfig struct {
	// Workers is the number of deals processed concurrently.
	Workers int `yaml:"workers"`

	// RunTimeout caps the whole run. Deals still in flight when it fires
	// are forced to a terminal state; deals not yet admitted are recorded
	// as NOT_FOUND without any work.
	RunTimeout time.Duration `yaml:"run_timeout"`

	// WarnRemaining is the low-water mark: when the ledger's remaining
	// quota first drops below it a BUDGET_WARNING event is emitted.
	WarnRemaining int `yaml:"warn_remaining"`
}

// DefaultPoolConfig returns the pool defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: 4, RunTimeout: 2 * time.Hour, WarnRemaining: 50}
}

// Pool fans a dataset of deals out across workers, each deal driven to its
// terminal state by the Runner. Admission stops as soon as the daily budget
// is exhausted; in-flight deals drain normally.
type Pool struct {
	cfg    PoolConfig
	runner *Runner
	budget *ledger.Ledger
	events *telemetry.Log

	halted atomic.Bool
	warned atomic.Bool
}

// NewPool wires a pool over a runner and the shared budget ledger.
func NewPool(cfg PoolConfig, runner *Runner, budget *ledger.Ledger, events *telemetry.Log) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Pool{cfg: cfg, runner: runner, budget: budget, events: events}
}

// Halted reports whether admission stopped early on budget exhaustion.
func (p *Pool) Halted() bool { return p.halted.Load() }

// Run processes every deal and returns outcomes in dataset order. It only
// errors when the context is cancelled from outside before any work.
func (p *Pool) Run(ctx context.Context, deals []domain.Deal) ([]domain.Outcome, error) {
	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	outcomes := make([]domain.Outcome, len(deals))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, deal := range deals {
		if p.halted.Load() {
			// Budget gone: everything not yet admitted is NOT_FOUND with
			// zero spend, recorded without running the pipeline.
			p.skipRemaining(deals[i:], outcomes[i:])
			break
		}

		i, deal := i, deal
		g.Go(func() error {
			out := p.runner.Process(ctx, deal)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			p.checkBudget(deal)
			return nil
		})
	}

	_ = g.Wait()
	metrics.BudgetRemaining.Set(float64(p.budget.Remaining()))
	return outcomes, ctx.Err()
}

// checkBudget updates the halt flag and emits the one-shot low-water
// warning after each finished deal.
func (p *Pool) checkBudget(deal domain.Deal) {
	remaining := p.budget.Remaining()
	metrics.BudgetRemaining.Set(float64(remaining))

	if remaining <= 0 {
		p.halted.Store(true)
	}
	if remaining < p.cfg.WarnRemaining && p.warned.CompareAndSwap(false, true) {
		_ = p.events.Append(telemetry.EventBudgetWarning, deal, map[string]any{
			"remaining_api_calls": remaining,
			"warn_threshold":      p.cfg.WarnRemaining,
		})
	}
}

// skipRemaining records unadmitted deals as NOT_FOUND terminals.
func (p *Pool) skipRemaining(deals []domain.Deal, outcomes []domain.Outcome) {
	for i, deal := range deals {
		p.events.StartDeal(deal.DealID)
		_ = p.events.Append(telemetry.EventPipelineTerminal, deal, map[string]any{
			"pipeline_status":           string(domain.StatusNotFound),
			"total_api_calls_this_deal": 0,
			"total_llm_calls_this_deal": 0,
			"reason":                    "budget_exhausted_before_admission",
		})
		metrics.DealsProcessed.WithLabelValues(string(domain.StatusNotFound)).Inc()
		outcomes[i] = domain.Outcome{
			DealID:      deal.DealID,
			CompanyName: deal.CompanyName,
			Status:      domain.StatusNotFound,
		}
	}
}
