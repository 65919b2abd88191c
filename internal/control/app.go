// Package control assembles the benchmark application: budget ledger,
// search strategies, gatekeeper, fetch cascade, worker pool, archive and
// the metrics endpoint.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/docketbench/internal/core/config"
	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/core/worker"
	"github.com/vietddude/docketbench/internal/infra/ledger"
	redisclient "github.com/vietddude/docketbench/internal/infra/redis"
	"github.com/vietddude/docketbench/internal/infra/storage"
	"github.com/vietddude/docketbench/internal/infra/storage/memory"
	"github.com/vietddude/docketbench/internal/infra/storage/postgres"
	"github.com/vietddude/docketbench/internal/retrieval/bench"
	"github.com/vietddude/docketbench/internal/retrieval/fetch"
	"github.com/vietddude/docketbench/internal/retrieval/gatekeeper"
	"github.com/vietddude/docketbench/internal/retrieval/pipeline"
	"github.com/vietddude/docketbench/internal/retrieval/search"
	"github.com/vietddude/docketbench/internal/retrieval/telemetry"
)

// App owns every long-lived component of one benchmark run.
type App struct {
	cfg   *config.AppConfig
	runID string

	budget      *ledger.Ledger
	gate        *ledger.Gate
	events      *telemetry.Log
	pool        *pipeline.Pool
	server      *Server
	db          *postgres.DB
	redisClient *redisclient.Client
	outcomes    storage.OutcomeRepository
	pruner      *worker.Pruner

	deals []domain.Deal
	truth map[string]domain.GroundTruthEntry

	log *slog.Logger
}

// NewApp wires the application from configuration.
func NewApp(cfg *config.AppConfig) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{
		cfg:   cfg,
		runID: uuid.NewString(),
		log:   slog.Default().With("component", "app"),
	}

	deals, err := config.LoadDeals(cfg.Dataset.DealsPath)
	if err != nil {
		return nil, err
	}
	app.deals = deals

	if cfg.Dataset.GroundTruthPath != "" {
		truth, err := config.LoadGroundTruth(cfg.Dataset.GroundTruthPath)
		if err != nil {
			return nil, err
		}
		app.truth = truth
	}

	// Budget state: redis when configured, local file otherwise.
	var store ledger.Store
	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		app.redisClient = rc
		store = rc
		slog.Info("Using redis budget state")
	} else {
		store, err = ledger.NewFileStore(cfg.Budget.StateFile)
		if err != nil {
			return nil, fmt.Errorf("failed to init budget state file: %w", err)
		}
		slog.Info("Using file budget state", "path", cfg.Budget.StateFile)
	}

	app.budget, err = ledger.New(cfg.Budget.DailyQuota, store)
	if err != nil {
		return nil, fmt.Errorf("failed to init budget ledger: %w", err)
	}
	app.gate = ledger.NewGate(cfg.Budget.RatePerSecond)

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			return nil, err
		}
		app.db = db
		app.outcomes = postgres.NewOutcomeRepo(db)
		slog.Info("Using PostgreSQL outcome archive")
	} else {
		app.outcomes = memory.NewOutcomeRepo()
		slog.Info("Using in-memory outcome archive")
	}
	app.pruner = worker.NewPruner(cfg.Dataset.Retention, cfg.Dataset.DownloadDir, app.outcomes)

	app.events, err = telemetry.Open(cfg.Dataset.LogDir, app.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	runner, err := app.buildRunner()
	if err != nil {
		return nil, err
	}
	app.pool = pipeline.NewPool(cfg.Pool, runner, app.budget, app.events)
	app.server = NewServer(app, cfg.Server.Port)
	return app, nil
}

// buildRunner assembles the strategy cascade, gatekeeper and fetch stack.
func (a *App) buildRunner() (*pipeline.Runner, error) {
	// Every reservation first clears the rate gate, then the daily ledger.
	budgetFn := func(ctx context.Context, n int) error {
		if err := a.gate.Wait(ctx); err != nil {
			return err
		}
		return a.budget.Reserve(n)
	}
	refundFn := a.budget.Release

	cl := search.NewCourtListenerStrategy(a.cfg.Search.CourtListener, budgetFn)
	strategies := []search.Strategy{cl}

	var sessions *search.SessionManager
	if a.cfg.Search.PortalEnabled {
		driver, err := search.NewHTTPPortalDriver(a.cfg.Search.CourtListener.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to init portal driver: %w", err)
		}
		sessions = search.NewSessionManager(driver)
		strategies = append(strategies, search.NewPortalStrategy(sessions, budgetFn))
	}

	model := gatekeeper.NewHTTPModel(a.cfg.Gatekeeper.Model)
	if a.cfg.Search.AgentEnabled {
		// The agent strategy reserves its allowance up front; tool calls
		// only clear the rate gate.
		agent := search.NewModelAgent(model, func(ctx context.Context, deal domain.Deal, query string) ([]domain.Candidate, error) {
			if err := a.gate.Wait(ctx); err != nil {
				return nil, err
			}
			cands, err := cl.RunQuery(ctx, deal, query)
			_ = a.events.Append(telemetry.EventAgentToolCall, deal, map[string]any{
				"query":      query,
				"candidates": len(cands),
			})
			return cands, err
		})
		strategies = append(strategies, search.NewAgentStrategy(agent, budgetFn, refundFn))
	}

	gate := gatekeeper.New(model, a.cfg.Gatekeeper.Decision)

	limits := fetch.Limits{MaxBytes: a.cfg.Fetch.MaxBytes, Timeout: a.cfg.Fetch.Timeout}
	retryCfg := fetch.RetryConfig{
		MaxAttempts:     a.cfg.Fetch.MaxAttempts,
		InitialDelay:    a.cfg.Fetch.InitialDelay,
		MaxDelay:        a.cfg.Fetch.MaxDelay,
		BackoffMultiple: 2.0,
	}
	primary := fetch.NewHTTPTransport(limits)
	var alternate fetch.Transport
	if sessions != nil {
		alternate = fetch.NewBrowserTransport(sessions, limits)
	}
	coordinator := fetch.NewCoordinator(primary, alternate, retryCfg, a.cfg.Dataset.DownloadDir)

	return pipeline.NewRunner(a.cfg.Pipeline, strategies, gate, coordinator, a.events), nil
}

// RunID returns this run's identifier.
func (a *App) RunID() string { return a.runID }

// Run executes the full benchmark: every deal to its terminal state, then
// scoring and archival. It returns the report.
func (a *App) Run(ctx context.Context) (*bench.Report, error) {
	start := time.Now()
	a.log.Info("Run starting",
		"run_id", a.runID,
		"deals", len(a.deals),
		"budget_remaining", a.budget.Remaining(),
	)

	go a.pruner.Start(ctx)

	outcomes, err := a.pool.Run(ctx, a.deals)
	if err != nil && len(outcomes) == 0 {
		return nil, err
	}
	for i := range outcomes {
		outcomes[i].RunID = a.runID
	}

	if a.outcomes != nil {
		if err := a.outcomes.SaveAll(ctx, outcomes); err != nil {
			a.log.Error("Failed to archive outcomes", "error", err)
		}
	}

	if a.truth == nil {
		a.log.Info("No ground truth configured, skipping benchmark scoring")
		return nil, nil
	}

	report, err := bench.Build(a.runID, outcomes, a.truth, time.Since(start))
	if err != nil {
		return nil, err
	}
	a.log.Info("Run finished", "run_id", a.runID, "summary", report.Summary())
	return report, nil
}

// StartServer begins serving /metrics and /health in the background.
func (a *App) StartServer() {
	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Warn("Metrics server stopped", "error", err)
		}
	}()
}

// Close releases every resource the app holds.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.server != nil {
		if err := a.server.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
