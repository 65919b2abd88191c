// Package pipeline drives each deal through search, evaluation and fetch.
//
// The control flow is the explicit state machine in state.go; the Runner
// executes exactly one deal to its terminal state and the Pool fans deals
// out across workers. Every decision point lands in the telemetry log, and
// the terminal event is written exactly once per deal, always last. An
// excluded deal is the exception: its EXCLUSION_SKIP is its only event.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/fetch"
	"github.com/vietddude/docketbench/internal/retrieval/gatekeeper"
	"github.com/vietddude/docketbench/internal/retrieval/metrics"
	"github.com/vietddude/docketbench/internal/retrieval/search"
	"github.com/vietddude/docketbench/internal/retrieval/telemetry"
)

// Config holds orchestration settings.
type Config struct {
	// MaxSearchAttempts bounds how many strategy invocations a deal gets.
	MaxSearchAttempts int `yaml:"max_search_attempts"`

	// AttemptBudget is the budget-unit cap handed to a strategy per call.
	AttemptBudget int `yaml:"attempt_budget"`

	// GatherAll makes search run every strategy and pool their candidates
	// instead of stopping at the first non-empty result.
	GatherAll bool `yaml:"gather_all"`

	// ExcludedCompanies and ExcludedDealIDs are skipped before any budget
	// reservation or strategy invocation.
	ExcludedCompanies []string `yaml:"excluded_companies"`
	ExcludedDealIDs   []string `yaml:"excluded_deal_ids"`
}

// DefaultConfig returns the orchestration defaults.
func DefaultConfig() Config {
	return Config{MaxSearchAttempts: 3, AttemptBudget: 6}
}

// Runner executes single deals to their terminal state.
type Runner struct {
	cfg        Config
	strategies []search.Strategy
	gate       *gatekeeper.Client
	fetcher    *fetch.Coordinator
	events     *telemetry.Log
	log        *slog.Logger

	excludedCompanies map[string]struct{}
	excludedDealIDs   map[string]struct{}
}

// NewRunner creates a runner. Strategies are tried in slice order, so the
// cheapest and most reliable strategy goes first.
func NewRunner(
	cfg Config,
	strategies []search.Strategy,
	gate *gatekeeper.Client,
	fetcher *fetch.Coordinator,
	events *telemetry.Log,
) *Runner {
	if cfg.MaxSearchAttempts == 0 {
		cfg.MaxSearchAttempts = 3
	}
	if cfg.AttemptBudget == 0 {
		cfg.AttemptBudget = 6
	}

	r := &Runner{
		cfg:               cfg,
		strategies:        strategies,
		gate:              gate,
		fetcher:           fetcher,
		events:            events,
		log:               slog.Default().With("component", "pipeline"),
		excludedCompanies: make(map[string]struct{}, len(cfg.ExcludedCompanies)),
		excludedDealIDs:   make(map[string]struct{}, len(cfg.ExcludedDealIDs)),
	}
	for _, name := range cfg.ExcludedCompanies {
		r.excludedCompanies[name] = struct{}{}
	}
	for _, id := range cfg.ExcludedDealIDs {
		r.excludedDealIDs[id] = struct{}{}
	}

	fetcher.OnFallback(func(cand domain.Candidate, from, to string) {
		deal := domain.Deal{DealID: cand.DealID}
		_ = events.Append(telemetry.EventFallbackTriggered, deal, map[string]any{
			"from_transport": from,
			"to_transport":   to,
		})
	})
	return r
}

// exclusionReason reports whether the deal must be skipped before any
// resource is spent on it, and why.
func (r *Runner) exclusionReason(deal domain.Deal) (string, bool) {
	if deal.AlreadyProcessed {
		return "already_processed", true
	}
	if _, ok := r.excludedCompanies[deal.CompanyName]; ok {
		return "excluded_company", true
	}
	if _, ok := r.excludedDealIDs[deal.DealID]; ok {
		return "excluded_deal_id", true
	}
	return "", false
}

// run-scoped mutable state for one deal.
type dealRun struct {
	deal       domain.Deal
	state      State
	apiCalls   int
	llmCalls   int
	accepted   *domain.Candidate // set once a DOWNLOAD verdict lands
	fetched    domain.FetchResult
	candidates []domain.Candidate
	nextStrat  int  // index of the next strategy to try
	attempts   int  // strategy invocations so far
	resorted   bool // fetch already sent us back to search once
}

// Process drives one deal to its terminal state and returns its Outcome.
// An active deal never finishes without its terminal event: cancellation
// and budget exhaustion terminate it as NOT_FOUND or FETCH_FAILED rather
// than leaving it dangling.
func (r *Runner) Process(ctx context.Context, deal domain.Deal) domain.Outcome {
	r.events.StartDeal(deal.DealID)

	run := &dealRun{deal: deal, state: State{Phase: PhasePending}}

	// Exclusion check happens before anything that could spend budget. The
	// EXCLUSION_SKIP must stay the only event for an excluded deal, so no
	// PIPELINE_TERMINAL follows it.
	if reason, skip := r.exclusionReason(deal); skip {
		_ = r.events.Append(telemetry.EventExclusionSkip, deal, map[string]any{
			"reason":             reason,
			"api_calls_consumed": 0,
		})
		metrics.DealsProcessed.WithLabelValues(string(domain.StatusAlreadyProcessed)).Inc()
		return domain.Outcome{
			DealID:      deal.DealID,
			CompanyName: deal.CompanyName,
			Status:      domain.StatusAlreadyProcessed,
		}
	}
	run.state, _ = Next(run.state, SignalActive)

	for !run.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return r.cancel(run)
		}

		var err error
		switch run.state.Phase {
		case PhaseSearching:
			err = r.searchStep(ctx, run)
		case PhaseEvaluating:
			err = r.evaluateStep(ctx, run)
		case PhaseFetching:
			err = r.fetchStep(ctx, run)
		}
		if err != nil {
			// Only cancellation escapes the steps; everything else is
			// absorbed into signals.
			return r.cancel(run)
		}
	}

	return r.finish(run)
}

// cancel forces an in-flight deal to a terminal state when the run-level
// context expires or budget denial aborts its search.
func (r *Runner) cancel(run *dealRun) domain.Outcome {
	sig := SignalSearchExhausted
	if run.accepted != nil {
		sig = SignalFetchFailed
	}
	switch run.state.Phase {
	case PhaseFetching:
		sig = SignalFetchFailed
	case PhaseEvaluating:
		sig = SignalSkipVerdict
	}
	if next, err := Next(run.state, sig); err == nil {
		run.state = next
	}
	return r.finish(run)
}

// finish writes the terminal event exactly once and builds the Outcome.
func (r *Runner) finish(run *dealRun) domain.Outcome {
	status := run.state.Status
	if status == "" {
		// Should be unreachable; a deal without a terminal status is a
		// bookkeeping bug, surfaced as NOT_FOUND rather than dropped.
		r.log.Error("deal finished without terminal status", "deal", run.deal.DealID)
		status = domain.StatusNotFound
	}

	outcome := domain.Outcome{
		DealID:      run.deal.DealID,
		CompanyName: run.deal.CompanyName,
		Status:      status,
		APICalls:    run.apiCalls,
		LLMCalls:    run.llmCalls,
	}
	if status == domain.StatusDownloaded {
		outcome.DownloadedFile = run.fetched.LocalPath
	}

	_ = r.events.Append(telemetry.EventPipelineTerminal, run.deal, map[string]any{
		"pipeline_status":           string(status),
		"total_api_calls_this_deal": run.apiCalls,
		"total_llm_calls_this_deal": run.llmCalls,
		"downloaded_file":           outcome.DownloadedFile,
	})
	metrics.DealsProcessed.WithLabelValues(string(status)).Inc()
	return outcome
}

// searchStep runs strategies in priority order starting where the last
// attempt left off.
func (r *Runner) searchStep(ctx context.Context, run *dealRun) error {
	for run.attempts < r.cfg.MaxSearchAttempts && run.nextStrat < len(r.strategies) {
		if err := ctx.Err(); err != nil {
			return err
		}

		strat := r.strategies[run.nextStrat]
		run.nextStrat++
		run.attempts++

		cands, used, err := strat.Search(ctx, run.deal, r.cfg.AttemptBudget)
		run.apiCalls += used

		_ = r.events.Append(telemetry.EventScoutQuery, run.deal, map[string]any{
			"source":                        strat.Name(),
			"results_count":                 len(cands),
			"api_calls_consumed_this_query": used,
		})

		switch {
		case err == nil, errors.Is(err, domain.ErrStrategyExhausted):
			// Exhaustion is a cue to fall through, not a failure; any
			// partial candidates still count.
		case errors.Is(err, domain.ErrBudgetExhausted):
			// Daily quota gone: this deal ends on whatever it has.
			r.log.Warn("budget exhausted mid-search", "deal", run.deal.DealID)
			if len(run.candidates) == 0 && len(cands) == 0 {
				r.searchFailed(run)
				return nil
			}
		default:
			r.log.Warn("strategy failed", "deal", run.deal.DealID,
				"strategy", strat.Name(), "error", err)
			continue
		}

		run.candidates = append(run.candidates, cands...)
		if len(run.candidates) > 0 && !r.cfg.GatherAll {
			break
		}
	}

	if len(run.candidates) == 0 {
		r.searchFailed(run)
		return nil
	}
	run.state = mustNext(run.state, SignalCandidates)
	return nil
}

// searchFailed ends a deal whose search produced nothing. A deal that
// already holds a DOWNLOAD verdict got here by resorting after a dead
// locator, so it fails as FETCH_FAILED rather than NOT_FOUND.
func (r *Runner) searchFailed(run *dealRun) {
	if run.accepted != nil {
		run.state = mustNext(run.state, SignalFetchFailed)
		return
	}
	run.state = mustNext(run.state, SignalSearchExhausted)
}

// evaluateStep asks the gatekeeper about candidates until one is approved,
// the candidates run out, or the per-deal evaluator call cap is reached.
// Once a deal holds a DOWNLOAD verdict no further evaluator calls are ever
// issued for it, even after a cross-strategy resort.
func (r *Runner) evaluateStep(ctx context.Context, run *dealRun) error {
	if run.accepted != nil {
		// The verdict already exists; fresh candidates are alternate
		// locators for the approved document, so no evaluator call is
		// issued for them.
		if len(run.candidates) > 0 {
			run.accepted = &run.candidates[0]
		}
		run.state = mustNext(run.state, SignalDownloadVerdict)
		return nil
	}

	for i := range run.candidates {
		if run.llmCalls >= r.gate.MaxCalls() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		cand := run.candidates[i]
		verdict, err := r.gate.Evaluate(ctx, cand)
		if err != nil {
			return err // context cancellation only
		}
		run.llmCalls++

		eventType := telemetry.EventGatekeeperDecision
		if verdict.Err != "" {
			eventType = telemetry.EventValidationFailure
		}
		_ = r.events.Append(eventType, run.deal, map[string]any{
			"docket_title":            cand.Title,
			"attachment_descriptions": cand.AttachmentDescriptions,
			"llm_model":               verdict.Model,
			"llm_verdict":             string(verdict.Decision),
			"llm_score":               verdict.Score,
			"llm_reasoning":           verdict.Reasoning,
			"llm_tokens_used":         verdict.TokensUsed,
		})

		if verdict.Decision == domain.DecisionDownload {
			run.accepted = &run.candidates[i]
			run.state = mustNext(run.state, SignalDownloadVerdict)
			return nil
		}
	}

	run.state = mustNext(run.state, SignalSkipVerdict)
	return nil
}

// fetchStep hands the approved candidate to the fetch coordinator. When
// the cascade fails terminally and untried strategies remain, the deal
// resorts to search once before FETCH_FAILED.
func (r *Runner) fetchStep(ctx context.Context, run *dealRun) error {
	cand := run.accepted
	result, err := r.fetcher.Fetch(ctx, *cand)

	_ = r.events.Append(telemetry.EventFetchResult, run.deal, map[string]any{
		"success":         result.Success,
		"local_file_path": result.LocalPath,
		"file_size_bytes": result.SizeBytes,
		"fetch_method":    result.Method,
		"bot_bypass_used": result.BypassUsed,
		"failure_reason":  result.FailureReason,
	})

	if err == nil && result.Success {
		run.fetched = result
		run.state = mustNext(run.state, SignalFetchSuccess)
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	// Cross-strategy resort: one trip back to search if strategies remain.
	if !run.resorted && run.nextStrat < len(r.strategies) && run.attempts < r.cfg.MaxSearchAttempts {
		run.resorted = true
		run.candidates = nil
		_ = r.events.Append(telemetry.EventFallbackTriggered, run.deal, map[string]any{
			"from_transport": result.Method,
			"to_strategy":    r.strategies[run.nextStrat].Name(),
		})
		run.state = mustNext(run.state, SignalResumeSearch)
		return nil
	}

	run.state = mustNext(run.state, SignalFetchFailed)
	return nil
}

// mustNext applies a transition the runner knows is legal. An illegal one
// is a programming error in the step logic, not a runtime condition.
func mustNext(s State, sig Signal) State {
	next, err := Next(s, sig)
	if err != nil {
		panic(err)
	}
	return next
}
