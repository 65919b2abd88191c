package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/metrics"
)

// Coordinator runs the transport fallback cascade: primary transport with
// retries, then the alternate transport, before giving up. Cross-strategy
// resort (re-searching with a different strategy) belongs to the pipeline,
// not here.
type Coordinator struct {
	primary   Transport
	alternate Transport // may be nil
	retryCfg  RetryConfig
	destDir   string
	log       *slog.Logger

	// onFallback is notified when the cascade moves past the primary
	// transport, so the event log records the hand-off.
	onFallback func(cand domain.Candidate, from, to string)
}

// NewCoordinator creates a fetch coordinator.
func NewCoordinator(primary, alternate Transport, retryCfg RetryConfig, destDir string) *Coordinator {
	if retryCfg.MaxAttempts == 0 {
		retryCfg = DefaultRetryConfig
	}
	return &Coordinator{
		primary:   primary,
		alternate: alternate,
		retryCfg:  retryCfg,
		destDir:   destDir,
		log:       slog.Default().With("component", "fetch"),
	}
}

// OnFallback registers a callback fired when the cascade switches
// transports.
func (c *Coordinator) OnFallback(fn func(cand domain.Candidate, from, to string)) {
	c.onFallback = fn
}

// Fetch retrieves the candidate's document. The returned FetchResult is
// always populated; the error mirrors the final failure cause for callers
// that classify it.
func (c *Coordinator) Fetch(ctx context.Context, cand domain.Candidate) (domain.FetchResult, error) {
	result, err := c.fetchWithRetry(ctx, c.primary, cand)
	if err == nil {
		metrics.FetchBytes.WithLabelValues(result.Method).Add(float64(result.SizeBytes))
		return result, nil
	}

	metrics.FetchFailures.WithLabelValues(c.primary.Name()).Inc()

	if ClassifyError(err) == ActionFatal || c.alternate == nil {
		return result, err
	}

	// Alternate transport only makes sense for origins it can reach: the
	// browser driver cannot improve on a dead courtlistener storage URL.
	if !c.alternateApplies(cand) {
		return result, err
	}

	c.log.Info("falling back to alternate transport",
		"deal", cand.DealID, "from", c.primary.Name(), "to", c.alternate.Name())
	if c.onFallback != nil {
		c.onFallback(cand, c.primary.Name(), c.alternate.Name())
	}

	altResult, altErr := c.fetchWithRetry(ctx, c.alternate, cand)
	if altErr == nil {
		metrics.FetchBytes.WithLabelValues(altResult.Method).Add(float64(altResult.SizeBytes))
		return altResult, nil
	}
	metrics.FetchFailures.WithLabelValues(c.alternate.Name()).Inc()
	return altResult, fmt.Errorf("fallback cascade exhausted: %w", altErr)
}

// alternateApplies reports whether the candidate's origin is one the
// evasion-capable transport can serve.
func (c *Coordinator) alternateApplies(cand domain.Candidate) bool {
	switch cand.Source {
	case domain.SourceKroll, domain.SourceStretto, domain.SourceEpiq:
		return true
	}
	return false
}

// fetchWithRetry executes one transport with exponential backoff on
// transient failures, in the manner of a retried RPC call: terminal errors
// short-circuit immediately.
func (c *Coordinator) fetchWithRetry(
	ctx context.Context,
	t Transport,
	cand domain.Candidate,
) (domain.FetchResult, error) {
	var lastResult domain.FetchResult
	var lastErr error

	for attempt := 0; attempt < c.retryCfg.MaxAttempts; attempt++ {
		result, err := t.Fetch(ctx, cand, c.destDir)
		if err == nil {
			return result, nil
		}

		lastResult = result
		lastErr = err

		action := ClassifyError(err)
		if action == ActionFatal || action == ActionFallback {
			return lastResult, err
		}

		// ActionRetry: continue loop
		if attempt == c.retryCfg.MaxAttempts-1 {
			break
		}

		delay := calculateBackoff(attempt, c.retryCfg)
		c.log.Debug("retrying fetch", "deal", cand.DealID, "transport", t.Name(),
			"attempt", attempt+1, "delay", delay)
		select {
		case <-ctx.Done():
			return lastResult, ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastResult, fmt.Errorf("failed after %d attempts: %w", c.retryCfg.MaxAttempts, lastErr)
}
