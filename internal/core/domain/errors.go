package domain

import "errors"

var (
	// ErrBudgetExhausted means the daily API call quota is spent. Fatal for
	// admitting new deals, not for deals already in flight.
	ErrBudgetExhausted = errors.New("daily API budget exhausted")

	// ErrRateLimited is a retryable upstream 429-class failure.
	ErrRateLimited = errors.New("rate limited")

	// ErrValidation means a collaborator returned a payload that failed
	// schema validation.
	ErrValidation = errors.New("validation failure")

	// ErrSourceUnavailable means a search backend could not be reached.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrStrategyExhausted means a strategy ran out of attempt budget and
	// returned whatever it had gathered. Cue to fall through to the next
	// strategy, never fatal.
	ErrStrategyExhausted = errors.New("strategy attempt budget exhausted")

	// ErrFetchTransient marks a fetch failure worth retrying with backoff.
	ErrFetchTransient = errors.New("transient fetch failure")

	// ErrFetchTerminal marks a fetch failure that no retry can fix.
	ErrFetchTerminal = errors.New("terminal fetch failure")

	// ErrBadLocator marks a candidate whose PDF URL failed the domain
	// whitelist. Such candidates are dropped, never propagated.
	ErrBadLocator = errors.New("locator failed domain whitelist")
)
