// Package search implements the document search strategies.
//
// This package contains:
//   - Strategy: the common interface the pipeline drives
//   - CourtListenerStrategy: direct REST API search
//   - PortalStrategy: browser-driven claims-agent portal search
//   - AgentStrategy: tool-using agent search
//   - candidate validation (locator whitelist, date format)
//
// Strategies never see the ledger. They receive a Budget callback that
// blocks at the rate gate and reserves exactly one unit per external call.
package search

import (
	"context"

	"github.com/vietddude/docketbench/internal/core/domain"
)

// Budget reserves n budget units for imminent external calls, blocking at
// the rate gate until a slot is free. Returns domain.ErrBudgetExhausted
// when the daily quota is spent.
type Budget func(ctx context.Context, n int) error

// Refund returns reserved units whose external call never happened.
type Refund func(n int)

// Strategy is one way of finding candidate documents for a deal.
type Strategy interface {
	// Name identifies the strategy in logs and events.
	Name() string

	// Origin returns the origin site a deal would be searched against,
	// or "" when the strategy cannot serve this deal. Deals sharing an
	// origin are serialized by the session layer.
	Origin(deal domain.Deal) string

	// Search returns candidates for the deal, consuming at most
	// attemptBudget budget units, and reports how many units it actually
	// spent. A strategy that runs out of attempt budget mid-search returns
	// what it has gathered alongside domain.ErrStrategyExhausted.
	// Candidates failing locator validation are dropped before return.
	Search(ctx context.Context, deal domain.Deal, attemptBudget int) ([]domain.Candidate, int, error)
}
