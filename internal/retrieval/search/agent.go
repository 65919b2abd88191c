package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/metrics"
)

// Agent tool calls are hard-capped regardless of remaining attempt budget.
const maxAgentToolCalls = 3

// AgentOutput is what the tool-using agent reports back after a search.
type AgentOutput struct {
	Candidates    []domain.Candidate
	ToolCallsMade int
	Reasoning     string
}

// Agent is the agentic collaborator: an LLM with search tools. It receives
// a tool-call allowance, never the ledger.
type Agent interface {
	Propose(ctx context.Context, deal domain.Deal, maxToolCalls int) (AgentOutput, error)
}

// AgentStrategy delegates searching to a tool-using agent and validates
// everything it claims before trusting it. Most expensive variant, runs
// last in the cascade.
type AgentStrategy struct {
	agent  Agent
	budget Budget
	refund Refund
	log    *slog.Logger
}

// NewAgentStrategy creates the agentic strategy.
func NewAgentStrategy(agent Agent, budget Budget, refund Refund) *AgentStrategy {
	return &AgentStrategy{
		agent:  agent,
		budget: budget,
		refund: refund,
		log:    slog.Default().With("strategy", "agent"),
	}
}

func (s *AgentStrategy) Name() string { return "agent" }

func (s *AgentStrategy) Origin(domain.Deal) string { return "" }

// Search reserves the agent's full tool-call allowance up front, lets it
// run, then refunds whatever it did not use. Output is schema-checked: a
// tool-call count over the allowance or a candidate with a fabricated
// locator invalidates the whole response.
func (s *AgentStrategy) Search(
	ctx context.Context,
	deal domain.Deal,
	attemptBudget int,
) ([]domain.Candidate, int, error) {
	if s.agent == nil {
		return nil, 0, nil
	}

	allowance := maxAgentToolCalls
	if attemptBudget < allowance {
		allowance = attemptBudget
	}
	if allowance < 1 {
		return nil, 0, domain.ErrStrategyExhausted
	}

	if err := s.budget(ctx, allowance); err != nil {
		return nil, 0, err
	}

	out, err := s.agent.Propose(ctx, deal, allowance)
	if err != nil {
		s.refund(allowance)
		s.log.Warn("agent search failed", "deal", deal.DealID, "error", err)
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	if err := s.validateOutput(out, allowance); err != nil {
		// Reported tool-call count is untrusted here, so nothing is refunded.
		metrics.ValidationFailures.WithLabelValues("agent").Inc()
		s.log.Warn("agent output rejected", "deal", deal.DealID, "error", err)
		return nil, allowance, err
	}
	s.refund(allowance - out.ToolCallsMade)
	metrics.APICallsTotal.WithLabelValues("agent").Add(float64(out.ToolCallsMade))

	valid, dropped := filterValid(out.Candidates)
	if dropped > 0 {
		metrics.ValidationFailures.WithLabelValues("agent").Add(float64(dropped))
		s.log.Warn("dropped agent candidates with invalid locators", "deal", deal.DealID, "count", dropped)
	}
	return valid, out.ToolCallsMade, nil
}

func (s *AgentStrategy) validateOutput(out AgentOutput, allowance int) error {
	if out.ToolCallsMade < 0 || out.ToolCallsMade > allowance {
		return fmt.Errorf("%w: agent reported %d tool calls, allowance %d",
			domain.ErrValidation, out.ToolCallsMade, allowance)
	}
	if len(out.Reasoning) > 500 {
		return fmt.Errorf("%w: agent reasoning exceeds 500 chars", domain.ErrValidation)
	}
	return nil
}
