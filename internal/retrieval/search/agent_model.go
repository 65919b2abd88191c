package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/gatekeeper"
)

const agentSystemPrompt = `You are a docket research agent locating financial disclosure documents
(monthly operating reports, schedules of assets and liabilities, statements
of financial affairs) for Chapter 11 bankruptcy cases.

You have ONE tool:
  search(query) — full-text search over federal bankruptcy docket entries.
    Returns docket entries with titles, attachment descriptions and PDF URLs.

Respond with EXACTLY one JSON object per turn, no prose:
  {"action": "search", "query": "<query string>"}
or, when done:
  {"action": "finish", "selected": [<entry indexes from results>], "reasoning": "<max 500 chars>"}

Select only entries whose documents plausibly contain financial data tables.
If nothing fits, finish with an empty selection.`

// SearchTool executes one agent-issued search query.
type SearchTool func(ctx context.Context, deal domain.Deal, query string) ([]domain.Candidate, error)

// ModelAgent is a tool-loop agent: the model issues search queries one at a
// time and finishes by selecting from the accumulated results. Each tool
// execution consumes one unit of its allowance.
type ModelAgent struct {
	model gatekeeper.Model
	tool  SearchTool
}

// NewModelAgent wires a chat model to a search tool.
func NewModelAgent(model gatekeeper.Model, tool SearchTool) *ModelAgent {
	return &ModelAgent{model: model, tool: tool}
}

type agentAction struct {
	Action    string `json:"action"`
	Query     string `json:"query"`
	Selected  []int  `json:"selected"`
	Reasoning string `json:"reasoning"`
}

// Propose runs the tool loop until the model finishes or the allowance is
// spent. A model turn that is not valid JSON ends the loop with whatever
// was gathered so far.
func (a *ModelAgent) Propose(ctx context.Context, deal domain.Deal, maxToolCalls int) (AgentOutput, error) {
	var (
		gathered   []domain.Candidate
		transcript strings.Builder
		out        AgentOutput
	)

	fmt.Fprintf(&transcript, "Case: %s (filed %d, %s, docket %s)\n",
		deal.CompanyName, deal.FilingYear, deal.Court, deal.DocketNumber)

	// The model gets one extra turn beyond its allowance to finish.
	for turn := 0; turn < maxToolCalls+1; turn++ {
		content, _, err := a.model.Complete(ctx, agentSystemPrompt, transcript.String())
		if err != nil {
			return AgentOutput{}, fmt.Errorf("agent model call: %w", err)
		}

		var act agentAction
		if err := json.Unmarshal([]byte(extractJSON(content)), &act); err != nil {
			return a.finishAll(gathered, out, "agent response was not valid JSON"), nil
		}

		switch act.Action {
		case "search":
			if out.ToolCallsMade >= maxToolCalls {
				return a.finishAll(gathered, out, "tool-call allowance exhausted"), nil
			}
			out.ToolCallsMade++
			results, err := a.tool(ctx, deal, act.Query)
			if err != nil {
				fmt.Fprintf(&transcript, "\nsearch(%q) failed: %v\n", act.Query, err)
				continue
			}
			for _, c := range results {
				gathered = append(gathered, c)
				fmt.Fprintf(&transcript, "\n[%d] %s (filed %s) attachments: %s\n",
					len(gathered)-1, c.Title, c.FilingDate, strings.Join(c.AttachmentDescriptions, "; "))
			}
			if len(results) == 0 {
				fmt.Fprintf(&transcript, "\nsearch(%q): no results\n", act.Query)
			}

		case "finish":
			out.Reasoning = act.Reasoning
			for _, idx := range act.Selected {
				if idx >= 0 && idx < len(gathered) {
					out.Candidates = append(out.Candidates, gathered[idx])
				}
			}
			return out, nil

		default:
			return a.finishAll(gathered, out, "unrecognized agent action"), nil
		}
	}

	return a.finishAll(gathered, out, "agent turn limit reached"), nil
}

// finishAll returns everything gathered when the loop ends without an
// explicit selection; locator validation downstream prunes it.
func (a *ModelAgent) finishAll(gathered []domain.Candidate, out AgentOutput, reason string) AgentOutput {
	out.Candidates = gathered
	out.Reasoning = reason
	return out
}

// extractJSON trims code fences and surrounding prose down to the first
// top-level JSON object.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
