// Package gatekeeper evaluates candidate documents before download.
//
// The gatekeeper never sees document bytes. It sends candidate metadata
// (title, filing date, attachment descriptions) to a language model at
// temperature zero and turns the response into a schema-validated Verdict.
package gatekeeper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/metrics"
)

const systemPrompt = `You are a financial document classifier specialising in Chapter 11 bankruptcy cases.
Your job is to decide whether a docket entry likely contains substantive capital
structure or debt financing information.

Documents that QUALIFY (score 0.70-1.0, verdict DOWNLOAD):
- First Day Declarations or Declarations in Support of First Day Motions
- DIP (Debtor-in-Possession) financing motions
- Cash collateral motions with capital structure narrative
- Motions explicitly referencing prepetition debt, credit agreements, or loan facilities
- Documents titled "Declaration of [Name] in Support of..." related to financing

Documents that DO NOT QUALIFY (score 0.0-0.50, verdict SKIP):
- Fee applications, retention applications, professional fee statements
- Service affidavits, proof of service, certificates of service
- Scheduling orders, case management orders, procedural motions
- Schedules of assets and liabilities without narrative debt description
- Sale motions without explicit capital structure context
- Any document from a company with no plausible Chapter 11 filing

CRITICAL RULES:
1. Base your decision ONLY on the docket title and attachment descriptions provided.
2. You have NOT read the PDF. Do not invent or assume PDF content.
3. Respond with valid JSON only. No preamble. No explanation outside the JSON.
4. Your reasoning must be one sentence and must NOT reference any PDF content.`

const userPromptTemplate = `Evaluate this docket entry:

Filing date: %s
Docket title: %s
Attachment descriptions: %s

Respond with this exact JSON structure:
{
  "score": <float 0.0 to 1.0>,
  "verdict": "<DOWNLOAD or SKIP>",
  "reasoning": "<one sentence, max 200 characters, based only on title and descriptions>"
}`

const maxReasoningChars = 200

// Model is the LLM collaborator. Complete must be deterministic for a given
// prompt (temperature zero) and bounded in output size.
type Model interface {
	Name() string
	Complete(ctx context.Context, system, user string) (content string, tokens int, err error)
}

// Config holds gatekeeper decision settings.
type Config struct {
	ScoreThreshold float64 `yaml:"score_threshold"` // DOWNLOAD iff score >= threshold
	MaxCallsNumber int     `yaml:"max_calls_per_deal"`
}

// DefaultConfig returns the decision defaults.
func DefaultConfig() Config {
	return Config{ScoreThreshold: 0.70, MaxCallsNumber: 3}
}

// Client drives gatekeeper evaluations against a Model.
type Client struct {
	model Model
	cfg   Config
	log   *slog.Logger
}

// New creates a gatekeeper client.
func New(model Model, cfg Config) *Client {
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = 0.70
	}
	if cfg.MaxCallsNumber == 0 {
		cfg.MaxCallsNumber = 3
	}
	return &Client{
		model: model,
		cfg:   cfg,
		log:   slog.Default().With("component", "gatekeeper"),
	}
}

// MaxCalls returns the per-deal evaluator call cap.
func (c *Client) MaxCalls() int { return c.cfg.MaxCallsNumber }

type rawVerdict struct {
	Score     float64 `json:"score"`
	Verdict   string  `json:"verdict"`
	Reasoning string  `json:"reasoning"`
}

// Evaluate scores one candidate. A response that fails schema validation is
// retried once; a second failure degrades to a synthetic SKIP verdict so
// the pipeline always gets a usable answer. The returned error is non-nil
// only for context cancellation.
func (c *Client) Evaluate(ctx context.Context, cand domain.Candidate) (domain.Verdict, error) {
	user := fmt.Sprintf(userPromptTemplate,
		cand.FilingDate, cand.Title, strings.Join(cand.AttachmentDescriptions, "; "))

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Verdict{}, err
		}

		start := time.Now()
		content, tokens, err := c.model.Complete(ctx, systemPrompt, user)
		latency := time.Since(start).Milliseconds()
		metrics.LLMCallsTotal.Inc()

		if err != nil {
			lastErr = err
			c.log.Warn("model call failed", "deal", cand.DealID, "attempt", attempt+1, "error", err)
			continue
		}

		verdict, err := c.parse(content)
		if err != nil {
			lastErr = err
			metrics.ValidationFailures.WithLabelValues("gatekeeper").Inc()
			c.log.Warn("verdict failed validation", "deal", cand.DealID, "attempt", attempt+1, "error", err)
			continue
		}

		verdict.TokensUsed = tokens
		verdict.Model = c.model.Name()
		verdict.LatencyMs = latency
		return verdict, nil
	}

	// Degrade to a safe default rather than crashing the deal.
	reason := "gatekeeper degraded to SKIP"
	if lastErr != nil {
		reason = truncate("gatekeeper error: "+lastErr.Error(), maxReasoningChars)
	}
	return domain.Verdict{
		Decision:  domain.DecisionSkip,
		Score:     0,
		Reasoning: reason,
		Model:     c.model.Name(),
		Err:       reason,
	}, nil
}

// parse validates the model response against the verdict schema: score in
// [0,1], verdict in the two-value set, reasoning bounded.
func (c *Client) parse(content string) (domain.Verdict, error) {
	content = stripFences(content)

	var raw rawVerdict
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: not valid JSON: %v", domain.ErrValidation, err)
	}

	if raw.Score < 0 || raw.Score > 1 {
		return domain.Verdict{}, fmt.Errorf("%w: score %.2f outside [0,1]", domain.ErrValidation, raw.Score)
	}
	if raw.Verdict != string(domain.DecisionDownload) && raw.Verdict != string(domain.DecisionSkip) {
		return domain.Verdict{}, fmt.Errorf("%w: unknown verdict %q", domain.ErrValidation, raw.Verdict)
	}
	if len(raw.Reasoning) > maxReasoningChars {
		raw.Reasoning = truncate(raw.Reasoning, maxReasoningChars)
	}

	// The decision rule is ours, not the model's: DOWNLOAD iff the score
	// clears the threshold, whatever verdict string came back.
	decision := domain.DecisionSkip
	if raw.Score >= c.cfg.ScoreThreshold {
		decision = domain.DecisionDownload
	}

	return domain.Verdict{
		Decision:  decision,
		Score:     raw.Score,
		Reasoning: raw.Reasoning,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
