package search

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/metrics"
)

// PortalStrategy searches a deal's claims-agent portal through the browser
// driver. Slower and flakier than the API, so it runs after it in the
// cascade, and only for deals that actually name a claims agent.
type PortalStrategy struct {
	sessions *SessionManager
	budget   Budget
	log      *slog.Logger
}

// NewPortalStrategy creates the browser-driven strategy.
func NewPortalStrategy(sessions *SessionManager, budget Budget) *PortalStrategy {
	return &PortalStrategy{
		sessions: sessions,
		budget:   budget,
		log:      slog.Default().With("strategy", "portal"),
	}
}

func (s *PortalStrategy) Name() string { return "portal" }

// Origin returns the portal host for the deal's claims agent, so deals
// against the same portal serialize.
func (s *PortalStrategy) Origin(deal domain.Deal) string {
	portalURL, ok := claimsAgentPortals[deal.ClaimsAgent]
	if !ok {
		return ""
	}
	u, err := url.Parse(portalURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Search scrapes the claims-agent portal. One budget unit covers the whole
// scrape session: the portal is one external visit regardless of how many
// rows come back.
func (s *PortalStrategy) Search(
	ctx context.Context,
	deal domain.Deal,
	attemptBudget int,
) ([]domain.Candidate, int, error) {
	portalURL, ok := claimsAgentPortals[deal.ClaimsAgent]
	if !ok {
		return nil, 0, nil // no claims agent, nothing to search
	}
	if attemptBudget < 1 {
		return nil, 0, domain.ErrStrategyExhausted
	}

	if err := s.budget(ctx, 1); err != nil {
		return nil, 0, err
	}
	source, ok := claimsAgentSources[deal.ClaimsAgent]
	if !ok {
		source = domain.SourceKroll
	}
	metrics.APICallsTotal.WithLabelValues(string(source)).Inc()

	var entries []PortalEntry
	err := s.sessions.Do(ctx, s.Origin(deal), func(d PortalDriver) error {
		var searchErr error
		entries, searchErr = d.SearchCases(ctx, portalURL, deal.CompanyName)
		return searchErr
	})
	if err != nil {
		s.log.Warn("portal search failed", "deal", deal.DealID, "agent", deal.ClaimsAgent, "error", err)
		return nil, 1, err
	}

	candidates := make([]domain.Candidate, 0, len(entries))
	for _, e := range entries {
		attachments := e.Attachments
		if len(attachments) > 5 {
			attachments = attachments[:5]
		}
		candidates = append(candidates, domain.Candidate{
			DealID:                 deal.DealID,
			Source:                 source,
			EntryID:                e.EntryID,
			Title:                  e.Title,
			FilingDate:             e.FilingDate,
			AttachmentDescriptions: attachments,
			PDFURL:                 e.PDFURL,
			APICallsConsumed:       1,
		})
	}

	valid, dropped := filterValid(candidates)
	if dropped > 0 {
		metrics.ValidationFailures.WithLabelValues("portal").Add(float64(dropped))
		s.log.Warn("dropped candidates with invalid locators", "deal", deal.DealID, "count", dropped)
	}
	return valid, 1, nil
}
