package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/metrics"
)

// Field-targeted queries for bankruptcy financing documents, ordered by
// specificity. Searching stops at the first query that yields a usable
// candidate.
var defaultFieldQueries = []string{
	`short_description:"first day"`,
	`short_description:"declaration in support" short_description:"chapter 11"`,
	`short_description:"DIP financing"`,
	`short_description:"debtor in possession financing"`,
	`short_description:"cash collateral motion"`,
}

// CourtListenerConfig holds settings for the direct API strategy.
type CourtListenerConfig struct {
	SearchURL    string        `yaml:"search_url"`
	APIToken     string        `yaml:"api_token"`
	Timeout      time.Duration `yaml:"timeout"`
	FieldQueries []string      `yaml:"field_queries"`
}

// CourtListenerStrategy searches the CourtListener V4 search API directly.
// Cheapest and most reliable, so it runs first in the cascade.
type CourtListenerStrategy struct {
	cfg        CourtListenerConfig
	budget     Budget
	httpClient *http.Client
	log        *slog.Logger
}

// NewCourtListenerStrategy creates the direct API strategy.
func NewCourtListenerStrategy(cfg CourtListenerConfig, budget Budget) *CourtListenerStrategy {
	if cfg.SearchURL == "" {
		cfg.SearchURL = "https://www.courtlistener.com/api/rest/v4/search/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.FieldQueries) == 0 {
		cfg.FieldQueries = defaultFieldQueries
	}
	return &CourtListenerStrategy{
		cfg:    cfg,
		budget: budget,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: slog.Default().With("strategy", "courtlistener"),
	}
}

func (s *CourtListenerStrategy) Name() string { return "courtlistener" }

// Origin is always the API host; the API tolerates concurrent callers so
// no per-origin serialization is needed.
func (s *CourtListenerStrategy) Origin(domain.Deal) string { return "" }

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID               json.Number `json:"id"`
	CaseName         string      `json:"caseName"`
	DateFiled        string      `json:"dateFiled"`
	ShortDescription string      `json:"short_description"`
	FilepathLocal    string      `json:"filepath_local"`
	IsAvailable      bool        `json:"is_available"`
}

// Search runs the field queries in order, one budget unit per query, and
// stops at the first query producing a usable candidate.
func (s *CourtListenerStrategy) Search(
	ctx context.Context,
	deal domain.Deal,
	attemptBudget int,
) ([]domain.Candidate, int, error) {
	var candidates []domain.Candidate
	used := 0

	for _, fq := range s.cfg.FieldQueries {
		if used >= attemptBudget {
			return candidates, used, domain.ErrStrategyExhausted
		}

		if err := s.budget(ctx, 1); err != nil {
			return candidates, used, err
		}
		used++
		metrics.APICallsTotal.WithLabelValues("courtlistener").Inc()

		resp, err := s.query(ctx, deal, fq)
		if err != nil {
			s.log.Warn("search query failed", "deal", deal.DealID, "query", fq, "error", err)
			continue
		}

		for _, r := range resp.Results {
			if !r.IsAvailable || r.FilepathLocal == "" {
				continue
			}

			title := r.ShortDescription
			if title == "" {
				title = r.CaseName
			}
			dateFiled := r.DateFiled
			if len(dateFiled) > 10 {
				dateFiled = dateFiled[:10]
			}

			candidates = append(candidates, domain.Candidate{
				DealID:                 deal.DealID,
				Source:                 domain.SourceCourtListener,
				EntryID:                r.ID.String(),
				Title:                  title,
				FilingDate:             dateFiled,
				AttachmentDescriptions: []string{},
				PDFURL:                 "https://storage.courtlistener.com/" + r.FilepathLocal,
				APICallsConsumed:       used,
			})
			break // one candidate per query is enough
		}

		if len(candidates) > 0 {
			break
		}
	}

	valid, dropped := filterValid(candidates)
	if dropped > 0 {
		metrics.ValidationFailures.WithLabelValues("courtlistener").Add(float64(dropped))
		s.log.Warn("dropped candidates with invalid locators", "deal", deal.DealID, "count", dropped)
	}
	return valid, used, nil
}

// RunQuery executes one ad-hoc query and returns every available result.
// This is the search tool handed to the agent. The caller already holds
// the budget reservation for it, so no units are taken here.
func (s *CourtListenerStrategy) RunQuery(ctx context.Context, deal domain.Deal, query string) ([]domain.Candidate, error) {
	metrics.APICallsTotal.WithLabelValues("courtlistener").Inc()

	resp, err := s.query(ctx, deal, query)
	if err != nil {
		return nil, err
	}

	var candidates []domain.Candidate
	for _, r := range resp.Results {
		if !r.IsAvailable || r.FilepathLocal == "" {
			continue
		}
		title := r.ShortDescription
		if title == "" {
			title = r.CaseName
		}
		dateFiled := r.DateFiled
		if len(dateFiled) > 10 {
			dateFiled = dateFiled[:10]
		}
		candidates = append(candidates, domain.Candidate{
			DealID:                 deal.DealID,
			Source:                 domain.SourceCourtListener,
			EntryID:                r.ID.String(),
			Title:                  title,
			FilingDate:             dateFiled,
			AttachmentDescriptions: []string{},
			PDFURL:                 "https://storage.courtlistener.com/" + r.FilepathLocal,
			APICallsConsumed:       1,
		})
	}
	valid, _ := filterValid(candidates)
	return valid, nil
}

func (s *CourtListenerStrategy) query(
	ctx context.Context,
	deal domain.Deal,
	fieldQuery string,
) (*searchResponse, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%q %s", deal.CompanyName, fieldQuery))
	params.Set("type", "r") // RECAP documents
	params.Set("available_only", "on")
	params.Set("order_by", "score desc")
	params.Set("filed_after", strconv.Itoa(deal.FilingYear)+"-01-01")
	params.Set("filed_before", strconv.Itoa(deal.FilingYear)+"-12-31")
	if slug := CourtSlug(deal.Court); slug != "" {
		params.Set("court", slug)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.SearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Token "+s.cfg.APIToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return &sr, nil
}
