package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/docketbench/internal/core/domain"
)

func noBudget(ctx context.Context, n int) error { return nil }

func testDeal() domain.Deal {
	return domain.Deal{
		DealID:      "deal-cl",
		CompanyName: "Acme Retail Holdings",
		FilingYear:  2023,
		Court:       "S.D.N.Y.",
	}
}

func clServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch_BuildsCandidateFromFirstHit(t *testing.T) {
	var gotQuery, gotCourt string
	srv := clServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotCourt = r.URL.Query().Get("court")
		fmt.Fprint(w, `{"count": 1, "results": [{
			"id": 991234,
			"caseName": "In re Acme Retail Holdings",
			"dateFiled": "2023-05-14T00:00:00Z",
			"short_description": "Declaration in Support of First Day Motions",
			"filepath_local": "recap/gov.uscourts.nysb.991234.pdf",
			"is_available": true
		}]}`)
	})

	s := NewCourtListenerStrategy(CourtListenerConfig{
		SearchURL:    srv.URL,
		FieldQueries: []string{`short_description:"first day"`},
	}, noBudget)

	cands, used, err := s.Search(context.Background(), testDeal(), 6)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if used != 1 {
		t.Errorf("Expected 1 unit used, got %d", used)
	}
	if len(cands) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(cands))
	}

	c := cands[0]
	if c.Source != domain.SourceCourtListener {
		t.Errorf("Expected courtlistener source, got %s", c.Source)
	}
	if c.EntryID != "991234" {
		t.Errorf("Expected entry id 991234, got %s", c.EntryID)
	}
	if c.FilingDate != "2023-05-14" {
		t.Errorf("Expected date trimmed to 2023-05-14, got %s", c.FilingDate)
	}
	if c.PDFURL != "https://storage.courtlistener.com/recap/gov.uscourts.nysb.991234.pdf" {
		t.Errorf("Unexpected pdf url %s", c.PDFURL)
	}

	if gotQuery != `"Acme Retail Holdings" short_description:"first day"` {
		t.Errorf("Unexpected query %q", gotQuery)
	}
	if gotCourt != "nysd" {
		t.Errorf("Expected court slug nysd, got %q", gotCourt)
	}
}

func TestSearch_SkipsUnavailableResults(t *testing.T) {
	srv := clServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 2, "results": [
			{"id": 1, "caseName": "No file", "is_available": false},
			{"id": 2, "caseName": "No path", "is_available": true, "filepath_local": ""}
		]}`)
	})

	s := NewCourtListenerStrategy(CourtListenerConfig{
		SearchURL:    srv.URL,
		FieldQueries: []string{"a", "b"},
	}, noBudget)

	cands, used, err := s.Search(context.Background(), testDeal(), 6)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(cands) != 0 {
		t.Errorf("Expected no candidates from unavailable results, got %d", len(cands))
	}
	// Both field queries spent, neither produced a candidate.
	if used != 2 {
		t.Errorf("Expected 2 units used, got %d", used)
	}
}

func TestSearch_StopsAtAttemptBudget(t *testing.T) {
	calls := 0
	srv := clServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"count": 0, "results": []}`)
	})

	s := NewCourtListenerStrategy(CourtListenerConfig{
		SearchURL:    srv.URL,
		FieldQueries: []string{"a", "b", "c", "d", "e"},
	}, noBudget)

	_, used, err := s.Search(context.Background(), testDeal(), 2)
	if !errors.Is(err, domain.ErrStrategyExhausted) {
		t.Errorf("Expected ErrStrategyExhausted, got %v", err)
	}
	if used != 2 || calls != 2 {
		t.Errorf("Expected exactly 2 queries, used=%d calls=%d", used, calls)
	}
}

func TestSearch_BudgetDenialStopsImmediately(t *testing.T) {
	srv := clServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Server must not be reached when budget denies")
	})

	denied := func(ctx context.Context, n int) error {
		return domain.ErrBudgetExhausted
	}
	s := NewCourtListenerStrategy(CourtListenerConfig{
		SearchURL:    srv.URL,
		FieldQueries: []string{"a"},
	}, denied)

	_, used, err := s.Search(context.Background(), testDeal(), 6)
	if !errors.Is(err, domain.ErrBudgetExhausted) {
		t.Errorf("Expected ErrBudgetExhausted, got %v", err)
	}
	if used != 0 {
		t.Errorf("Denied reservation must not count as spend, used=%d", used)
	}
}

func TestSearch_RateLimitSurfacesButContinues(t *testing.T) {
	n := 0
	srv := clServer(t, func(w http.ResponseWriter, r *http.Request) {
		n++
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"count": 1, "results": [{
			"id": 7, "caseName": "Acme", "dateFiled": "2023-06-01",
			"filepath_local": "recap/x.pdf", "is_available": true
		}]}`)
	})

	s := NewCourtListenerStrategy(CourtListenerConfig{
		SearchURL:    srv.URL,
		FieldQueries: []string{"a", "b"},
	}, noBudget)

	cands, used, err := s.Search(context.Background(), testDeal(), 6)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(cands) != 1 {
		t.Errorf("Expected the second query to recover, got %d candidates", len(cands))
	}
	if used != 2 {
		t.Errorf("Expected 2 units used, got %d", used)
	}
}
