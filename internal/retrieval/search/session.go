package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/vietddude/docketbench/internal/core/domain"
)

// PortalEntry is one docket row scraped from a claims-agent portal.
type PortalEntry struct {
	EntryID     string
	Title       string
	FilingDate  string
	Attachments []string
	PDFURL      string
}

// PortalDriver is the browser-automation collaborator. Implementations own
// the browser session, fingerprinting and challenge handling; this core
// only sees scraped metadata and byte counts.
type PortalDriver interface {
	// SearchCases scrapes the portal's case search for a company.
	SearchCases(ctx context.Context, portalURL, companyName string) ([]PortalEntry, error)

	// Download retrieves a document into destPath and returns its size.
	// bypassUsed reports whether a challenge had to be cleared on the way.
	Download(ctx context.Context, url, destPath string) (size int64, bypassUsed bool, err error)

	// Reset discards the current session after a health failure.
	Reset(ctx context.Context) error
}

// Claims-agent portals keyed by agent name.
var claimsAgentPortals = map[string]string{
	"Kroll":       "https://www.kroll.com/en/services/restructuring/cases",
	"Stretto":     "https://cases.stretto.com",
	"Epiq":        "https://dm.epiq11.com",
	"Prime Clerk": "https://cases.primeclerk.com",
}

var claimsAgentSources = map[string]domain.Source{
	"Kroll":   domain.SourceKroll,
	"Stretto": domain.SourceStretto,
	"Epiq":    domain.SourceEpiq,
}

// SessionManager serializes portal access per origin. Browser fingerprints
// churn when a site sees overlapping sessions, so at most one live session
// exists per origin while independent origins proceed in parallel.
type SessionManager struct {
	driver PortalDriver

	mu      sync.Mutex
	origins map[string]*sync.Mutex
}

// NewSessionManager wraps a driver with per-origin serialization.
func NewSessionManager(driver PortalDriver) *SessionManager {
	return &SessionManager{
		driver:  driver,
		origins: make(map[string]*sync.Mutex),
	}
}

func (m *SessionManager) originLock(origin string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.origins[origin]
	if !ok {
		lock = &sync.Mutex{}
		m.origins[origin] = lock
	}
	return lock
}

// Do runs fn with exclusive access to the origin's session. The context is
// checked before taking the lock so cancelled deals do not queue.
func (m *SessionManager) Do(ctx context.Context, origin string, fn func(PortalDriver) error) error {
	if m.driver == nil {
		return fmt.Errorf("%w: no portal driver configured", domain.ErrSourceUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := m.originLock(origin)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(m.driver)
}
