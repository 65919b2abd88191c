package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
)

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// HTTPPortalDriver drives claims-agent portals over their public search
// endpoints with a cookie-jar session per driver. Portals that demand full
// browser automation are out of its reach; a challenge page surfaces as
// ErrFetchTerminal so the caller can fall back.
type HTTPPortalDriver struct {
	client *http.Client
}

// NewHTTPPortalDriver creates a driver with a fresh session.
func NewHTTPPortalDriver(timeout time.Duration) (*HTTPPortalDriver, error) {
	d := &HTTPPortalDriver{}
	if err := d.newSession(timeout); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *HTTPPortalDriver) newSession(timeout time.Duration) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	d.client = &http.Client{Timeout: timeout, Jar: jar}
	return nil
}

// portalCase is the row shape shared by the portals' case-search endpoints.
type portalCase struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	DateFiled   string   `json:"date_filed"`
	Attachments []string `json:"attachments"`
	DocumentURL string   `json:"document_url"`
}

// SearchCases queries the portal's case search endpoint.
func (d *HTTPPortalDriver) SearchCases(ctx context.Context, portalURL, companyName string) ([]PortalEntry, error) {
	u, err := url.Parse(portalURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad portal url %q", domain.ErrBadLocator, portalURL)
	}
	q := u.Query()
	q.Set("q", companyName)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyPortalStatus(resp); err != nil {
		return nil, err
	}

	var cases []portalCase
	if err := json.NewDecoder(resp.Body).Decode(&cases); err != nil {
		return nil, fmt.Errorf("failed to decode portal response: %w", err)
	}

	entries := make([]PortalEntry, 0, len(cases))
	for _, c := range cases {
		entries = append(entries, PortalEntry{
			EntryID:     c.ID,
			Title:       c.Title,
			FilingDate:  c.DateFiled,
			Attachments: c.Attachments,
			PDFURL:      c.DocumentURL,
		})
	}
	return entries, nil
}

// Download streams a document to destPath.
func (d *HTTPPortalDriver) Download(ctx context.Context, rawURL, destPath string) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", domain.ErrFetchTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyPortalStatus(resp); err != nil {
		return 0, false, err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, false, err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return 0, false, err
	}
	size, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(destPath)
		return 0, false, fmt.Errorf("%w: %v", domain.ErrFetchTransient, err)
	}
	return size, false, nil
}

// Reset discards cookies and starts a fresh session.
func (d *HTTPPortalDriver) Reset(context.Context) error {
	return d.newSession(d.client.Timeout)
}

func classifyPortalStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: challenge page (status 403)", domain.ErrFetchTerminal)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", domain.ErrBadLocator, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	default:
		ct := resp.Header.Get("Content-Type")
		if strings.Contains(ct, "text/html") {
			return fmt.Errorf("%w: unexpected html response", domain.ErrFetchTerminal)
		}
		return fmt.Errorf("%w: status %d", domain.ErrFetchTransient, resp.StatusCode)
	}
}
