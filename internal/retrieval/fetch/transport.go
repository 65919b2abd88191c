// Package fetch retrieves approved documents under size and time limits.
//
// This package contains:
//   - Transport: interface over document retrieval mechanisms
//   - HTTPTransport: plain streaming download
//   - BrowserTransport: evasion-capable download via the portal driver
//   - Coordinator: retry/backoff plus the transport fallback cascade
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/search"
)

// Transport retrieves one document to local disk. Implementations stream
// payload bytes straight to the destination file; nothing upstream ever
// holds document bytes in memory.
type Transport interface {
	Name() string
	Fetch(ctx context.Context, cand domain.Candidate, destDir string) (domain.FetchResult, error)
}

// Limits bound every fetch regardless of transport.
type Limits struct {
	MaxBytes int64         `yaml:"max_bytes"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultLimits matches the 50 MB / 60s bounds the pipeline runs with.
var DefaultLimits = Limits{
	MaxBytes: 52_428_800,
	Timeout:  60 * time.Second,
}

// HTTPTransport downloads over plain HTTP with streaming size enforcement.
type HTTPTransport struct {
	limits     Limits
	httpClient *http.Client
}

// NewHTTPTransport creates the plain HTTP transport.
func NewHTTPTransport(limits Limits) *HTTPTransport {
	if limits.MaxBytes == 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	if limits.Timeout == 0 {
		limits.Timeout = DefaultLimits.Timeout
	}
	return &HTTPTransport{
		limits: limits,
		httpClient: &http.Client{
			// No client-level timeout: the per-fetch context carries the
			// wall-clock limit so streaming large files is not cut short
			// by a fixed round-trip budget.
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (t *HTTPTransport) Name() string { return "http" }

// Fetch streams the document to destDir. Size is checked three times: the
// HEAD probe, the GET's Content-Length, and the running byte count while
// streaming. Exceeding the ceiling fails the fetch and removes the partial
// file; there is never a truncated artifact.
func (t *HTTPTransport) Fetch(
	ctx context.Context,
	cand domain.Candidate,
	destDir string,
) (domain.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.limits.Timeout)
	defer cancel()

	fail := func(size int64, reason string) domain.FetchResult {
		return domain.FetchResult{Success: false, SizeBytes: size, Method: t.Name(), FailureReason: reason}
	}

	// HEAD probe so oversized files are refused before any byte moves.
	if size, ok := t.probeSize(ctx, cand.PDFURL); ok && size > t.limits.MaxBytes {
		reason := fmt.Sprintf("file too large (%d bytes > %d bytes)", size, t.limits.MaxBytes)
		return fail(size, reason), fmt.Errorf("%w: %s", domain.ErrFetchTerminal, reason)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cand.PDFURL, nil)
	if err != nil {
		return fail(0, err.Error()), fmt.Errorf("%w: %v", domain.ErrFetchTerminal, err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		reason := err.Error()
		if ctx.Err() != nil {
			reason = "fetch timeout"
		}
		return fail(0, reason), fmt.Errorf("%w: %v", domain.ErrFetchTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		reason := fmt.Sprintf("HTTP %d", resp.StatusCode)
		return fail(0, reason), fmt.Errorf("%w: %s", domain.ErrFetchTerminal, reason)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fail(0, "HTTP 429"), fmt.Errorf("%w: HTTP 429", domain.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		reason := fmt.Sprintf("HTTP %d", resp.StatusCode)
		return fail(0, reason), fmt.Errorf("%w: %s", domain.ErrFetchTransient, reason)
	}

	if resp.ContentLength > t.limits.MaxBytes {
		reason := fmt.Sprintf("file too large (%d bytes > %d bytes)", resp.ContentLength, t.limits.MaxBytes)
		return fail(resp.ContentLength, reason), fmt.Errorf("%w: %s", domain.ErrFetchTerminal, reason)
	}

	destPath, err := destFile(destDir, cand)
	if err != nil {
		return fail(0, err.Error()), fmt.Errorf("%w: %v", domain.ErrFetchTerminal, err)
	}

	written, err := streamToFile(resp.Body, destPath, t.limits.MaxBytes)
	if err != nil {
		os.Remove(destPath)
		reason := err.Error()
		if ctx.Err() != nil {
			return fail(written, "fetch timeout"), fmt.Errorf("%w: timeout", domain.ErrFetchTransient)
		}
		return fail(written, reason), fmt.Errorf("%w: %v", domain.ErrFetchTerminal, err)
	}

	return domain.FetchResult{
		Success:   true,
		LocalPath: destPath,
		SizeBytes: written,
		Method:    t.Name(),
	}, nil
}

func (t *HTTPTransport) probeSize(ctx context.Context, url string) (int64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	if resp.ContentLength <= 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

func destFile(destDir string, cand domain.Candidate) (string, error) {
	dir := filepath.Join(destDir, cand.DealID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	name := cand.EntryID
	if name == "" {
		name = "doc"
	}
	if !strings.HasSuffix(name, ".pdf") {
		name += ".pdf"
	}
	return filepath.Join(dir, name), nil
}

func streamToFile(r io.Reader, path string, maxBytes int64) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	// Copy one byte past the ceiling so an oversized body is detected
	// instead of silently truncated.
	written, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	if err != nil {
		return written, fmt.Errorf("stream download: %w", err)
	}
	if written > maxBytes {
		return written, fmt.Errorf("file too large (>%d bytes)", maxBytes)
	}
	return written, nil
}

// BrowserTransport downloads through the portal driver, which carries the
// session, fingerprint and challenge handling the plain transport lacks.
type BrowserTransport struct {
	sessions *search.SessionManager
	limits   Limits
}

// NewBrowserTransport creates the evasion-capable transport.
func NewBrowserTransport(sessions *search.SessionManager, limits Limits) *BrowserTransport {
	if limits.MaxBytes == 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	if limits.Timeout == 0 {
		limits.Timeout = DefaultLimits.Timeout
	}
	return &BrowserTransport{sessions: sessions, limits: limits}
}

func (t *BrowserTransport) Name() string { return "browser" }

// Fetch downloads via the browser session for the candidate's origin.
func (t *BrowserTransport) Fetch(
	ctx context.Context,
	cand domain.Candidate,
	destDir string,
) (domain.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.limits.Timeout)
	defer cancel()

	destPath, err := destFile(destDir, cand)
	if err != nil {
		return domain.FetchResult{Success: false, Method: t.Name(), FailureReason: err.Error()},
			fmt.Errorf("%w: %v", domain.ErrFetchTerminal, err)
	}

	var size int64
	var bypass bool
	err = t.sessions.Do(ctx, string(cand.Source), func(d search.PortalDriver) error {
		var dlErr error
		size, bypass, dlErr = d.Download(ctx, cand.PDFURL, destPath)
		return dlErr
	})
	if err != nil {
		os.Remove(destPath)
		return domain.FetchResult{
			Success:       false,
			Method:        t.Name(),
			BypassUsed:    bypass,
			FailureReason: err.Error(),
		}, err
	}

	if size > t.limits.MaxBytes {
		os.Remove(destPath)
		reason := fmt.Sprintf("file too large (%d bytes > %d bytes)", size, t.limits.MaxBytes)
		return domain.FetchResult{
			Success: false, SizeBytes: size, Method: t.Name(), BypassUsed: bypass, FailureReason: reason,
		}, fmt.Errorf("%w: %s", domain.ErrFetchTerminal, reason)
	}

	return domain.FetchResult{
		Success:    true,
		LocalPath:  destPath,
		SizeBytes:  size,
		Method:     t.Name(),
		BypassUsed: bypass,
	}, nil
}
