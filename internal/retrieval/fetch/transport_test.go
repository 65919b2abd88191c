package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
)

func pdfServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPTransport_DownloadsToDealDir(t *testing.T) {
	body := bytes.Repeat([]byte("%PDF"), 512)
	srv := pdfServer(t, body)
	destDir := t.TempDir()

	tr := NewHTTPTransport(Limits{MaxBytes: 1 << 20, Timeout: 5 * time.Second})
	result, err := tr.Fetch(context.Background(), domain.Candidate{
		DealID:  "acme-2023",
		EntryID: "17",
		PDFURL:  srv.URL + "/doc.pdf",
	}, destDir)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !result.Success {
		t.Error("Expected successful fetch")
	}
	if result.SizeBytes != int64(len(body)) {
		t.Errorf("Expected %d bytes written, got %d", len(body), result.SizeBytes)
	}

	wantPath := filepath.Join(destDir, "acme-2023", "17.pdf")
	if result.LocalPath != wantPath {
		t.Errorf("Expected file at %s, got %s", wantPath, result.LocalPath)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("Reading downloaded file: %v", err)
	}
	if !bytes.Equal(data, body) {
		t.Error("Downloaded bytes differ from served bytes")
	}
}

func TestHTTPTransport_HeadProbeRefusesOversize(t *testing.T) {
	var gotGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gotGet = true
		}
		w.Header().Set("Content-Length", "999999999")
	}))
	defer srv.Close()

	tr := NewHTTPTransport(Limits{MaxBytes: 1024, Timeout: 5 * time.Second})
	result, err := tr.Fetch(context.Background(), domain.Candidate{DealID: "d", PDFURL: srv.URL}, t.TempDir())
	if !errors.Is(err, domain.ErrFetchTerminal) {
		t.Errorf("Expected terminal error for oversized file, got %v", err)
	}
	if result.FailureReason == "" {
		t.Error("Expected failure reason on the result")
	}
	if gotGet {
		t.Error("Oversized file must be refused at the HEAD probe, before any GET")
	}
}

func TestHTTPTransport_OversizeBodyRemovesPartialFile(t *testing.T) {
	// No Content-Length on the GET, so only the streaming counter can
	// catch the overrun.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return
		}
		flusher := w.(http.Flusher)
		chunk := bytes.Repeat([]byte("x"), 512)
		for i := 0; i < 8; i++ {
			w.Write(chunk)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	destDir := t.TempDir()
	tr := NewHTTPTransport(Limits{MaxBytes: 1024, Timeout: 5 * time.Second})
	_, err := tr.Fetch(context.Background(), domain.Candidate{DealID: "d", EntryID: "1", PDFURL: srv.URL}, destDir)
	if !errors.Is(err, domain.ErrFetchTerminal) {
		t.Errorf("Expected terminal error for oversized stream, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(destDir, "d", "1.pdf")); !os.IsNotExist(statErr) {
		t.Error("Expected partial download removed")
	}
}

func TestHTTPTransport_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrFetchTerminal},
		{http.StatusGone, domain.ErrFetchTerminal},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadGateway, domain.ErrFetchTransient},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("HTTP %d", tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodHead {
					return
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			tr := NewHTTPTransport(Limits{MaxBytes: 1024, Timeout: 5 * time.Second})
			_, err := tr.Fetch(context.Background(), domain.Candidate{DealID: "d", PDFURL: srv.URL}, t.TempDir())
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v for HTTP %d, got %v", tt.want, tt.status, err)
			}
		})
	}
}

func TestDestFile_NamesByEntryID(t *testing.T) {
	dir := t.TempDir()

	path, err := destFile(dir, domain.Candidate{DealID: "acme", EntryID: "42"})
	if err != nil {
		t.Fatalf("destFile failed: %v", err)
	}
	if path != filepath.Join(dir, "acme", "42.pdf") {
		t.Errorf("Unexpected path %s", path)
	}

	path, err = destFile(dir, domain.Candidate{DealID: "acme"})
	if err != nil {
		t.Fatalf("destFile failed: %v", err)
	}
	if filepath.Base(path) != "doc.pdf" {
		t.Errorf("Expected fallback name doc.pdf, got %s", filepath.Base(path))
	}
}
