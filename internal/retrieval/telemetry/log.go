// Package telemetry writes the append-only execution log.
//
// Every decision point in a run becomes one JSON line in execution_log.jsonl.
// The pipeline only appends; the bench package only reads. Lines are synced
// to disk on every append and never rewritten.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
)

// Log is the append-only event writer for a single run.
type Log struct {
	mu    sync.Mutex
	file  *os.File
	runID string
	start time.Time

	dealStart map[string]time.Time

	now func() time.Time
}

// Open creates (or appends to) the execution log under dir.
func Open(dir, runID string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, "execution_log.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open execution log: %w", err)
	}

	return &Log{
		file:      f,
		runID:     runID,
		start:     time.Now(),
		dealStart: make(map[string]time.Time),
		now:       time.Now,
	}, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.file.Name()
}

// StartDeal registers the admission time of a deal so later events carry
// elapsed seconds relative to it.
func (l *Log) StartDeal(dealID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dealStart[dealID] = l.now()
}

func (l *Log) elapsed(dealID string) float64 {
	start, ok := l.dealStart[dealID]
	if !ok {
		start = l.start
	}
	return l.now().Sub(start).Seconds()
}

// Append writes one event as a JSON line and syncs it to disk before
// returning. The append is the unit of durability: once Append returns nil
// the line survives a crash.
func (l *Log) Append(typ EventType, deal domain.Deal, payload map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := map[string]any{
		"event_type":      typ,
		"run_id":          l.runID,
		"deal_id":         deal.DealID,
		"company_name":    deal.CompanyName,
		"timestamp_utc":   l.now().UTC().Format(time.RFC3339Nano),
		"elapsed_seconds": round4(l.elapsed(deal.DealID)),
	}
	for k, v := range payload {
		line[k] = v
	}

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	w := bufio.NewWriter(l.file)
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync event log: %w", err)
	}
	return nil
}

func round4(f float64) float64 {
	return float64(int64(f*10000+0.5)) / 10000
}

// ReadEvents parses an execution log back into raw event maps, in file
// order. Used by the bench replay and the report subcommand.
func ReadEvents(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open execution log: %w", err)
	}
	defer f.Close()

	var events []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parse event line: %w", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan execution log: %w", err)
	}
	return events, nil
}
