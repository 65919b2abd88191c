package bench

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/telemetry"
)

func outcome(dealID string, status domain.Status, apiCalls int) domain.Outcome {
	return domain.Outcome{
		RunID:       "run-1",
		DealID:      dealID,
		CompanyName: "Co " + dealID,
		Status:      status,
		APICalls:    apiCalls,
	}
}

func TestBuild_ComputesMatrixAndMetrics(t *testing.T) {
	truth := map[string]domain.GroundTruthEntry{
		"a": {HasFinancialData: true},
		"b": {HasFinancialData: true},
		"c": {HasFinancialData: false},
		"d": {HasFinancialData: false},
		"e": {HasFinancialData: true},
		"x": {HasFinancialData: true, AlreadyProcessed: true},
	}
	outcomes := []domain.Outcome{
		outcome("a", domain.StatusDownloaded, 4), // TP
		outcome("b", domain.StatusSkipped, 2),    // FN
		outcome("c", domain.StatusDownloaded, 3), // FP
		outcome("d", domain.StatusNotFound, 6),   // TN
		outcome("e", domain.StatusFetchFailed, 5),
		outcome("x", domain.StatusAlreadyProcessed, 0),
	}

	r, err := Build("run-1", outcomes, truth, 90*time.Second)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if r.TruePositives != 1 || r.FalsePositives != 1 || r.TrueNegatives != 1 || r.FalseNegatives != 2 {
		t.Errorf("Matrix TP=%d FP=%d TN=%d FN=%d, want 1/1/1/2",
			r.TruePositives, r.FalsePositives, r.TrueNegatives, r.FalseNegatives)
	}
	if r.DealsAlreadyProcessed != 1 {
		t.Errorf("Expected 1 excluded deal, got %d", r.DealsAlreadyProcessed)
	}
	if r.DealsActive != 5 {
		t.Errorf("Expected 5 active deals, got %d", r.DealsActive)
	}
	if r.Precision != 0.5 {
		t.Errorf("Expected precision 0.5, got %v", r.Precision)
	}
	// recall = 1/3
	if r.Recall != 0.3333 {
		t.Errorf("Expected recall 0.3333, got %v", r.Recall)
	}
	if r.TotalAPICalls != 20 {
		t.Errorf("Expected 20 api calls, got %d", r.TotalAPICalls)
	}
}

func TestBuild_F1ComputedFromUnroundedRatios(t *testing.T) {
	// TP=1 FP=6 FN=1: precision 1/7, recall 1/2, F1 = 2/9 = 0.2222.
	// Computing F1 from the pre-rounded precision (0.1429) would give
	// 0.2223 instead.
	truth := map[string]domain.GroundTruthEntry{
		"tp": {HasFinancialData: true},
		"fn": {HasFinancialData: true},
	}
	outcomes := []domain.Outcome{
		outcome("tp", domain.StatusDownloaded, 1),
		outcome("fn", domain.StatusSkipped, 1),
	}
	for _, id := range []string{"f1", "f2", "f3", "f4", "f5", "f6"} {
		truth[id] = domain.GroundTruthEntry{HasFinancialData: false}
		outcomes = append(outcomes, outcome(id, domain.StatusDownloaded, 1))
	}

	r, err := Build("run-1", outcomes, truth, time.Second)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if r.Precision != 0.1429 {
		t.Errorf("Expected precision 0.1429, got %v", r.Precision)
	}
	if r.F1Score != 0.2222 {
		t.Errorf("Expected F1 0.2222, got %v", r.F1Score)
	}
}

func TestBuild_ReportCarriesLeakCounterKey(t *testing.T) {
	truth := map[string]domain.GroundTruthEntry{
		"x": {HasFinancialData: true, AlreadyProcessed: true},
	}
	outcomes := []domain.Outcome{
		outcome("x", domain.StatusAlreadyProcessed, 0),
	}

	r, err := Build("run-1", outcomes, truth, time.Second)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if r.ExclusionLeaks != 0 {
		t.Errorf("Expected zero exclusion leaks in a scored report, got %d", r.ExclusionLeaks)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"already_processed_incorrectly_processed":0`) {
		t.Errorf("Report JSON must carry the leak counter key, got %s", data)
	}
}

func TestBuild_ZeroDenominatorsReadZero(t *testing.T) {
	truth := map[string]domain.GroundTruthEntry{
		"a": {HasFinancialData: false},
	}
	outcomes := []domain.Outcome{
		outcome("a", domain.StatusNotFound, 0), // TN only
	}

	r, err := Build("run-1", outcomes, truth, time.Second)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if r.Precision != 0 || r.Recall != 0 || r.F1Score != 0 {
		t.Errorf("Expected zero metrics with empty positives, got P=%v R=%v F1=%v",
			r.Precision, r.Recall, r.F1Score)
	}
	if r.DecoyFilterRate != 1 {
		t.Errorf("Expected decoy filter rate 1 with a single TN, got %v", r.DecoyFilterRate)
	}
	if r.APIEfficiency != 0 {
		t.Errorf("Expected zero efficiency with zero api calls, got %v", r.APIEfficiency)
	}
}

func TestBuild_ExclusionLeakFailsHard(t *testing.T) {
	truth := map[string]domain.GroundTruthEntry{
		"x": {HasFinancialData: true, AlreadyProcessed: true},
	}
	outcomes := []domain.Outcome{
		outcome("x", domain.StatusDownloaded, 4),
	}

	_, err := Build("run-1", outcomes, truth, time.Second)
	var leak *ExclusionLeakError
	if !errors.As(err, &leak) {
		t.Fatalf("Expected ExclusionLeakError, got %v", err)
	}
	if leak.DealID != "x" {
		t.Errorf("Expected leak on deal x, got %s", leak.DealID)
	}
}

func TestFromEventLog_ReplayIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	log, err := telemetry.Open(dir, "run-replay")
	if err != nil {
		t.Fatalf("telemetry.Open failed: %v", err)
	}

	deals := []struct {
		deal   domain.Deal
		status domain.Status
		api    int
	}{
		{domain.Deal{DealID: "a", CompanyName: "Acme"}, domain.StatusDownloaded, 4},
		{domain.Deal{DealID: "b", CompanyName: "Globex"}, domain.StatusSkipped, 2},
		{domain.Deal{DealID: "c", CompanyName: "Initech"}, domain.StatusNotFound, 1},
	}
	for _, d := range deals {
		log.StartDeal(d.deal.DealID)
		if err := log.Append(telemetry.EventPipelineTerminal, d.deal, map[string]any{
			"pipeline_status":           string(d.status),
			"total_api_calls_this_deal": d.api,
			"total_llm_calls_this_deal": 1,
		}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	truth := map[string]domain.GroundTruthEntry{
		"a": {HasFinancialData: true},
		"b": {HasFinancialData: false},
		"c": {HasFinancialData: false},
	}

	first, err := FromEventLog("replay", log.Path(), truth, 0)
	if err != nil {
		t.Fatalf("FromEventLog failed: %v", err)
	}
	second, err := FromEventLog("replay", log.Path(), truth, 0)
	if err != nil {
		t.Fatalf("Second replay failed: %v", err)
	}

	if first.TruePositives != 1 || first.TrueNegatives != 2 {
		t.Errorf("Replay matrix TP=%d TN=%d, want 1/2", first.TruePositives, first.TrueNegatives)
	}
	if first.TotalAPICalls != 7 {
		t.Errorf("Expected 7 api calls from replay, got %d", first.TotalAPICalls)
	}

	if first.TruePositives != second.TruePositives ||
		first.FalseNegatives != second.FalseNegatives ||
		first.F1Score != second.F1Score ||
		first.TotalAPICalls != second.TotalAPICalls {
		t.Error("Replaying the same log must produce identical scores")
	}
}

func TestFromEventLog_ExclusionSkipCountsAsTerminal(t *testing.T) {
	dir := t.TempDir()
	log, err := telemetry.Open(dir, "run-excl")
	if err != nil {
		t.Fatalf("telemetry.Open failed: %v", err)
	}

	// An excluded deal writes only its EXCLUSION_SKIP, never a
	// PIPELINE_TERMINAL; replay must still account for it.
	excluded := domain.Deal{DealID: "x", CompanyName: "Wayne"}
	log.StartDeal("x")
	if err := log.Append(telemetry.EventExclusionSkip, excluded, map[string]any{
		"reason":             "already_processed",
		"api_calls_consumed": 0,
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	active := domain.Deal{DealID: "a", CompanyName: "Acme"}
	log.StartDeal("a")
	if err := log.Append(telemetry.EventPipelineTerminal, active, map[string]any{
		"pipeline_status":           string(domain.StatusDownloaded),
		"total_api_calls_this_deal": 3,
		"total_llm_calls_this_deal": 1,
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	truth := map[string]domain.GroundTruthEntry{
		"x": {HasFinancialData: true, AlreadyProcessed: true},
		"a": {HasFinancialData: true},
	}

	r, err := FromEventLog("run-excl", log.Path(), truth, 0)
	if err != nil {
		t.Fatalf("FromEventLog failed: %v", err)
	}
	if r.DealsAlreadyProcessed != 1 {
		t.Errorf("Expected 1 excluded deal from replay, got %d", r.DealsAlreadyProcessed)
	}
	if r.TruePositives != 1 {
		t.Errorf("Expected 1 true positive from replay, got %d", r.TruePositives)
	}
	if r.DealsTotal != 2 {
		t.Errorf("Expected 2 deals total from replay, got %d", r.DealsTotal)
	}
}
