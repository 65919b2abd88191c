package bench

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
	"github.com/vietddude/docketbench/internal/retrieval/telemetry"
)

// Report is the benchmark summary written to benchmark_report.json.
type Report struct {
	RunID           string `json:"run_id"`
	RunTimestampUTC string `json:"run_timestamp_utc"`

	DealsTotal            int `json:"deals_total"`
	DealsAlreadyProcessed int `json:"deals_already_processed"`
	DealsActive           int `json:"deals_active"`

	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
	Unclassified   int `json:"unclassified"`

	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	F1Score         float64 `json:"f1_score"`
	Coverage        float64 `json:"coverage"`
	DecoyFilterRate float64 `json:"decoy_filter_rate"`
	APIEfficiency   float64 `json:"api_efficiency"`

	TotalAPICalls       int     `json:"total_api_calls"`
	TotalLLMCalls       int     `json:"total_llm_gatekeeper_calls"`
	TotalRuntimeSeconds float64 `json:"total_runtime_seconds"`

	ExcludedCorrectly int `json:"already_processed_correctly_excluded"`

	// ExclusionLeaks is always zero in a report that Build returned: a leak
	// aborts scoring with an ExclusionLeakError instead. The key stays in
	// the output schema.
	ExclusionLeaks int `json:"already_processed_incorrectly_processed"`
}

// ExclusionLeakError means a deal the oracle marks already processed
// reached a status other than ALREADY_PROCESSED. The run spent resources
// it was forbidden to spend, so the report refuses to score it.
type ExclusionLeakError struct {
	DealID string
	Status domain.Status
}

func (e *ExclusionLeakError) Error() string {
	return fmt.Sprintf("exclusion leak: deal %s marked already processed but finished %s", e.DealID, e.Status)
}

// Build scores a run's outcomes against the oracle. It fails hard on the
// first exclusion leak.
func Build(runID string, outcomes []domain.Outcome, truth map[string]domain.GroundTruthEntry, runtime time.Duration) (*Report, error) {
	r := &Report{
		RunID:           runID,
		RunTimestampUTC: time.Now().UTC().Format(time.RFC3339),
	}

	var apiCalls, llmCalls int
	for _, out := range outcomes {
		r.DealsTotal++
		apiCalls += out.APICalls
		llmCalls += out.LLMCalls

		switch Classify(truth, out.DealID, out.Status) {
		case TruePositive:
			r.TruePositives++
		case FalsePositive:
			r.FalsePositives++
		case TrueNegative:
			r.TrueNegatives++
		case FalseNegative:
			r.FalseNegatives++
		case AlreadyProcessed:
			if out.Status != domain.StatusAlreadyProcessed {
				return nil, &ExclusionLeakError{DealID: out.DealID, Status: out.Status}
			}
			r.DealsAlreadyProcessed++
		default:
			r.Unclassified++
		}
	}

	tp, fp, tn, fn := float64(r.TruePositives), float64(r.FalsePositives), float64(r.TrueNegatives), float64(r.FalseNegatives)

	r.DealsActive = r.TruePositives + r.FalsePositives + r.TrueNegatives + r.FalseNegatives

	// F1 comes from the raw ratios; rounding happens only at output.
	precision := ratio(tp, tp+fp)
	recall := ratio(tp, tp+fn)
	r.Precision = round4(precision)
	r.Recall = round4(recall)
	if precision+recall > 0 {
		r.F1Score = round4(2 * precision * recall / (precision + recall))
	}
	r.Coverage = round4(ratio(tp+fp, float64(r.DealsActive)))
	r.DecoyFilterRate = round4(ratio(tn, tn+fp))
	r.APIEfficiency = round6(ratio(tp, float64(apiCalls)))

	r.TotalAPICalls = apiCalls
	r.TotalLLMCalls = llmCalls
	r.TotalRuntimeSeconds = math.Round(runtime.Seconds()*100) / 100
	r.ExcludedCorrectly = r.DealsAlreadyProcessed
	return r, nil
}

// FromEventLog rebuilds outcomes by replaying terminal events and scores
// them. An excluded deal's only event is its EXCLUSION_SKIP, so that counts
// as a terminal too. Replaying the same log always yields the same report,
// so a crashed run can be scored after the fact.
func FromEventLog(runID, logPath string, truth map[string]domain.GroundTruthEntry, runtime time.Duration) (*Report, error) {
	events, err := telemetry.ReadEvents(logPath)
	if err != nil {
		return nil, fmt.Errorf("replay event log: %w", err)
	}

	// Last terminal per deal wins, matching the append-only log semantics.
	byDeal := make(map[string]domain.Outcome)
	var order []string
	for _, ev := range events {
		dealID, _ := ev["deal_id"].(string)
		company, _ := ev["company_name"].(string)

		switch ev["event_type"] {
		case string(telemetry.EventExclusionSkip):
			if _, seen := byDeal[dealID]; !seen {
				order = append(order, dealID)
			}
			byDeal[dealID] = domain.Outcome{
				RunID:       runID,
				DealID:      dealID,
				CompanyName: company,
				Status:      domain.StatusAlreadyProcessed,
			}
		case string(telemetry.EventPipelineTerminal):
			if _, seen := byDeal[dealID]; !seen {
				order = append(order, dealID)
			}
			status, _ := ev["pipeline_status"].(string)
			byDeal[dealID] = domain.Outcome{
				RunID:       runID,
				DealID:      dealID,
				CompanyName: company,
				Status:      domain.Status(status),
				APICalls:    asInt(ev["total_api_calls_this_deal"]),
				LLMCalls:    asInt(ev["total_llm_calls_this_deal"]),
			}
		}
	}

	outcomes := make([]domain.Outcome, 0, len(order))
	for _, id := range order {
		outcomes = append(outcomes, byDeal[id])
	}
	return Build(runID, outcomes, truth, runtime)
}

// WriteFile writes the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Summary is a one-line rendering for the run log.
func (r *Report) Summary() string {
	return fmt.Sprintf("F1 %.3f | P %.3f | R %.3f | TP %d FP %d FN %d TN %d",
		r.F1Score, r.Precision, r.Recall,
		r.TruePositives, r.FalsePositives, r.FalseNegatives, r.TrueNegatives)
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func round4(f float64) float64 { return math.Round(f*1e4) / 1e4 }
func round6(f float64) float64 { return math.Round(f*1e6) / 1e6 }

func asInt(v any) int {
	f, _ := v.(float64)
	return int(f)
}
