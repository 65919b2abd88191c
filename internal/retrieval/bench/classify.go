// Package bench scores a finished run against the ground-truth oracle and
// produces the confusion-matrix benchmark report.
package bench

import (
	"github.com/vietddude/docketbench/internal/core/domain"
)

// Classification buckets a deal's terminal status against ground truth.
type Classification string

const (
	TruePositive     Classification = "TRUE_POSITIVE"
	FalsePositive    Classification = "FALSE_POSITIVE"
	TrueNegative     Classification = "TRUE_NEGATIVE"
	FalseNegative    Classification = "FALSE_NEGATIVE"
	AlreadyProcessed Classification = "ALREADY_PROCESSED"
	Unclassified     Classification = "UNCLASSIFIED"
)

// Classify buckets one terminal status. Deals the oracle marks already
// processed are excluded from the matrix regardless of their status; a
// missing oracle entry is UNCLASSIFIED. A FETCH_FAILED deal was approved
// but never obtained, so it counts against recall only when the document
// actually exists.
func Classify(truth map[string]domain.GroundTruthEntry, dealID string, status domain.Status) Classification {
	entry, ok := truth[dealID]
	if !ok {
		return Unclassified
	}
	if entry.AlreadyProcessed {
		return AlreadyProcessed
	}

	switch status {
	case domain.StatusDownloaded:
		if entry.HasFinancialData {
			return TruePositive
		}
		return FalsePositive
	case domain.StatusSkipped, domain.StatusNotFound:
		if entry.HasFinancialData {
			return FalseNegative
		}
		return TrueNegative
	case domain.StatusFetchFailed:
		if entry.HasFinancialData {
			return FalseNegative
		}
		return TrueNegative
	}
	return Unclassified
}
