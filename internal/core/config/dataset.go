package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vietddude/docketbench/internal/core/domain"
)

// LoadDeals reads the deal dataset from a JSON array file.
func LoadDeals(path string) ([]domain.Deal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deals dataset: %w", err)
	}

	var deals []domain.Deal
	if err := json.Unmarshal(data, &deals); err != nil {
		return nil, fmt.Errorf("failed to parse deals dataset: %w", err)
	}

	seen := make(map[string]struct{}, len(deals))
	for _, d := range deals {
		if d.DealID == "" {
			return nil, fmt.Errorf("deal with empty deal_id (company %q)", d.CompanyName)
		}
		if _, dup := seen[d.DealID]; dup {
			return nil, fmt.Errorf("duplicate deal_id %q in dataset", d.DealID)
		}
		seen[d.DealID] = struct{}{}
	}
	return deals, nil
}

// LoadGroundTruth reads the oracle file, a JSON object keyed by deal_id.
func LoadGroundTruth(path string) (map[string]domain.GroundTruthEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ground truth: %w", err)
	}

	var truth map[string]domain.GroundTruthEntry
	if err := json.Unmarshal(data, &truth); err != nil {
		return nil, fmt.Errorf("failed to parse ground truth: %w", err)
	}
	return truth, nil
}
