package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DealsProcessed tracks deals reaching a terminal status
	DealsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docketbench_deals_processed_total",
			Help: "Total number of deals reaching a terminal status",
		},
		[]string{"status"},
	)

	// APICallsTotal tracks search API calls per source
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docketbench_api_calls_total",
			Help: "Total number of search API calls",
		},
		[]string{"source"},
	)

	// LLMCallsTotal tracks gatekeeper model calls
	LLMCallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docketbench_llm_calls_total",
			Help: "Total number of gatekeeper LLM calls",
		},
	)

	// BudgetDenials tracks reservations refused by the ledger
	BudgetDenials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docketbench_budget_denials_total",
			Help: "Total number of ledger reservations denied",
		},
	)

	// FetchBytes tracks bytes downloaded per transport
	FetchBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docketbench_fetch_bytes_total",
			Help: "Total bytes downloaded",
		},
		[]string{"method"},
	)

	// FetchFailures tracks fetch attempts that ended in failure
	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docketbench_fetch_failures_total",
			Help: "Total number of failed fetch attempts",
		},
		[]string{"method"},
	)

	// ValidationFailures tracks collaborator payloads failing schema checks
	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docketbench_validation_failures_total",
			Help: "Total number of schema validation failures",
		},
		[]string{"component"},
	)

	// BudgetRemaining tracks the ledger's remaining daily quota
	BudgetRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docketbench_budget_remaining",
			Help: "Remaining daily API budget units",
		},
	)
)
