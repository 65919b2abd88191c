package domain

// Decision is the gatekeeper's call on a candidate.
type Decision string

const (
	DecisionDownload Decision = "DOWNLOAD"
	DecisionSkip     Decision = "SKIP"
)

// Verdict is the structured output of a single gatekeeper evaluation.
type Verdict struct {
	Decision   Decision `json:"verdict"`
	Score      float64  `json:"score"` // 0.0 - 1.0
	Reasoning  string   `json:"reasoning"`
	TokensUsed int      `json:"token_count"`
	Model      string   `json:"model_used"`
	LatencyMs  int64    `json:"latency_ms"`
	// Err is set when the model call or validation failed and the verdict
	// was degraded to a synthetic SKIP.
	Err string `json:"error,omitempty"`
}

// FetchResult records the outcome of one document fetch attempt.
type FetchResult struct {
	Success       bool   `json:"success"`
	LocalPath     string `json:"local_file_path,omitempty"`
	SizeBytes     int64  `json:"file_size_bytes"`
	Method        string `json:"fetch_method"`
	BypassUsed    bool   `json:"bot_bypass_used"`
	FailureReason string `json:"failure_reason,omitempty"`
}
