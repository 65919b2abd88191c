package domain

// Status is the terminal classification of a deal. Exactly one Outcome with
// one of these statuses exists per deal after a run.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusAlreadyProcessed Status = "ALREADY_PROCESSED"
	StatusDownloaded       Status = "DOWNLOADED"
	StatusSkipped          Status = "SKIPPED" // gatekeeper rejected
	StatusNotFound         Status = "NOT_FOUND"
	StatusFetchFailed      Status = "FETCH_FAILED"
)

// Terminal reports whether s is a final pipeline status.
func (s Status) Terminal() bool {
	switch s {
	case StatusAlreadyProcessed, StatusDownloaded, StatusSkipped, StatusNotFound, StatusFetchFailed:
		return true
	}
	return false
}

// Outcome is the single authoritative end state for a deal in a run.
type Outcome struct {
	RunID          string `json:"run_id"`
	DealID         string `json:"deal_id"`
	CompanyName    string `json:"company_name"`
	Status         Status `json:"status"`
	APICalls       int    `json:"total_api_calls"`
	LLMCalls       int    `json:"total_llm_calls"`
	DownloadedFile string `json:"downloaded_file,omitempty"`
}
