package domain

// Source identifies which search backend produced a candidate.
type Source string

const (
	SourceCourtListener Source = "courtlistener"
	SourceKroll         Source = "kroll"
	SourceStretto       Source = "stretto"
	SourceEpiq          Source = "epiq"
)

// Candidate is a metadata-only reference to a possible target document.
// It never carries document bytes; the fetch layer streams payloads straight
// to disk.
type Candidate struct {
	DealID                 string   `json:"deal_id"`
	Source                 Source   `json:"source"`
	EntryID                string   `json:"docket_entry_id"`
	Title                  string   `json:"docket_title"`
	FilingDate             string   `json:"filing_date"` // YYYY-MM-DD
	AttachmentDescriptions []string `json:"attachment_descriptions"`
	PDFURL                 string   `json:"resolved_pdf_url,omitempty"`
	APICallsConsumed       int      `json:"api_calls_consumed"`
}
