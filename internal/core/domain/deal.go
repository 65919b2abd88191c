package domain

// Deal represents one Chapter 11 deal to be driven through the retrieval
// pipeline. Loaded once from the dataset and never mutated.
type Deal struct {
	DealID           string `json:"deal_id"`
	CompanyName      string `json:"company_name"`
	FilingYear       int    `json:"filing_year"`
	Court            string `json:"court"`
	ClaimsAgent      string `json:"claims_agent,omitempty"`
	DocketNumber     string `json:"docket_number,omitempty"`
	AlreadyProcessed bool   `json:"already_processed"`
}

// GroundTruthEntry is the oracle record for a single deal.
type GroundTruthEntry struct {
	HasFinancialData bool   `json:"has_financial_data"`
	AlreadyProcessed bool   `json:"already_processed"`
	DocType          string `json:"doc_type,omitempty"`
}
