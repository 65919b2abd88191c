package search

import (
	"fmt"
	"regexp"

	"github.com/vietddude/docketbench/internal/core/domain"
)

// Domains a resolved PDF URL may point at. Anything else is treated as a
// fabricated locator and dropped.
var validPDFDomains = []*regexp.Regexp{
	regexp.MustCompile(`kroll\.com`),
	regexp.MustCompile(`cases\.stretto\.com`),
	regexp.MustCompile(`dm\.epiq11\.com`),
	regexp.MustCompile(`storage\.courtlistener\.com`),
	regexp.MustCompile(`ecf\.\w+\.uscourts\.gov`),
	regexp.MustCompile(`assets\.kroll\.com`),
}

var filingDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateCandidate checks a candidate against the locator whitelist and
// the filing-date format. A nil error means the candidate is safe to hand
// to the gatekeeper.
func ValidateCandidate(c domain.Candidate) error {
	if c.PDFURL != "" && !validLocator(c.PDFURL) {
		return fmt.Errorf("%w: %s", domain.ErrBadLocator, c.PDFURL)
	}
	if c.FilingDate != "" && !filingDateRe.MatchString(c.FilingDate) {
		return fmt.Errorf("%w: bad filing date %q", domain.ErrValidation, c.FilingDate)
	}
	return nil
}

func validLocator(url string) bool {
	for _, re := range validPDFDomains {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// filterValid drops candidates that fail validation, returning the
// survivors and the number dropped.
func filterValid(cands []domain.Candidate) ([]domain.Candidate, int) {
	valid := cands[:0]
	dropped := 0
	for _, c := range cands {
		if err := ValidateCandidate(c); err != nil {
			dropped++
			continue
		}
		valid = append(valid, c)
	}
	return valid, dropped
}
