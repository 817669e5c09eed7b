package segmenter

import (
	"regexp"
	"strings"
	"time"
)

// Metadata holds fields recovered from a document's text when the caller
// does not supply them.
type Metadata struct {
	Company    string
	FilingDate string
}

var (
	companyMarker = regexp.MustCompile(`(?i)COMPANY\s+NAME:\s*(.+)`)
	companyCorp   = regexp.MustCompile(`([A-Z][a-z]+(?: [A-Z][a-z]+)*)(?: Corp| Inc| Ltd)\b`)
	dateMarker    = regexp.MustCompile(`(?i)FILING\s+DATE:\s*(\d{1,2}/\d{1,2}/\d{2,4})`)
	anyDate       = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\b`)
)

// ExtractMetadata pulls company name and filing date from the document text.
// Explicit "COMPANY NAME:"/"FILING DATE:" markers win; otherwise loose
// patterns are tried, and the filing date defaults to today.
func ExtractMetadata(text string) Metadata {
	md := Metadata{Company: "Unknown Company"}

	if m := companyMarker.FindStringSubmatch(text); m != nil {
		md.Company = strings.TrimSpace(m[1])
	} else if m := companyCorp.FindStringSubmatch(text); m != nil {
		md.Company = m[1]
	}

	if m := dateMarker.FindStringSubmatch(text); m != nil {
		md.FilingDate = m[1]
	} else if m := anyDate.FindStringSubmatch(text); m != nil {
		md.FilingDate = m[1]
	} else {
		md.FilingDate = time.Now().Format("01/02/2006")
	}

	return md
}
