package segmenter

import (
	"regexp"
	"strings"
)

// itemHeading matches SEC filing section headings such as "ITEM 1A. Risk Factors".
var itemHeading = regexp.MustCompile(`(?im)^\s*ITEM\s+(\d+[A-Z]?)\.?\s+[^\n]*`)

// annualItems maps well-known 10-K item numbers to analyst-friendly section
// labels. Unlisted items keep their heading text.
var annualItems = map[string]string{
	"1":  "Business",
	"1A": "Risk Factors",
	"1B": "Unresolved Staff Comments",
	"2":  "Properties",
	"3":  "Legal Proceedings",
	"5":  "Market for Common Equity",
	"7":  "Management's Discussion and Analysis",
	"7A": "Quantitative and Qualitative Disclosures About Market Risk",
	"8":  "Financial Statements and Supplementary Data",
	"9A": "Controls and Procedures",
}

// quarterlyItems covers the 10-Q item numbering, where "ITEM 1." is the
// financial statements rather than the business description. Part II reuses
// numbers 1-4; the Part I labels win since they carry the analysis content,
// except 1A which only appears in Part II.
var quarterlyItems = map[string]string{
	"1":  "Financial Statements",
	"1A": "Risk Factors",
	"2":  "Management's Discussion and Analysis",
	"3":  "Quantitative and Qualitative Disclosures About Market Risk",
	"4":  "Controls and Procedures",
	"5":  "Other Information",
	"6":  "Exhibits",
}

// filingBoundaries builds a rule that locates "ITEM n." headings and labels
// them from the given item table.
func filingBoundaries(items map[string]string) rule {
	return func(text string) []boundary {
		matches := itemHeading.FindAllStringSubmatchIndex(text, -1)
		if len(matches) == 0 {
			return nil
		}

		bounds := make([]boundary, 0, len(matches))
		for _, m := range matches {
			item := strings.ToUpper(text[m[2]:m[3]])
			label, ok := items[item]
			if !ok {
				label = strings.TrimSpace(text[m[0]:m[1]])
			}
			bounds = append(bounds, boundary{start: m[0], label: label})
		}
		return bounds
	}
}

// genericBoundaries splits on markdown-style "#" headings and lines beginning
// with "Section"/"SECTION", the convention used by plain-text filings.
var genericHeading = regexp.MustCompile(`(?m)^(#{1,6}\s+\S[^\n]*|Section\s+[^\n]+|SECTION\s+[^\n]+)`)

func genericBoundaries(text string) []boundary {
	matches := genericHeading.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	bounds := make([]boundary, 0, len(matches))
	for _, m := range matches {
		heading := strings.TrimSpace(text[m[0]:m[1]])
		heading = strings.TrimSpace(strings.TrimLeft(heading, "#"))
		bounds = append(bounds, boundary{start: m[0], label: heading})
	}
	return bounds
}
