package segmenter

import (
	"strings"
	"testing"

	"github.com/finsight-ai/finsight/internal/documents"
)

const filing10K = `COMPANY NAME: Acme Corp
FILING DATE: 03/15/2025

ITEM 1. Business
Acme Corp designs and sells industrial widgets worldwide.

ITEM 1A. Risk Factors
Demand for widgets is cyclical and sensitive to steel prices.

ITEM 7. Management's Discussion and Analysis
Revenue grew 12% year over year driven by the Widget Pro line.
`

func checkCoverage(t *testing.T, text string, segs []documents.Segment) {
	t.Helper()
	if len(segs) == 0 {
		t.Fatal("no segments")
	}
	if segs[0].Start != 0 {
		t.Errorf("first segment starts at %d, want 0", segs[0].Start)
	}
	if segs[len(segs)-1].End != len(text) {
		t.Errorf("last segment ends at %d, want %d", segs[len(segs)-1].End, len(text))
	}
	for i := 1; i < len(segs); i++ {
		if segs[i].Start != segs[i-1].End {
			t.Errorf("gap between segment %d (end %d) and %d (start %d)",
				i-1, segs[i-1].End, i, segs[i].Start)
		}
	}
	for i, s := range segs {
		if s.Ordinal != i {
			t.Errorf("segment %d has ordinal %d", i, s.Ordinal)
		}
		if s.Text != text[s.Start:s.End] {
			t.Errorf("segment %d text does not match its span", i)
		}
	}
}

func TestSegmentFilingItems(t *testing.T) {
	segs := Segment(filing10K, documents.DocType10K)
	checkCoverage(t, filing10K, segs)

	if len(segs) != 4 {
		t.Fatalf("got %d segments, want 4", len(segs))
	}

	// Preamble before the first heading keeps the default label.
	if segs[0].Section != DefaultSection {
		t.Errorf("preamble section = %q, want %q", segs[0].Section, DefaultSection)
	}

	want := []string{"Business", "Risk Factors", "Management's Discussion and Analysis"}
	for i, label := range want {
		if segs[i+1].Section != label {
			t.Errorf("segment %d section = %q, want %q", i+1, segs[i+1].Section, label)
		}
	}

	if !strings.Contains(segs[2].Text, "cyclical") {
		t.Errorf("Risk Factors segment missing body text: %q", segs[2].Text)
	}
}

func TestSegmentUnknownItemKeepsHeading(t *testing.T) {
	text := "ITEM 9B. Other Information\nNone.\n"
	segs := Segment(text, documents.DocType10K)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].Section != "ITEM 9B. Other Information" {
		t.Errorf("section = %q", segs[0].Section)
	}
}

func TestSegmentQuarterlyItems(t *testing.T) {
	text := `ITEM 1. Financial Statements
Condensed consolidated balance sheets follow.

ITEM 2. Management's Discussion and Analysis of Financial Condition
Revenue for the quarter was $300 million.

ITEM 1A. Risk Factors
No material changes from the annual report.
`
	segs := Segment(text, documents.DocType10Q)
	checkCoverage(t, text, segs)

	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	// Quarterly numbering: item 1 is the statements, not the business
	// description.
	want := []string{"Financial Statements", "Management's Discussion and Analysis", "Risk Factors"}
	for i, label := range want {
		if segs[i].Section != label {
			t.Errorf("segment %d section = %q, want %q", i, segs[i].Section, label)
		}
	}
}

func TestSegmentWholeDocumentFallback(t *testing.T) {
	text := "Plain prose with no recognizable headings at all."
	for _, dt := range []documents.DocType{
		documents.DocType10K,
		documents.DocTypeTranscript,
		documents.DocTypeGeneric,
	} {
		segs := Segment(text, dt)
		if len(segs) != 1 {
			t.Fatalf("%s: got %d segments, want 1", dt, len(segs))
		}
		if segs[0].Section != DefaultSection {
			t.Errorf("%s: section = %q, want %q", dt, segs[0].Section, DefaultSection)
		}
		checkCoverage(t, text, segs)
	}
}

func TestSegmentEmpty(t *testing.T) {
	if segs := Segment("", documents.DocType10K); segs != nil {
		t.Errorf("got %d segments for empty input", len(segs))
	}
}

func TestSegmentTranscriptHeadings(t *testing.T) {
	text := `# Q2 2025 Earnings Call

## Prepared Remarks
Thank you all for joining us today.

## Questions and Answers
First question comes from the line of an analyst.
`
	segs := Segment(text, documents.DocTypeTranscript)
	checkCoverage(t, text, segs)

	var labels []string
	for _, s := range segs {
		labels = append(labels, s.Section)
	}
	want := []string{"Q2 2025 Earnings Call", "Prepared Remarks", "Questions and Answers"}
	if len(labels) != len(want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d = %q, want %q", i, labels[i], want[i])
		}
	}
}

func TestSegmentTranscriptSpeakerTurns(t *testing.T) {
	text := `Operator:
Good morning and welcome.

Jane Smith -- Chief Financial Officer:
Revenue for the quarter was strong.
`
	segs := Segment(text, documents.DocTypeTranscript)
	checkCoverage(t, text, segs)

	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Section != "Operator" {
		t.Errorf("section 0 = %q", segs[0].Section)
	}
	if segs[1].Section != "Jane Smith -- Chief Financial Officer" {
		t.Errorf("section 1 = %q", segs[1].Section)
	}
}

func TestSegmentGenericHeadings(t *testing.T) {
	text := `Section 1: Overview
Some introductory text.

## Financial Highlights
Numbers go here.
`
	segs := Segment(text, documents.DocTypeGeneric)
	checkCoverage(t, text, segs)

	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Section != "Section 1: Overview" {
		t.Errorf("section 0 = %q", segs[0].Section)
	}
	if segs[1].Section != "Financial Highlights" {
		t.Errorf("section 1 = %q", segs[1].Section)
	}
}

func TestClean(t *testing.T) {
	in := "line one  \r\nline two\t\r\n\r\n\r\n\r\nline three\r\n"
	want := "line one\nline two\n\nline three"
	if got := Clean(in); got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestExtractMetadata(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantCompany string
		wantDate    string
	}{
		{
			name:        "explicit markers",
			text:        "COMPANY NAME: Acme Corp\nFILING DATE: 03/15/2025\n",
			wantCompany: "Acme Corp",
			wantDate:    "03/15/2025",
		},
		{
			name:        "loose patterns",
			text:        "Annual report of Widget Works Inc filed 12/31/2024.",
			wantCompany: "Widget Works",
			wantDate:    "12/31/2024",
		},
		{
			name:        "nothing recognizable",
			text:        "no names here",
			wantCompany: "Unknown Company",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := ExtractMetadata(tt.text)
			if md.Company != tt.wantCompany {
				t.Errorf("Company = %q, want %q", md.Company, tt.wantCompany)
			}
			if tt.wantDate != "" && md.FilingDate != tt.wantDate {
				t.Errorf("FilingDate = %q, want %q", md.FilingDate, tt.wantDate)
			}
			if md.FilingDate == "" {
				t.Error("FilingDate is empty")
			}
		})
	}
}
