// Package segmenter splits raw filing text into ordered, labeled segments.
// Segment spans always cover the full input with no gaps or overlaps; input
// that matches no rule degrades to a single whole-document segment so
// downstream stages never see an empty result.
package segmenter

import (
	"sort"
	"strings"

	"github.com/finsight-ai/finsight/internal/documents"
)

// boundary marks the start offset of a section and its label.
type boundary struct {
	start int
	label string
}

// rule finds section boundaries in text. An empty result triggers the
// whole-document fallback.
type rule func(text string) []boundary

// rulesByType selects the segmentation strategy per document type.
// Strategy choice is a table lookup, not runtime inspection of the content.
var rulesByType = map[documents.DocType]rule{
	documents.DocType10K:        filingBoundaries(annualItems),
	documents.DocType10Q:        filingBoundaries(quarterlyItems),
	documents.DocTypeTranscript: transcriptBoundaries,
	documents.DocTypeGeneric:    genericBoundaries,
}

// DefaultSection labels spans that no heading rule claimed.
const DefaultSection = "body"

// Segment splits text into labeled segments according to the document type.
// Returned segments are ordered, their spans are [Start,End) byte offsets
// into text, and their union is exactly [0, len(text)).
func Segment(text string, docType documents.DocType) []documents.Segment {
	if text == "" {
		return nil
	}

	r, ok := rulesByType[docType]
	if !ok {
		r = genericBoundaries
	}

	bounds := r(text)
	return assemble(text, bounds)
}

// assemble converts boundaries into contiguous segments covering all of text.
// Text before the first boundary becomes a DefaultSection segment.
func assemble(text string, bounds []boundary) []documents.Segment {
	if len(bounds) == 0 {
		return []documents.Segment{{
			Section: DefaultSection,
			Start:   0,
			End:     len(text),
			Text:    text,
		}}
	}

	sort.SliceStable(bounds, func(i, j int) bool { return bounds[i].start < bounds[j].start })

	// Drop duplicate offsets, keeping the first label.
	deduped := bounds[:1]
	for _, b := range bounds[1:] {
		if b.start != deduped[len(deduped)-1].start {
			deduped = append(deduped, b)
		}
	}
	bounds = deduped

	var segs []documents.Segment
	if bounds[0].start > 0 {
		segs = append(segs, documents.Segment{
			Section: DefaultSection,
			Start:   0,
			End:     bounds[0].start,
			Text:    text[:bounds[0].start],
		})
	}

	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1].start
		}
		if end <= b.start {
			continue
		}
		segs = append(segs, documents.Segment{
			Section: b.label,
			Start:   b.start,
			End:     end,
			Text:    text[b.start:end],
		})
	}

	for i := range segs {
		segs[i].Ordinal = i
	}
	return segs
}

// Clean normalizes raw document text before segmentation: CRLF line endings
// become LF, trailing whitespace is trimmed per line, and runs of blank lines
// collapse to one. Line structure is preserved because the heading rules
// depend on it.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var out []string
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
