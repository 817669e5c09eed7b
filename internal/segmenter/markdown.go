package segmenter

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// speakerTurn matches speaker attributions in earnings-call transcripts,
// e.g. "Operator:" or "Jane Smith -- Chief Financial Officer:".
var speakerTurn = regexp.MustCompile(`(?m)^(Operator|[A-Z][A-Za-z.'-]+(?: [A-Z][A-Za-z.'-]+)+(?: -- [^\n:]+)?):\s*$`)

// transcriptBoundaries segments earnings-call transcripts. Transcripts are
// distributed as markdown, so headings are read from the goldmark AST rather
// than re-matched with regexes; calls without headings fall back to speaker
// turns.
func transcriptBoundaries(s string) []boundary {
	source := []byte(s)
	p := goldmark.New().Parser()
	doc := p.Parse(text.NewReader(source))

	var bounds []boundary
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := h.Lines().At(0)
		bounds = append(bounds, boundary{
			start: lineStart(source, seg.Start),
			label: strings.TrimSpace(string(source[seg.Start:seg.Stop])),
		})
		return ast.WalkSkipChildren, nil
	})

	if len(bounds) > 0 {
		return bounds
	}

	// No markdown headings; segment by speaker turn instead.
	for _, m := range speakerTurn.FindAllStringSubmatchIndex(s, -1) {
		bounds = append(bounds, boundary{
			start: m[0],
			label: strings.TrimSpace(s[m[2]:m[3]]),
		})
	}
	return bounds
}

// lineStart walks back from offset to the beginning of its line, so heading
// segments include the "#" markers the AST strips.
func lineStart(source []byte, offset int) int {
	for offset > 0 && source[offset-1] != '\n' {
		offset--
	}
	return offset
}
