package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/insights"
	"github.com/finsight-ai/finsight/internal/retriever"
	"github.com/finsight-ai/finsight/internal/vectordb"
)

// handleSearchFilings performs semantic search over the indexed filings.
func (s *Server) handleSearchFilings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	var filter vectordb.Filter
	if company := request.GetString("company", ""); company != "" {
		filter.Company = &company
	}
	if docType := request.GetString("doc_type", ""); docType != "" {
		filter.DocType = &docType
	}

	hits, err := s.retr.Retrieve(ctx, query, limit, &filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(hits) == 0 {
		return mcp.NewToolResultText("No results found. The filings may not be ingested yet. Run `finsight ingest` to index them."), nil
	}

	return mcp.NewToolResultText(formatHits(hits)), nil
}

// handleListDocuments returns the document inventory.
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	company := request.GetString("company", "")
	docs, err := s.docs.List(ctx, company, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing documents failed: %v", err)), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("No documents ingested yet. Run `finsight ingest` to add filings."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d document(s):\n", len(docs))
	for _, d := range docs {
		fmt.Fprintf(&sb, "\n- %s | %s | %s | filed %s | status %s",
			d.ID, d.Company, d.DocType, d.FilingDate, d.Status)
		if !d.Indexed {
			sb.WriteString(" (not indexed)")
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleGetDocumentInsights returns a document's insights with their cited
// segments.
func (s *Server) handleGetDocumentInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: document_id"), nil
	}

	doc, err := s.docs.Get(ctx, documentID)
	if errors.Is(err, documents.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no document with id %q", documentID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading document failed: %v", err)), nil
	}

	all, err := s.insights.ByDocument(ctx, documentID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading insights failed: %v", err)), nil
	}
	if len(all) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No insights for %s %s yet. Run `finsight analyze` to extract them.",
			doc.Company, doc.DocType)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s (filed %s): %d insight(s)\n", doc.Company, doc.DocType, doc.FilingDate, len(all))
	for _, in := range all {
		sb.WriteString("\n")
		sb.WriteString(formatInsight(in))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatHits(hits []retriever.Hit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d result(s):\n", len(hits))

	for i, h := range hits {
		fmt.Fprintf(&sb, "\n--- Result %d ---\n", i+1)
		fmt.Fprintf(&sb, "Document: %s %s (id %s)\n", h.Document.Company, h.Document.DocType, h.Document.ID)
		fmt.Fprintf(&sb, "Section: %s\n", h.Segment.Section)
		fmt.Fprintf(&sb, "Similarity: %.1f%%\n", h.Similarity*100)
		sb.WriteString("\n")
		sb.WriteString(h.Segment.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatInsight(in *insights.Insight) string {
	var sb strings.Builder
	switch in.Task {
	case insights.TaskMetric:
		fmt.Fprintf(&sb, "[metric] %s: %s", in.Metric, in.Value)
	default:
		fmt.Fprintf(&sb, "[%s] %s", in.Task, in.Value)
	}
	if in.Insufficient {
		sb.WriteString(" (insufficient context)")
	}
	if in.Confidence != nil {
		fmt.Fprintf(&sb, " (confidence %.2f)", *in.Confidence)
	}
	fmt.Fprintf(&sb, "\n  cites %d segment(s): %s", len(in.SegmentIDs), strings.Join(in.SegmentIDs, ", "))
	return sb.String()
}
