package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/finsight-ai/finsight/internal/db"
	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/insights"
	"github.com/finsight-ai/finsight/internal/retriever"
	"github.com/finsight-ai/finsight/internal/vectordb"
)

// stubIndex serves added entries back for any query.
type stubIndex struct {
	entries []vectordb.Entry
}

func (f *stubIndex) AddSegments(_ context.Context, entries []vectordb.Entry) error {
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *stubIndex) Search(_ context.Context, query string, k int, filter *vectordb.Filter) ([]vectordb.Result, error) {
	var out []vectordb.Result
	for _, e := range f.entries {
		if filter != nil && filter.Company != nil && e.Metadata.Company != *filter.Company {
			continue
		}
		out = append(out, vectordb.Result{Entry: e, Similarity: 0.95})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (f *stubIndex) DeleteByDocument(_ context.Context, _ string) error { return nil }
func (f *stubIndex) Persist(_ context.Context, _ string) error          { return nil }
func (f *stubIndex) Load(_ context.Context, _ string) error             { return nil }
func (f *stubIndex) Count() int                                         { return len(f.entries) }
func (f *stubIndex) ModelID() string                                    { return "stub" }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	docs := documents.NewStore(database)
	docID, err := docs.Create(ctx, documents.Document{
		Company:    "Acme Corp",
		DocType:    documents.DocType10K,
		FilingDate: "03/15/2025",
	})
	if err != nil {
		t.Fatalf("creating document: %v", err)
	}
	if err := docs.ReplaceSegments(ctx, docID, []documents.Segment{
		{Section: "Risk Factors", Text: "Customer concentration is a significant risk."},
	}); err != nil {
		t.Fatalf("segments: %v", err)
	}
	segs, err := docs.Segments(ctx, docID)
	if err != nil {
		t.Fatalf("listing segments: %v", err)
	}

	index := &stubIndex{}
	for _, s := range segs {
		index.AddSegments(ctx, []vectordb.Entry{{
			SegmentID: s.ID,
			Text:      s.Text,
			Metadata:  vectordb.EntryMetadata{DocumentID: docID, Section: s.Section, Company: "Acme Corp"},
		}})
	}

	store := insights.NewStore(database)
	if err := store.Save(ctx, &insights.Insight{
		DocumentID: docID,
		Task:       insights.TaskMetric,
		Metric:     "Total Revenue",
		Value:      "$1.2 billion",
		SegmentIDs: []string{segs[0].ID},
	}); err != nil {
		t.Fatalf("saving insight: %v", err)
	}

	return NewServer(retriever.New(index, docs, 5), docs, store), docID
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"search_filings", searchFilingsTool, "search_filings"},
		{"list_documents", listDocumentsTool, "list_documents"},
		{"get_document_insights", getDocumentInsightsTool, "get_document_insights"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestHandleSearchFilings(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	t.Run("basic search", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "concentration risk"}

		result, err := srv.handleSearchFilings(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
	})

	t.Run("company filter excludes others", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "risk", "company": "Globex"}

		result, err := srv.handleSearchFilings(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleSearchFilings(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing query")
		}
	})
}

func TestHandleListDocuments(t *testing.T) {
	srv, _ := newTestServer(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := srv.handleListDocuments(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Acme Corp") || !strings.Contains(text, "10-K") {
		t.Errorf("listing text: %s", text)
	}
}

func TestHandleGetDocumentInsights(t *testing.T) {
	srv, docID := newTestServer(t)
	ctx := context.Background()

	t.Run("existing document", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"document_id": docID}

		result, err := srv.handleGetDocumentInsights(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		text := resultText(t, result)
		if !strings.Contains(text, "Total Revenue") || !strings.Contains(text, "$1.2 billion") {
			t.Errorf("insights text: %s", text)
		}
		if !strings.Contains(text, "cites 1 segment") {
			t.Errorf("missing provenance: %s", text)
		}
	})

	t.Run("unknown document", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"document_id": "missing"}

		result, err := srv.handleGetDocumentInsights(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for unknown document")
		}
	})
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
