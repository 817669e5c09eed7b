package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchFilingsTool defines the search_filings MCP tool.
var searchFilingsTool = mcp.NewTool("search_filings",
	mcp.WithDescription("Search ingested SEC filings and earnings call transcripts semantically. Returns the most relevant passages with their source documents."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
	mcp.WithString("company",
		mcp.Description("Restrict results to one company"),
	),
	mcp.WithString("doc_type",
		mcp.Description("Restrict results to one document type"),
		mcp.Enum("10-K", "10-Q", "transcript", "generic"),
	),
)

// listDocumentsTool defines the list_documents MCP tool.
var listDocumentsTool = mcp.NewTool("list_documents",
	mcp.WithDescription("List ingested documents with their company, type, filing date, and processing status."),
	mcp.WithString("company",
		mcp.Description("Filter by company name"),
	),
)

// getDocumentInsightsTool defines the get_document_insights MCP tool.
var getDocumentInsightsTool = mcp.NewTool("get_document_insights",
	mcp.WithDescription("Get the extracted insights (metrics, risks, sentiment, summary) for a document, with the segments each insight cites."),
	mcp.WithString("document_id",
		mcp.Required(),
		mcp.Description("The document id returned by list_documents or search_filings"),
	),
)
