// Package mcp exposes finsight's filings search and insights over the
// Model Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/insights"
	"github.com/finsight-ai/finsight/internal/retriever"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes filing search and insight tools.
type Server struct {
	retr     *retriever.Retriever
	docs     *documents.Store
	insights *insights.Store
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(retr *retriever.Retriever, docs *documents.Store, store *insights.Store) *Server {
	s := &Server{
		retr:     retr,
		docs:     docs,
		insights: store,
	}

	s.mcp = server.NewMCPServer(
		"finsight",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchFilingsTool, s.handleSearchFilings)
	s.mcp.AddTool(listDocumentsTool, s.handleListDocuments)
	s.mcp.AddTool(getDocumentInsightsTool, s.handleGetDocumentInsights)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
