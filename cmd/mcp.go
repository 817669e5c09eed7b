package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/insights"
	mcpserver "github.com/finsight-ai/finsight/internal/mcp"
	"github.com/finsight-ai/finsight/internal/retriever"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing filing search and insight lookup tools for AI agents like Claude Code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		index, err := openIndex(context.Background(), cfg, embedder)
		if err != nil {
			return err
		}
		if index.Count() == 0 {
			fmt.Fprintln(os.Stderr, "Warning: vector index is empty. Search results will be empty until `finsight ingest` runs.")
		}

		docs := documents.NewStore(database)
		retr := retriever.New(index, docs, cfg.TopK)

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "finsight MCP server started on stdio (segments=%d)\n", index.Count())

		srv := mcpserver.NewServer(retr, docs, insights.NewStore(database))
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
