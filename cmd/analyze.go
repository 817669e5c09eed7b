package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/extraction"
	"github.com/finsight-ai/finsight/internal/insights"
	"github.com/finsight-ai/finsight/internal/progress"
	"github.com/finsight-ai/finsight/internal/retriever"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [document-id]",
	Short: "Run LLM extraction over ingested documents",
	Long: `Extracts financial metrics, risk factors, sentiment, and a summary
from an ingested document. Each insight cites the segments it was
derived from. With --all, analyzes every processed document.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Bool("all", false, "analyze every processed document")
	analyzeCmd.Flags().StringSlice("metrics", nil, "metrics to extract (default: configured metric list)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	all, _ := cmd.Flags().GetBool("all")
	metrics, _ := cmd.Flags().GetStringSlice("metrics")

	if !all && len(args) == 0 {
		return errors.New("a document ID is required unless --all is set")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(metrics) == 0 {
		metrics = cfg.Metrics
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	index, err := openIndex(ctx, cfg, embedder)
	if err != nil {
		return err
	}
	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	docs := documents.NewStore(database)
	retr := retriever.New(index, docs, cfg.TopK)
	store := insights.NewStore(database)
	orch := extraction.NewOrchestrator(provider, retr, store, extractionConfig(cfg, logger))

	var targets []documents.Document
	if all {
		listed, err := docs.List(ctx, "", "")
		if err != nil {
			return err
		}
		for _, d := range listed {
			if d.Status == documents.StatusProcessed {
				targets = append(targets, d)
			}
		}
		if len(targets) == 0 {
			fmt.Println("No processed documents found. Run `finsight ingest` first.")
			return nil
		}
	} else {
		doc, err := docs.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("document %s: %w", args[0], err)
		}
		targets = append(targets, *doc)
	}

	reporter := progress.NewReporter("Analyzing documents")
	reporter.Start(len(targets))

	var total, failed int
	for i, doc := range targets {
		results, err := orch.Analyze(ctx, doc.ID, metrics)
		total += len(results)
		if err != nil {
			failed++
			logger.Warn("analysis incomplete",
				zap.String("document", doc.ID),
				zap.Error(err))
		}
		reporter.Update(i+1, fmt.Sprintf("%s %s", doc.Company, doc.DocType))
	}
	reporter.Finish()

	fmt.Printf("Saved %d insight(s) from %d document(s)\n", total, len(targets))
	if failed > 0 {
		return fmt.Errorf("analysis failed for %d document(s); see logs", failed)
	}
	return nil
}
