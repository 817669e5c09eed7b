package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/extraction"
	"github.com/finsight-ai/finsight/internal/feedback"
	"github.com/finsight-ai/finsight/internal/ingest"
	"github.com/finsight-ai/finsight/internal/insights"
	"github.com/finsight-ai/finsight/internal/retriever"
	"github.com/finsight-ai/finsight/internal/server"
	"github.com/finsight-ai/finsight/internal/tasks"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the finsight API server",
	Long: `Starts the HTTP API server with document ingestion, semantic search,
insight queries, feedback endpoints, and a WebSocket stream of task
updates. Extraction tasks run on a persisted background queue that
survives restarts.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
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
	index, err := openIndex(context.Background(), cfg, embedder)
	if err != nil {
		return err
	}
	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	docs := documents.NewStore(database)
	insightStore := insights.NewStore(database)
	feedbackStore := feedback.NewStore(database)
	taskStore := tasks.NewStore(database)
	retr := retriever.New(index, docs, cfg.TopK)
	pipeline := ingest.NewPipeline(docs, index, indexDir(cfg), logger)
	orch := extraction.NewOrchestrator(provider, retr, insightStore, extractionConfig(cfg, logger))

	runner := tasks.NewRunner(taskStore, docs, taskHandler(pipeline, orch, cfg.Metrics), tasks.RunnerConfig{
		Concurrency: cfg.MaxConcurrency,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	})

	srv := server.New(cfg.Server, server.Deps{
		DB:        database,
		Documents: docs,
		Insights:  insightStore,
		Feedback:  feedbackStore,
		Tasks:     taskStore,
		Runner:    runner,
		Pipeline:  pipeline,
		Retriever: retr,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- runner.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "finsight server v%s starting on port %d\n", Version, cfg.Server.Port)
	fmt.Fprintf(os.Stderr, "  Data dir: %s\n", cfg.DataDir)
	fmt.Fprintf(os.Stderr, "  Segments indexed: %d\n", index.Count())

	err = srv.Start()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if rerr := <-runnerDone; rerr != nil && !errors.Is(rerr, context.Canceled) {
		logger.Warn("task runner stopped with error", zap.Error(rerr))
	}
	return err
}

// taskHandler dispatches queued tasks to the ingest pipeline and the
// extraction orchestrator. Orchestrator failures come back Permanent: it
// already retried transport errors with backoff and re-prompted once on
// schema violations, so the runner must not multiply that budget by
// requeueing.
func taskHandler(pipeline *ingest.Pipeline, orch *extraction.Orchestrator, metrics []string) tasks.Handler {
	return func(ctx context.Context, task *tasks.Task) error {
		switch task.Kind {
		case tasks.KindIngest:
			_, err := pipeline.Process(ctx, task.DocumentID)
			return err
		case tasks.KindAnalyze:
			_, err := orch.Analyze(ctx, task.DocumentID, metrics)
			return tasks.Permanent(err)
		case tasks.KindMetric:
			var errs []error
			for _, m := range metrics {
				if _, err := orch.ExtractMetric(ctx, task.DocumentID, m); err != nil {
					errs = append(errs, err)
				}
			}
			return tasks.Permanent(errors.Join(errs...))
		case tasks.KindRisk:
			_, err := orch.IdentifyRisks(ctx, task.DocumentID)
			return tasks.Permanent(err)
		case tasks.KindSentiment:
			_, err := orch.AnalyzeSentiment(ctx, task.DocumentID)
			return tasks.Permanent(err)
		case tasks.KindSummary:
			_, err := orch.Summarize(ctx, task.DocumentID)
			return tasks.Permanent(err)
		default:
			return fmt.Errorf("unknown task kind %q", task.Kind)
		}
	}
}
