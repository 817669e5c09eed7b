package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finsight-ai/finsight/internal/db"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace statistics",
	Long:  `Prints counts of ingested documents, indexed segments, extracted insights, and background tasks for the current workspace.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	docTotal, err := countRows(ctx, database, `SELECT COUNT(*) FROM documents`)
	if err != nil {
		return err
	}
	docProcessed, err := countRows(ctx, database, `SELECT COUNT(*) FROM documents WHERE status = 'processed'`)
	if err != nil {
		return err
	}
	docUnindexed, err := countRows(ctx, database, `SELECT COUNT(*) FROM documents WHERE status = 'processed' AND indexed = 0`)
	if err != nil {
		return err
	}
	segments, err := countRows(ctx, database, `SELECT COUNT(*) FROM segments`)
	if err != nil {
		return err
	}
	insightTotal, err := countRows(ctx, database, `SELECT COUNT(*) FROM insights`)
	if err != nil {
		return err
	}
	corrections, err := countRows(ctx, database, `SELECT COUNT(*) FROM corrections`)
	if err != nil {
		return err
	}
	tasksQueued, err := countRows(ctx, database, `SELECT COUNT(*) FROM extraction_tasks WHERE status IN ('queued','running')`)
	if err != nil {
		return err
	}
	tasksFailed, err := countRows(ctx, database, `SELECT COUNT(*) FROM extraction_tasks WHERE status = 'failed'`)
	if err != nil {
		return err
	}

	fmt.Printf("Workspace: %s\n\n", cfg.DataDir)
	fmt.Printf("  Documents:   %d (%d processed)\n", docTotal, docProcessed)
	if docUnindexed > 0 {
		fmt.Printf("               %d not indexed; run `finsight ingest --reindex`\n", docUnindexed)
	}
	fmt.Printf("  Segments:    %d\n", segments)
	fmt.Printf("  Insights:    %d (%d corrected)\n", insightTotal, corrections)
	fmt.Printf("  Tasks:       %d pending, %d failed\n", tasksQueued, tasksFailed)

	byTask, err := database.QueryContext(ctx, `SELECT task, COUNT(*) FROM insights GROUP BY task ORDER BY task`)
	if err != nil {
		return err
	}
	defer byTask.Close()

	first := true
	for byTask.Next() {
		var task string
		var n int
		if err := byTask.Scan(&task, &n); err != nil {
			return err
		}
		if first {
			fmt.Println("\n  Insights by task:")
			first = false
		}
		fmt.Printf("    %-10s %d\n", task, n)
	}
	return byTask.Err()
}

func countRows(ctx context.Context, database *db.DB, query string) (int, error) {
	var n int
	if err := database.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("querying status: %w", err)
	}
	return n, nil
}
