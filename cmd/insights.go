package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/finsight-ai/finsight/internal/insights"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "List extracted insights",
	Long:  `Lists stored insights with optional filters on company, document type, metric, task, and time window. Each insight cites the segments it was derived from.`,
	RunE:  runInsights,
}

func init() {
	insightsCmd.Flags().String("company", "", "filter by company name")
	insightsCmd.Flags().String("type", "", "filter by document type")
	insightsCmd.Flags().String("metric", "", "filter by metric name")
	insightsCmd.Flags().String("task", "", "filter by task: metric, risk, sentiment, summary")
	insightsCmd.Flags().String("since", "", "only insights created after this date (2006-01-02)")
	insightsCmd.Flags().Int("limit", 50, "maximum number of insights")
	insightsCmd.Flags().Bool("json", false, "output insights as JSON")
	rootCmd.AddCommand(insightsCmd)
}

func runInsights(cmd *cobra.Command, args []string) error {
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

	filter := insights.Filter{}
	filter.Company, _ = cmd.Flags().GetString("company")
	filter.DocType, _ = cmd.Flags().GetString("type")
	filter.Metric, _ = cmd.Flags().GetString("metric")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	if taskFlag, _ := cmd.Flags().GetString("task"); taskFlag != "" {
		task, ok := insights.ParseTask(taskFlag)
		if !ok {
			return fmt.Errorf("unknown task %q", taskFlag)
		}
		filter.Task = task
	}
	if sinceFlag, _ := cmd.Flags().GetString("since"); sinceFlag != "" {
		since, err := time.Parse("2006-01-02", sinceFlag)
		if err != nil {
			return fmt.Errorf("invalid --since date: %w", err)
		}
		filter.Since = &since
	}

	results, err := insights.NewStore(database).Query(ctx, filter)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		if results == nil {
			results = []*insights.Insight{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No insights found. Run `finsight analyze` first.")
		return nil
	}

	fmt.Printf("%d insight(s):\n\n", len(results))
	for _, in := range results {
		label := string(in.Task)
		if in.Metric != "" {
			label = fmt.Sprintf("%s/%s", in.Task, in.Metric)
		}
		fmt.Printf("  [%s] %s\n", label, truncate(in.Value, 120))
		if in.Insufficient {
			fmt.Println("     (insufficient context)")
		}
		fmt.Printf("     Document: %s  Segments: %d  Created: %s\n\n",
			in.DocumentID, len(in.SegmentIDs), in.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
