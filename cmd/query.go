package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/retriever"
	"github.com/finsight-ai/finsight/internal/vectordb"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Semantically search the ingested filings",
	Long:  `Searches the vector index using a natural language query and returns the most relevant filing passages with their source documents.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().Int("limit", 10, "maximum number of results")
	queryCmd.Flags().String("company", "", "filter by company name")
	queryCmd.Flags().String("type", "", "filter by document type: 10-K, 10-Q, transcript, generic")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	queryText := args[0]

	limit, _ := cmd.Flags().GetInt("limit")
	company, _ := cmd.Flags().GetString("company")
	typeFilter, _ := cmd.Flags().GetString("type")
	jsonOutput, _ := cmd.Flags().GetBool("json")

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

	index, err := openIndex(ctx, cfg, embedder)
	if err != nil {
		return err
	}

	if index.Count() == 0 {
		fmt.Println("Vector index is empty. Run `finsight ingest` first.")
		return nil
	}

	var filter *vectordb.Filter
	if company != "" || typeFilter != "" {
		filter = &vectordb.Filter{}
		if company != "" {
			filter.Company = &company
		}
		if typeFilter != "" {
			parsed, ok := documents.ParseDocType(typeFilter)
			if !ok {
				return fmt.Errorf("unknown document type %q", typeFilter)
			}
			s := string(parsed)
			filter.DocType = &s
		}
	}

	retr := retriever.New(index, documents.NewStore(database), cfg.TopK)
	hits, err := retr.Retrieve(ctx, queryText, limit, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if jsonOutput {
		return printHitsJSON(hits)
	}

	printHitsTable(hits)
	return nil
}

type hitJSON struct {
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
	Company    string  `json:"company"`
	DocType    string  `json:"doc_type"`
	Source     string  `json:"source"`
	Section    string  `json:"section"`
	Text       string  `json:"text"`
}

func printHitsJSON(hits []retriever.Hit) error {
	var out []hitJSON
	for i, h := range hits {
		out = append(out, hitJSON{
			Rank:       i + 1,
			Similarity: float64(h.Similarity),
			Company:    h.Document.Company,
			DocType:    string(h.Document.DocType),
			Source:     h.Document.Source,
			Section:    h.Segment.Section,
			Text:       truncate(h.Segment.Text, 200),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printHitsTable(hits []retriever.Hit) {
	fmt.Printf("Found %d results:\n\n", len(hits))
	for i, h := range hits {
		section := ""
		if h.Segment.Section != "" {
			section = fmt.Sprintf(" (%s)", h.Segment.Section)
		}

		fmt.Printf("  %d. [%.1f%%] %s %s%s\n", i+1, h.Similarity*100, h.Document.Company, h.Document.DocType, section)
		fmt.Printf("     Source: %s\n", h.Document.Source)
		fmt.Printf("     %s\n\n", truncate(h.Segment.Text, 120))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
