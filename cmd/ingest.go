package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/ingest"
	"github.com/finsight-ai/finsight/internal/progress"
	"github.com/finsight-ai/finsight/internal/vectordb"
	"github.com/finsight-ai/finsight/internal/walker"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest filings into the document store and vector index",
	Long: `Reads filing files from a path (file or directory), segments them by
section, and embeds the segments into the vector index. Re-ingesting a
changed file bumps the document version and supersedes queued work.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("company", "", "company name (overrides detection)")
	ingestCmd.Flags().String("type", "", "document type: 10-K, 10-Q, transcript, generic")
	ingestCmd.Flags().String("date", "", "filing date, MM/DD/YYYY")
	ingestCmd.Flags().Bool("force", false, "re-ingest even if content is unchanged")
	ingestCmd.Flags().Bool("reindex", false, "rebuild the vector index from stored segments")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
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

	reindex, _ := cmd.Flags().GetBool("reindex")

	index, err := openIndex(ctx, cfg, embedder)
	if err != nil && reindex && errors.Is(err, vectordb.ErrModelMismatch) {
		// Rebuilding anyway; start from an empty index for the new model.
		index, err = vectordb.NewChromemIndex(embedder)
	}
	if err != nil {
		return err
	}

	docs := documents.NewStore(database)
	pipeline := ingest.NewPipeline(docs, index, indexDir(cfg), logger)

	if reindex {
		n, err := pipeline.Rebuild(ctx)
		if err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}
		fmt.Printf("Re-embedded %d document(s) with %s in %s\n", n, embedder.Name(), time.Since(start).Round(time.Second))
		if len(args) == 0 {
			return nil
		}
	}

	if len(args) == 0 {
		return errors.New("a path is required unless --reindex is set")
	}
	path := args[0]

	company, _ := cmd.Flags().GetString("company")
	typeFlag, _ := cmd.Flags().GetString("type")
	date, _ := cmd.Flags().GetString("date")
	force, _ := cmd.Flags().GetBool("force")

	var docType documents.DocType
	if typeFlag != "" {
		parsed, ok := documents.ParseDocType(typeFlag)
		if !ok {
			return fmt.Errorf("unknown document type %q", typeFlag)
		}
		docType = parsed
	}

	files, err := collectFiles(path, cfg.Include, cfg.Exclude)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No matching files found.")
		return nil
	}

	reporter := progress.NewReporter("Ingesting filings")
	reporter.Start(len(files))

	var ingested, skipped, failed int
	for i, f := range files {
		req := ingest.Request{
			Company:    company,
			DocType:    docType,
			FilingDate: date,
			Force:      force,
		}
		if req.DocType == "" {
			req.DocType = f.DocType
		}

		res, err := pipeline.IngestFile(ctx, f.Path, req)
		switch {
		case errors.Is(err, ingest.ErrUnchanged):
			skipped++
		case err != nil:
			failed++
			fmt.Fprintf(os.Stderr, "\n%s: %v\n", f.RelPath, err)
		default:
			ingested++
			if verbose {
				fmt.Fprintf(os.Stderr, "\n%s: %d segments (%s %s)\n",
					f.RelPath, res.SegmentCount, res.Document.Company, res.Document.DocType)
			}
		}
		reporter.Update(i+1, f.RelPath)
	}
	reporter.Finish()

	fmt.Printf("Ingested %d, skipped %d unchanged, %d failed in %s\n",
		ingested, skipped, failed, time.Since(start).Round(time.Second))
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

// collectFiles resolves a path to the filing files beneath it.
func collectFiles(path string, include, exclude []string) ([]walker.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []walker.FileInfo{{
			Path:    path,
			RelPath: path,
			Size:    info.Size(),
			DocType: walker.DetectDocType(info.Name()),
		}}, nil
	}
	return walker.Walk(walker.Config{RootDir: path, Include: include, Exclude: exclude})
}
