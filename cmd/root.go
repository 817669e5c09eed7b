package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "AI-powered analysis of SEC filings and earnings call transcripts",
	Long: `Finsight ingests financial documents (10-K and 10-Q filings, earnings
call transcripts), segments and indexes them into a semantic vector
database, and uses an LLM to extract metrics, risks, sentiment, and
summaries with full traceability back to the source passages.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".finsight.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
