package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finsight-ai/finsight/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize finsight configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure finsight for your workspace and generates a .finsight.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, _ := cmd.Flags().GetBool("defaults")
		if defaults {
			cfg := config.DefaultConfig()
			if err := cfg.Save(cfgFile); err != nil {
				return err
			}
			fmt.Printf("Wrote default configuration to %s\n", cfgFile)
			return nil
		}
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	initCmd.Flags().Bool("defaults", false, "write the default configuration without prompting")
	rootCmd.AddCommand(initCmd)
}
