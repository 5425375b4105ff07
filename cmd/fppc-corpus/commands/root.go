// Package commands implements the fppc-corpus CLI's subcommands, following
// cmd/orchestrator/commands' root-command-plus-per-subcommand-file layout
// from the same monorepo as the teacher.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	noColor bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fppc-corpus",
	Short: "Build and verify the FPPC advice-letter corpus",
	Long: `fppc-corpus drives the advice-letter pipeline end to end: crawling the
catalog, fetching PDFs, extracting structured records, synthesising
sections with an LLM, and verifying transcription fidelity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config YAML file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
