package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "manus",
	Short: "Multi-agent task delegation engine",
	Long: `Manus routes natural-language tasks to specialist agents: research,
coding, stock screening, technical analysis, and fundamental analysis.

Tasks are classified into capability tags, matched against the agent
fleet's declared capabilities and current load, and executed through
language-model and market-data collaborators. Agents can fan work out
into sub-tasks and merge the results.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
