// Package commands implements the statements CLI with cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "statements",
		Short: "Concurrent LLM extraction over document datasets",
		Long: `statements sends every row of a dataset through a chat completion
endpoint and collects the parsed replies as JSONL.

Examples:
  statements run -c jobs/ideology.yaml
  statements run -c jobs/ideology.yaml --workers 20 --start 0 --end 500
  statements run -c jobs/ideology.yaml --dry-run
  statements endpoints`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newEndpointsCmd(),
		newVersionCmd(version),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the job file (.yaml or .toml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the job")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logs")

	return rootCmd
}
