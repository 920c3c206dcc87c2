package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sandscript",
	Short: "Sandboxed script execution service",
	Long: `Sandscript runs untrusted scripts inside pooled, policy-hardened
interpreters.

Available commands:
  serve    Start the HTTP execution service
  run      Execute a single script file locally
  version  Print the version number

Use "sandscript [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
