// Command docsearch builds an index from a search_index.js payload and
// queries it locally, or publishes the payload to running searchd nodes.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "docsearch",
	Short:         "Documentation search index tool",
	Long:          "Build, query and publish documentation search indexes from Documenter search_index.js payloads.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var logLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(newSearchCmd(), newInspectCmd(), newPublishCmd(), newKeysCmd())
}

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
