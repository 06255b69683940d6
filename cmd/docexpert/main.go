// Package main implements the docexpert CLI: a documentation expert that
// ingests markdown sources and answers questions about them over HTTP or
// one-shot from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docexpert",
	Short: "Documentation expert: ingest docs, answer questions",
	Long: `docexpert ingests markdown documentation into a vector index and
answers questions about it with documentation-grounded, labeled answers.

Configuration is read from an optional YAML file plus DOCEXPERT_* environment
variables. A .env file in the working directory is loaded if present.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		// missing .env is the common case, not an error
		_ = godotenv.Load()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("docexpert %s (commit %s, built %s)\n", version, gitCommit, buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
