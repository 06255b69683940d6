package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path|url>...",
	Short: "Ingest documentation sources",
	Long: `Ingest markdown documentation into the vector index and chunk catalog.
Targets may be local files, directories (walked for .md files) or HTTP URLs.
Re-ingesting a source replaces its previous chunks.

Examples:
  # Ingest a docs directory
  docexpert ingest ./docs

  # Ingest a single page from the web
  docexpert ingest https://doc.mapeditor.org/en/stable/manual/editing-tilesets/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ingester.IngestAll(cmd.Context(), args); err != nil {
		return fmt.Errorf("ingestion finished with errors: %w", err)
	}
	fmt.Println("ingestion complete")
	return nil
}
