package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapwright/docexpert/internal/httpapi"
	"github.com/mapwright/docexpert/internal/ingest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docexpert HTTP server",
	Long: `Start the HTTP API server. If ingest.docs_dir is configured with
ingest.watch enabled, changed markdown files are re-ingested automatically.

Examples:
  # Start with defaults
  docexpert serve

  # Start with a config file
  docexpert serve --config /etc/docexpert/config.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := httpapi.NewServer(a.synth, a.store, a.catalog, a.cfg.Server, a.logger)
	if err != nil {
		return err
	}

	if a.cfg.Ingest.Watch {
		watcher, err := ingest.NewWatcher(a.ingester, a.logger)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error(ctx, "docs watcher stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info(context.Background(), "shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
