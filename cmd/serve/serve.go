// Package serve implements the command running the HTTP API and the status watcher.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webalive/deployer/app"
	"github.com/webalive/deployer/web"
)

// NewCmdServe creates a command to run the HTTP API and the status watcher
func NewCmdServe() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the deployer server (HTTP API + status watcher)",
		Long:  "Starts the HTTP API and the site status watcher in a single process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	config := app.GetConfig()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Handle shutdown signals
	go handleShutdown(cancel)

	// Start watcher service in background
	go func() {
		if err := app.GetWatcherService().Start(ctx); err != nil {
			slog.Error("Watcher service failed", "error", err)
			cancel() // Trigger shutdown
		}
	}()

	handlers := web.NewSiteHandlers(
		config,
		app.GetSiteManager(),
		app.GetSiteRepository(),
		app.GetDeploymentRepository(),
	)
	server := web.NewServer(config, handlers)

	slog.Info("Server starting", "address", fmt.Sprintf("http://%s", server.Addr()))
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running server: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}

// handleShutdown handles OS signals for graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	slog.Info("Shutdown signal received")
	cancel()
}
