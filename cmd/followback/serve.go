package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"followback/pkg/web"
)

var serverAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the follower listing over a read-only HTTP endpoint",
	Long: `Start an HTTP server that materializes the live follower listing.

GET /followers returns the entire listing as a JSON array, newest first.
GET /healthz reports liveness.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runServe()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "addr", "", "listen address (default :8080)")
}

func runServe() {
	flags := make(map[string]interface{})
	if serverAddr != "" {
		flags["addr"] = serverAddr
	}

	a, err := newApp(flags)
	if err != nil {
		fail("failed to initialize", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(&a.cfg.Server, a.client, a.cfg.Sync.PerPage, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		a.logger.WithError(err).Error("Server stopped with error")
		fail("server failed", err)
	}

	a.logger.Info("Server stopped")
}
