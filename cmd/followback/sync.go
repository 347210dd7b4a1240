package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"followback/pkg/pipeline"
)

var (
	// Sync command flags
	batchSize  int
	concurrent int
	maxRetries int
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one follow-back pass over the follower listing",
	Long: `Run one incremental follow-back pass.

The pass fetches the follower listing newest-first, stops at the follower that
was processed last time, then follows every newer arrival oldest-first in rate
limited batches. State is persisted after every batch.`,
	Example: `  # Run a pass with default settings
  followback sync

  # Smaller batches, single worker
  followback sync --batch-size 10 --concurrent 1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runSync()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().IntVar(&batchSize, "batch-size", 30, "followers processed per batch")
	syncCmd.Flags().IntVar(&concurrent, "concurrent", 5, "concurrent follow workers")
	syncCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "retry attempts per follow")
}

func runSync() {
	flags := make(map[string]interface{})
	if batchSize != 30 {
		flags["batch-size"] = batchSize
	}
	if concurrent != 5 {
		flags["concurrent"] = concurrent
	}
	if maxRetries != 3 {
		flags["max-retries"] = maxRetries
	}

	a, err := newApp(flags)
	if err != nil {
		fail("failed to initialize", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.WithField("version", version).Info("Followback starting")

	p := pipeline.New(a.client, a.store, a.guard, a.limiter, &a.cfg.Sync, a.logger)
	summary, err := p.Run(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Sync run failed")
		fail("sync failed", err)
	}

	fmt.Printf("Pages scanned:   %d\n", summary.PagesScanned)
	fmt.Printf("New followers:   %d\n", summary.NewFollowers)
	fmt.Printf("Followed:        %d\n", summary.Followed)
	fmt.Printf("Failed:          %d\n", summary.Failed)
	fmt.Printf("Lifetime total:  %d\n", summary.CounterTotal)
	if summary.CursorMissed {
		fmt.Println("Note: the previous cursor was not found in the listing")
	}
}
