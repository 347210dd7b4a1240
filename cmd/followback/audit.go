package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"followback/pkg/audit"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report follow coverage without performing any follows",
	Long: `Compare the live follower count against the bot's persisted state.

The report shows how many followers exist, how many the bot has followed, how
many remain, and how many of those the current rate-limit window could absorb.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runAudit()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAudit() {
	a, err := newApp(nil)
	if err != nil {
		fail("failed to initialize", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := audit.New(a.client, a.store, a.logger).Run(ctx)
	if err != nil {
		fail("audit failed", err)
	}

	fmt.Printf("Total followers:  %d\n", report.TotalFollowers)
	fmt.Printf("Followed:         %d\n", report.Followed)
	fmt.Printf("Left to follow:   %d\n", report.LeftToFollow)
	fmt.Printf("Lifetime total:   %d\n", report.CounterTotal)
	fmt.Printf("Quota remaining:  %d/%d\n", report.QuotaRemaining, report.QuotaLimit)
	fmt.Printf("Can follow now:   %d\n", report.CanFollowNow)
}
