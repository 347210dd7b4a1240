// Package audit reports how far the bot has gotten through the full follower
// listing, without performing any follow actions.
package audit

import (
	"context"
	"fmt"

	"followback/pkg/logger"
	"followback/pkg/ratelimit"
	"followback/pkg/state"
)

// CountAPI is the slice of the GitHub client the auditor needs
type CountAPI interface {
	TotalFollowers(ctx context.Context) (int, error)
	CheckQuota(ctx context.Context) (ratelimit.Snapshot, error)
}

// Report summarizes follow coverage against the live follower count
type Report struct {
	TotalFollowers int
	Followed       int
	LeftToFollow   int
	CounterTotal   int
	QuotaRemaining int
	QuotaLimit     int
	// CanFollowNow is how many of the remaining follows the current quota
	// window could absorb
	CanFollowNow int
}

// Auditor computes coverage reports
type Auditor struct {
	client CountAPI
	store  *state.Store
	logger logger.Logger
}

// New creates an auditor
func New(client CountAPI, store *state.Store, log logger.Logger) *Auditor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Auditor{client: client, store: store, logger: log}
}

// Run queries the live follower count and the remaining quota and compares
// them against the persisted state
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	total, err := a.client.TotalFollowers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count followers: %w", err)
	}

	followed, err := a.store.FollowedSet()
	if err != nil {
		return nil, fmt.Errorf("failed to load followed set: %w", err)
	}

	counter, err := a.store.Counter()
	if err != nil {
		return nil, fmt.Errorf("failed to load counter: %w", err)
	}

	report := &Report{
		TotalFollowers: total,
		Followed:       len(followed),
		CounterTotal:   counter,
	}
	report.LeftToFollow = total - len(followed)
	if report.LeftToFollow < 0 {
		// Unfollows can shrink the live listing below what the bot recorded
		report.LeftToFollow = 0
	}

	snap, err := a.client.CheckQuota(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Quota query failed, reporting zero headroom")
		snap = ratelimit.Snapshot{}
	}
	report.QuotaRemaining = snap.Remaining
	report.QuotaLimit = snap.Limit

	report.CanFollowNow = report.LeftToFollow
	if snap.Remaining < report.CanFollowNow {
		report.CanFollowNow = snap.Remaining
	}

	a.logger.InfoWithFields("Audit complete", map[string]interface{}{
		"total_followers": report.TotalFollowers,
		"followed":        report.Followed,
		"left_to_follow":  report.LeftToFollow,
		"quota_remaining": report.QuotaRemaining,
		"can_follow_now":  report.CanFollowNow,
	})

	return report, nil
}
