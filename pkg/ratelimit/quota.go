package ratelimit

import (
	"context"
	"time"

	"followback/pkg/logger"
)

// Snapshot describes the remaining upstream API quota at a point in time.
// It is stale immediately after any further API call is made.
type Snapshot struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// QuotaChecker queries the upstream API for its remaining quota
type QuotaChecker interface {
	CheckQuota(ctx context.Context) (Snapshot, error)
}

// QuotaGuard enforces a low-water-mark policy over the upstream quota: when
// the remaining quota falls below the threshold it sleeps until the reported
// reset time or a fixed fallback cooldown, whichever is larger. A failed quota
// query is treated as zero remaining, never as unlimited.
type QuotaGuard struct {
	checker      QuotaChecker
	lowWaterMark int
	fallback     time.Duration
	logger       logger.Logger

	now func() time.Time
}

// NewQuotaGuard creates a new quota guard
func NewQuotaGuard(checker QuotaChecker, lowWaterMark int, fallback time.Duration, log logger.Logger) *QuotaGuard {
	if log == nil {
		log = logger.GetLogger()
	}
	return &QuotaGuard{
		checker:      checker,
		lowWaterMark: lowWaterMark,
		fallback:     fallback,
		logger:       log,
		now:          time.Now,
	}
}

// WaitIfLow queries the remaining quota and sleeps through the cooldown window
// when it is below the low-water-mark. Returns the snapshot it acted on.
func (g *QuotaGuard) WaitIfLow(ctx context.Context) (Snapshot, error) {
	snap, err := g.checker.CheckQuota(ctx)
	if err != nil {
		// Fail soft: unknown quota means "be conservative"
		g.logger.WithError(err).Warn("Quota query failed, assuming zero remaining")
		snap = Snapshot{Remaining: 0, ResetAt: g.now().Add(g.fallback)}
	}

	if snap.Remaining >= g.lowWaterMark {
		g.logger.DebugWithFields("Quota above low-water-mark", map[string]interface{}{
			"remaining":      snap.Remaining,
			"low_water_mark": g.lowWaterMark,
		})
		return snap, nil
	}

	delay := g.cooldownFor(snap)
	g.logger.WarnWithFields("Quota below low-water-mark, cooling down", map[string]interface{}{
		"remaining":      snap.Remaining,
		"low_water_mark": g.lowWaterMark,
		"reset_at":       snap.ResetAt,
		"cooldown":       delay,
	})

	if err := sleep(ctx, delay); err != nil {
		return snap, err
	}
	return snap, nil
}

// Cooldown sleeps until the quota window reported by a fresh snapshot resets,
// used when the upstream signals exhaustion directly (403 with zero remaining).
func (g *QuotaGuard) Cooldown(ctx context.Context) error {
	snap, err := g.checker.CheckQuota(ctx)
	if err != nil {
		g.logger.WithError(err).Warn("Quota query failed during cooldown, using fallback")
		return sleep(ctx, g.fallback)
	}
	return sleep(ctx, g.cooldownFor(snap))
}

// cooldownFor computes the sleep window: until reset, or the fallback
// duration, whichever is larger
func (g *QuotaGuard) cooldownFor(snap Snapshot) time.Duration {
	untilReset := snap.ResetAt.Sub(g.now())
	if untilReset < g.fallback {
		return g.fallback
	}
	return untilReset
}

// sleep waits for the given duration or until the context is cancelled
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
