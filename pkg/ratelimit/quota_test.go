package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followback/pkg/logger"
)

// fakeChecker returns a scripted snapshot
type fakeChecker struct {
	snap  Snapshot
	err   error
	calls int
}

func (f *fakeChecker) CheckQuota(ctx context.Context) (Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

func TestWaitIfLowAboveMark(t *testing.T) {
	checker := &fakeChecker{snap: Snapshot{Remaining: 500, Limit: 5000}}
	guard := NewQuotaGuard(checker, 100, time.Minute, logger.NewNopLogger())

	start := time.Now()
	snap, err := guard.WaitIfLow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 500, snap.Remaining)
	assert.Equal(t, 1, checker.calls)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitIfLowBelowMarkSleepsUntilReset(t *testing.T) {
	resetAt := time.Now().Add(20 * time.Millisecond)
	checker := &fakeChecker{snap: Snapshot{Remaining: 5, Limit: 5000, ResetAt: resetAt}}
	guard := NewQuotaGuard(checker, 100, 10*time.Millisecond, logger.NewNopLogger())

	start := time.Now()
	snap, err := guard.WaitIfLow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, snap.Remaining)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestWaitIfLowUsesFallbackWhenResetPassed(t *testing.T) {
	checker := &fakeChecker{snap: Snapshot{Remaining: 0, ResetAt: time.Now().Add(-time.Minute)}}
	guard := NewQuotaGuard(checker, 100, 20*time.Millisecond, logger.NewNopLogger())

	start := time.Now()
	_, err := guard.WaitIfLow(context.Background())

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestWaitIfLowFailsSoft(t *testing.T) {
	// A failed quota query counts as zero remaining, never as unlimited
	checker := &fakeChecker{err: errors.New("boom")}
	guard := NewQuotaGuard(checker, 100, 20*time.Millisecond, logger.NewNopLogger())

	start := time.Now()
	snap, err := guard.WaitIfLow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, snap.Remaining)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestWaitIfLowCancelled(t *testing.T) {
	checker := &fakeChecker{snap: Snapshot{Remaining: 0, ResetAt: time.Now().Add(time.Hour)}}
	guard := NewQuotaGuard(checker, 100, time.Hour, logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := guard.WaitIfLow(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCooldown(t *testing.T) {
	checker := &fakeChecker{snap: Snapshot{Remaining: 0, ResetAt: time.Now().Add(15 * time.Millisecond)}}
	guard := NewQuotaGuard(checker, 100, 5*time.Millisecond, logger.NewNopLogger())

	start := time.Now()
	err := guard.Cooldown(context.Background())

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestCooldownFallbackOnError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("boom")}
	guard := NewQuotaGuard(checker, 100, 15*time.Millisecond, logger.NewNopLogger())

	start := time.Now()
	err := guard.Cooldown(context.Background())

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}
