package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffGrowth(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0,
	}

	assert.Equal(t, time.Duration(0), eb.NextDelay(0))
	assert.Equal(t, time.Second, eb.NextDelay(1))
	assert.Equal(t, 2*time.Second, eb.NextDelay(2))
	assert.Equal(t, 4*time.Second, eb.NextDelay(3))
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0,
	}

	assert.Equal(t, 5*time.Second, eb.NextDelay(10))
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}

	for i := 0; i < 50; i++ {
		delay := eb.NextDelay(2)
		assert.GreaterOrEqual(t, delay, time.Second)
		assert.LessOrEqual(t, delay, 3*time.Second)
	}
}

func TestLinearBackoff(t *testing.T) {
	lb := &LinearBackoff{
		BaseDelay: time.Second,
		Increment: 2 * time.Second,
		MaxDelay:  6 * time.Second,
	}

	assert.Equal(t, time.Duration(0), lb.NextDelay(0))
	assert.Equal(t, time.Second, lb.NextDelay(1))
	assert.Equal(t, 3*time.Second, lb.NextDelay(2))
	assert.Equal(t, 5*time.Second, lb.NextDelay(3))
	assert.Equal(t, 6*time.Second, lb.NextDelay(4))
}

func TestConstantBackoff(t *testing.T) {
	cb := &ConstantBackoff{Delay: 5 * time.Second}

	assert.Equal(t, time.Duration(0), cb.NextDelay(0))
	assert.Equal(t, 5*time.Second, cb.NextDelay(1))
	assert.Equal(t, 5*time.Second, cb.NextDelay(9))
}

func TestWaitZeroDelay(t *testing.T) {
	start := time.Now()
	err := Wait(context.Background(), 0)
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorTypeBackoffSelection(t *testing.T) {
	etb := NewErrorTypeBackoff()

	assert.Same(t, etb.NetworkErrorBackoff, etb.GetBackoffForError("network"))
	assert.Same(t, etb.RateLimitBackoff, etb.GetBackoffForError("rate_limit"))
	assert.Same(t, etb.ServerErrorBackoff, etb.GetBackoffForError("server_error"))
	assert.Same(t, etb.DefaultBackoff, etb.GetBackoffForError("parsing"))
}
