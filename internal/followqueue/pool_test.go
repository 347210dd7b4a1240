package followqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "followback/pkg/errors"
	"followback/pkg/github"
	"followback/pkg/logger"
	"followback/pkg/ratelimit"
)

// scriptedFollower returns canned results per login, counting calls
type scriptedFollower struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string][]followReply
}

type followReply struct {
	result github.FollowResult
	err    error
}

func newScriptedFollower() *scriptedFollower {
	return &scriptedFollower{
		calls:   make(map[string]int),
		results: make(map[string][]followReply),
	}
}

func (s *scriptedFollower) script(login string, replies ...followReply) {
	s.results[login] = replies
}

func (s *scriptedFollower) Follow(ctx context.Context, login string) (github.FollowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.calls[login]
	s.calls[login] = n + 1

	replies := s.results[login]
	if len(replies) == 0 {
		return github.FollowResult{Login: login, Outcome: github.OutcomeFollowed, StatusCode: 204}, nil
	}
	if n >= len(replies) {
		n = len(replies) - 1
	}
	return replies[n].result, replies[n].err
}

func (s *scriptedFollower) callCount(login string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[login]
}

// countingGuard records cooldown invocations
type countingGuard struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGuard) Cooldown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return nil
}

func (g *countingGuard) cooldowns() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newTestPool(client UserFollower, guard CooldownWaiter, workers, attempts int) *WorkerPool {
	pool := NewWorkerPool(
		context.Background(), workers, attempts,
		client, guard,
		ratelimit.NewTokenBucket(10000, time.Minute),
		logger.NewNopLogger(),
	)
	// Fast backoff so retry tests do not sleep for real
	pool.backoff = &fastBackoff{}
	return pool
}

type fastBackoff struct{}

func (f *fastBackoff) NextDelay(attempt int) time.Duration { return time.Millisecond }
func (f *fastBackoff) Reset()                              {}

func collectResults(t *testing.T, pool *WorkerPool, jobs []FollowJob) []Result {
	t.Helper()

	pool.Start()
	go func() {
		for _, job := range jobs {
			require.NoError(t, pool.Submit(job))
		}
	}()

	results := make([]Result, 0, len(jobs))
	for range jobs {
		select {
		case r := <-pool.Results():
			results = append(results, r)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}
	pool.Stop()
	return results
}

func TestPoolFollowsAll(t *testing.T) {
	client := newScriptedFollower()
	pool := newTestPool(client, &countingGuard{}, 3, 1)

	jobs := []FollowJob{{Login: "a", Index: 0}, {Login: "b", Index: 1}, {Login: "c", Index: 2}}
	results := collectResults(t, pool, jobs)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.True(t, r.Outcome.Followed())
		assert.Equal(t, 1, r.Attempts)
	}
}

func TestPoolNotFoundIsTerminal(t *testing.T) {
	client := newScriptedFollower()
	client.script("gone", followReply{result: github.FollowResult{Login: "gone", Outcome: github.OutcomeNotFound, StatusCode: 404}})

	pool := newTestPool(client, &countingGuard{}, 1, 3)
	results := collectResults(t, pool, []FollowJob{{Login: "gone"}})

	require.Len(t, results, 1)
	assert.Equal(t, github.OutcomeNotFound, results[0].Outcome.Outcome)
	assert.Equal(t, 1, results[0].Attempts)
	assert.Equal(t, 1, client.callCount("gone"))
}

func TestPoolRetriesNetworkErrors(t *testing.T) {
	client := newScriptedFollower()
	netErr := &errs.Error{Type: errs.ErrorTypeNetwork, Message: "connection reset"}
	client.script("flaky",
		followReply{err: netErr},
		followReply{err: netErr},
		followReply{result: github.FollowResult{Login: "flaky", Outcome: github.OutcomeFollowed, StatusCode: 204}},
	)

	pool := newTestPool(client, &countingGuard{}, 1, 3)
	results := collectResults(t, pool, []FollowJob{{Login: "flaky"}})

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.True(t, results[0].Outcome.Followed())
	assert.Equal(t, 3, results[0].Attempts)
}

func TestPoolExhaustedAttemptsKeepsLastError(t *testing.T) {
	client := newScriptedFollower()
	netErr := &errs.Error{Type: errs.ErrorTypeNetwork, Message: "connection reset"}
	client.script("down", followReply{err: netErr})

	pool := newTestPool(client, &countingGuard{}, 1, 2)
	results := collectResults(t, pool, []FollowJob{{Login: "down"}})

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, 2, results[0].Attempts)
	assert.Equal(t, 2, client.callCount("down"))
}

func TestPoolRateLimitedCoolsDownAndRetries(t *testing.T) {
	client := newScriptedFollower()
	client.script("limited",
		followReply{result: github.FollowResult{Login: "limited", Outcome: github.OutcomeRateLimited, StatusCode: 403}},
		followReply{result: github.FollowResult{Login: "limited", Outcome: github.OutcomeFollowed, StatusCode: 204}},
	)

	guard := &countingGuard{}
	pool := newTestPool(client, guard, 1, 3)
	results := collectResults(t, pool, []FollowJob{{Login: "limited"}})

	require.Len(t, results, 1)
	assert.True(t, results[0].Outcome.Followed())
	assert.Equal(t, 2, results[0].Attempts)
	assert.Equal(t, 1, guard.cooldowns())
}

func TestPoolRateLimitedHonorsRetryAfter(t *testing.T) {
	client := newScriptedFollower()
	client.script("limited",
		followReply{result: github.FollowResult{Login: "limited", Outcome: github.OutcomeRateLimited, StatusCode: 429, RetryAfter: time.Millisecond}},
		followReply{result: github.FollowResult{Login: "limited", Outcome: github.OutcomeFollowed, StatusCode: 204}},
	)

	guard := &countingGuard{}
	pool := newTestPool(client, guard, 1, 3)
	results := collectResults(t, pool, []FollowJob{{Login: "limited"}})

	require.Len(t, results, 1)
	assert.True(t, results[0].Outcome.Followed())
	// Server-specified interval takes precedence over the quota cooldown
	assert.Equal(t, 0, guard.cooldowns())
}

func TestPoolAuthErrorAborts(t *testing.T) {
	client := newScriptedFollower()
	authErr := &errs.Error{Type: errs.ErrorTypeAuth, Message: "bad token", Code: 401}
	client.script("any", followReply{err: authErr})

	pool := newTestPool(client, &countingGuard{}, 1, 3)
	results := collectResults(t, pool, []FollowJob{{Login: "any"}})

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, 1, results[0].Attempts)
	assert.Equal(t, 1, client.callCount("any"))
}

func TestResultAttempted(t *testing.T) {
	assert.False(t, Result{}.Attempted())
	assert.True(t, Result{Attempts: 1}.Attempted())
}
