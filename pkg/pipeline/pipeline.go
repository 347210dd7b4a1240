package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"followback/internal/followqueue"
	"followback/pkg/config"
	errs "followback/pkg/errors"
	"followback/pkg/github"
	"followback/pkg/logger"
	"followback/pkg/ratelimit"
	"followback/pkg/retry"
	"followback/pkg/state"
)

// FollowerAPI is the slice of the GitHub client the pipeline needs
type FollowerAPI interface {
	ListFollowers(ctx context.Context, page, perPage int) ([]github.Follower, error)
	Follow(ctx context.Context, login string) (github.FollowResult, error)
}

// QuotaWaiter gates API bursts on the remaining upstream quota
type QuotaWaiter interface {
	WaitIfLow(ctx context.Context) (ratelimit.Snapshot, error)
	Cooldown(ctx context.Context) error
}

// Summary reports what a single sync run did
type Summary struct {
	PagesScanned  int
	Scanned       int
	NewFollowers  int
	AlreadySeen   int
	Followed      int
	Failed        int
	Batches       int
	SentinelFound bool
	Exhausted     bool
	CursorMissed  bool
	Cursor        string
	CounterTotal  int
	Duration      time.Duration
}

// Pipeline runs one incremental sync: fetch follower pages newest-first until
// the persisted cursor (or the end of the listing), diff the collected prefix
// against the followed set, then follow the remainder oldest-first in rate
// limited batches, persisting progress after every batch.
type Pipeline struct {
	client  FollowerAPI
	store   *state.Store
	guard   QuotaWaiter
	limiter ratelimit.Limiter
	cfg     *config.SyncConfig
	logger  logger.Logger

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a sync pipeline
func New(
	client FollowerAPI,
	store *state.Store,
	guard QuotaWaiter,
	limiter ratelimit.Limiter,
	cfg *config.SyncConfig,
	log logger.Logger,
) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Pipeline{
		client:  client,
		store:   store,
		guard:   guard,
		limiter: limiter,
		cfg:     cfg,
		logger:  log,
		sleep:   retry.Wait,
	}
}

// Run executes one sync pass. It is safe to re-run immediately: a run that
// finds no followers past the cursor performs no follow calls and leaves the
// state untouched.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	cursor, err := p.store.Cursor()
	if err != nil {
		return summary, fmt.Errorf("failed to load cursor: %w", err)
	}
	followed, err := p.store.FollowedSet()
	if err != nil {
		return summary, fmt.Errorf("failed to load followed set: %w", err)
	}

	p.logger.InfoWithFields("Starting sync run", map[string]interface{}{
		"cursor":        cursor,
		"followed_seen": len(followed),
	})

	recent, err := p.scan(ctx, cursor, summary)
	if err != nil {
		return summary, err
	}

	summary.CursorMissed = cursor != "" && !summary.SentinelFound
	if summary.CursorMissed {
		p.logger.WarnWithFields("Cursor not found in follower listing", map[string]interface{}{
			"cursor": cursor,
			"policy": p.cfg.OnCursorMiss,
		})
		if p.cfg.OnCursorMiss == config.CursorMissSkip {
			summary.Cursor = cursor
			summary.Duration = time.Since(start)
			return summary, nil
		}
	}

	pending := p.diff(recent, followed, summary)
	if len(pending) == 0 {
		p.logger.Info("No new followers to process")
		summary.Cursor = cursor
		summary.CounterTotal, _ = p.store.Counter()
		summary.Duration = time.Since(start)
		return summary, nil
	}

	// Oldest first, so an interrupted run leaves the cursor on a follower
	// older than everyone still unprocessed
	reverse(pending)

	p.logger.InfoWithFields("Processing new followers", map[string]interface{}{
		"count":      len(pending),
		"batch_size": p.cfg.BatchSize,
	})

	if err := p.followAll(ctx, pending, summary); err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}

	summary.CounterTotal, _ = p.store.Counter()
	summary.Duration = time.Since(start)

	p.logger.InfoWithFields("Sync run complete", map[string]interface{}{
		"pages_scanned": summary.PagesScanned,
		"new_followers": summary.NewFollowers,
		"followed":      summary.Followed,
		"failed":        summary.Failed,
		"counter_total": summary.CounterTotal,
		"duration":      summary.Duration,
	})

	return summary, nil
}

// scan walks the follower listing from page one, newest first, collecting
// entries until it hits the cursor login or runs out of pages. A page shorter
// than the requested size is the last page.
func (p *Pipeline) scan(ctx context.Context, cursor string, summary *Summary) ([]github.Follower, error) {
	var recent []github.Follower
	page := 1

	for {
		if err := p.store.SetCurrentPage(page); err != nil {
			p.logger.WithError(err).Warn("Failed to record current page")
		}

		followers, err := p.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch followers page %d: %w", page, err)
		}

		summary.PagesScanned++
		summary.Scanned += len(followers)

		for _, f := range followers {
			if cursor != "" && f.Login == cursor {
				summary.SentinelFound = true
				p.logger.DebugWithFields("Cursor reached", map[string]interface{}{
					"cursor": cursor,
					"page":   page,
				})
				return recent, nil
			}
			recent = append(recent, f)
		}

		if len(followers) < p.cfg.PerPage {
			summary.Exhausted = true
			return recent, nil
		}

		page++
	}
}

// fetchPage fetches one follower page with retries. Auth and parsing errors
// are terminal; network and server errors back off and retry.
func (p *Pipeline) fetchPage(ctx context.Context, page int) ([]github.Follower, error) {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = p.cfg.MaxRetries
	cfg.Context = ctx
	cfg.Logger = p.logger

	return retry.DoWithResult(func() ([]github.Follower, error) {
		return p.client.ListFollowers(ctx, page, p.cfg.PerPage)
	}, cfg)
}

// diff drops entries already in the followed set and duplicates within the
// fetched prefix, newest first order preserved
func (p *Pipeline) diff(recent []github.Follower, followed map[string]bool, summary *Summary) []github.Follower {
	seen := make(map[string]bool, len(recent))
	var pending []github.Follower

	for _, f := range recent {
		if seen[f.Login] {
			continue
		}
		seen[f.Login] = true

		if followed[f.Login] {
			summary.AlreadySeen++
			continue
		}
		pending = append(pending, f)
	}

	summary.NewFollowers = len(pending)
	return pending
}

// followAll partitions pending followers into batches and runs each through
// the worker pool. State is persisted after every batch: successful follows
// are appended to the followed set, the counter advances by the success count,
// and the cursor moves to the last login an attempt was made for, whether or
// not it succeeded.
func (p *Pipeline) followAll(ctx context.Context, pending []github.Follower, summary *Summary) error {
	batches := partition(pending, p.cfg.BatchSize)
	summary.Batches = len(batches)
	processed := 0

	for i, batch := range batches {
		if _, err := p.guard.WaitIfLow(ctx); err != nil {
			return fmt.Errorf("quota guard interrupted: %w", err)
		}

		p.logger.InfoWithFields("Processing batch", map[string]interface{}{
			"batch":   i + 1,
			"batches": len(batches),
			"size":    len(batch),
		})

		results, err := p.runBatch(ctx, batch)

		applyErr := p.apply(batch, results, summary)
		if applyErr != nil {
			return applyErr
		}
		if err != nil {
			return err
		}

		processed += len(batch)
		logger.LogSyncProgress(p.logger, processed, len(pending))

		// Pause between batches, never after the last one
		if i < len(batches)-1 {
			if err := p.sleep(ctx, p.cfg.InterBatchDelay); err != nil {
				return fmt.Errorf("inter-batch delay interrupted: %w", err)
			}
		}
	}

	return nil
}

// runBatch fans one batch out over the worker pool and collects the results
// back into batch order. A fatal worker error is returned alongside whatever
// results completed, so the caller can persist partial progress.
func (p *Pipeline) runBatch(ctx context.Context, batch []github.Follower) ([]*followqueue.Result, error) {
	workers := p.cfg.ConcurrentFollows
	if workers > len(batch) {
		workers = len(batch)
	}

	pool := followqueue.NewWorkerPool(ctx, workers, p.cfg.MaxRetries, p.client, p.guard, p.limiter, p.logger)
	pool.Start()

	submitDone := make(chan struct{})
	go func() {
		defer close(submitDone)
		for idx, f := range batch {
			if err := pool.Submit(followqueue.FollowJob{Login: f.Login, Index: idx}); err != nil {
				return
			}
		}
	}()

	results := make([]*followqueue.Result, len(batch))
	var fatal error

	for received := 0; received < len(batch); received++ {
		select {
		case r := <-pool.Results():
			result := r
			results[result.Job.Index] = &result

			var apiErr *errs.Error
			if result.Err != nil && errors.As(result.Err, &apiErr) && apiErr.Type == errs.ErrorTypeAuth {
				fatal = fmt.Errorf("follow %s: %w", result.Job.Login, result.Err)
			}
		case <-ctx.Done():
			// Submit returns promptly once the context is cancelled; the
			// queue must not be closed under it
			<-submitDone
			pool.Stop()
			return results, ctx.Err()
		}
	}

	<-submitDone
	pool.Stop()
	return results, fatal
}

// apply walks one batch's results in listing order and persists them: the
// followed set and counter advance on successes, the cursor on every attempt.
// The cursor only moves through the contiguous prefix of attempted entries: an
// interrupted batch can finish a newer entry while an older one is still in
// flight, and the cursor must not cross the unresolved entry or the next run's
// sentinel scan would never reach it.
func (p *Pipeline) apply(batch []github.Follower, results []*followqueue.Result, summary *Summary) error {
	successes := 0
	lastAttempted := ""
	gap := false

	for i, f := range batch {
		r := results[i]
		if r == nil || !r.Attempted() {
			gap = true
			continue
		}
		if !gap {
			lastAttempted = f.Login
		}

		if r.Err == nil && r.Outcome.Followed() {
			if err := p.store.AppendFollowed(f.Login); err != nil {
				return fmt.Errorf("failed to record follow of %s: %w", f.Login, err)
			}
			successes++
			continue
		}

		summary.Failed++
		p.logger.WarnWithFields("Follower not followed", map[string]interface{}{
			"login":    f.Login,
			"outcome":  string(r.Outcome.Outcome),
			"status":   r.Outcome.StatusCode,
			"attempts": r.Attempts,
		})
	}

	summary.Followed += successes

	if successes > 0 {
		if _, err := p.store.IncrementCounter(successes); err != nil {
			return fmt.Errorf("failed to advance counter: %w", err)
		}
	}
	if lastAttempted != "" {
		if err := p.store.SetCursor(lastAttempted); err != nil {
			return fmt.Errorf("failed to advance cursor: %w", err)
		}
		summary.Cursor = lastAttempted
	}

	return nil
}

// partition splits followers into consecutive batches of at most size
func partition(followers []github.Follower, size int) [][]github.Follower {
	if size <= 0 {
		size = len(followers)
	}

	var batches [][]github.Follower
	for start := 0; start < len(followers); start += size {
		end := start + size
		if end > len(followers) {
			end = len(followers)
		}
		batches = append(batches, followers[start:end])
	}
	return batches
}

// reverse flips a follower slice in place
func reverse(followers []github.Follower) {
	for i, j := 0, len(followers)-1; i < j; i, j = i+1, j-1 {
		followers[i], followers[j] = followers[j], followers[i]
	}
}
