package followqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	errs "followback/pkg/errors"
	"followback/pkg/github"
	"followback/pkg/logger"
	"followback/pkg/ratelimit"
	"followback/pkg/retry"
)

// FollowJob represents a single follow task. Index preserves the job's
// position within its batch so results can be applied in listing order.
type FollowJob struct {
	Login string
	Index int
}

// Result represents the outcome of a follow job after retries
type Result struct {
	Job      FollowJob
	Outcome  github.FollowResult
	Err      error
	Attempts int
	Duration time.Duration
}

// Attempted reports whether the job reached the API at all. Jobs that failed
// on a fatal error before any attempt completed are not attempted.
func (r Result) Attempted() bool {
	return r.Attempts > 0
}

// UserFollower issues a single follow call
type UserFollower interface {
	Follow(ctx context.Context, login string) (github.FollowResult, error)
}

// CooldownWaiter sleeps through an upstream quota-exhaustion window
type CooldownWaiter interface {
	Cooldown(ctx context.Context) error
}

// WorkerPool manages concurrent follow workers. Each worker paces itself
// through the shared rate limiter and applies the per-job retry policy before
// reporting a result.
type WorkerPool struct {
	numWorkers  int
	maxAttempts int
	jobQueue    chan FollowJob
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      UserFollower
	guard       CooldownWaiter
	rateLimiter ratelimit.Limiter
	backoff     retry.BackoffStrategy
	logger      logger.Logger
}

// NewWorkerPool creates a new follow worker pool
func NewWorkerPool(
	parent context.Context,
	numWorkers int,
	maxAttempts int,
	client UserFollower,
	guard CooldownWaiter,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(parent)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		maxAttempts: maxAttempts,
		jobQueue:    make(chan FollowJob, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		guard:       guard,
		rateLimiter: rateLimiter,
		backoff:     retry.DefaultExponentialBackoff(),
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	logger.LogComponentStart(wp.logger, "follow worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop gracefully shuts down the worker pool
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	logger.LogComponentStop(wp.logger, "follow worker pool", "queue drained")
}

// Submit adds a new follow job to the queue
func (wp *WorkerPool) Submit(job FollowJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming follow results
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob runs one follow job through the retry policy:
//
//   - not found, forbidden without a rate-limit indicator, and other
//     non-success statuses are terminal on the first attempt
//   - a rate-limited outcome sleeps through the server-specified interval, or
//     the quota cooldown when none was given, then retries
//   - network and server errors back off exponentially and retry
//   - auth errors abort immediately and surface to the caller
//
// Exhausting the attempt budget yields a failed result, never an error that
// tears down the run.
func (wp *WorkerPool) processJob(job FollowJob, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	for attempt := 1; attempt <= wp.maxAttempts; attempt++ {
		if !wp.rateLimiter.Allow() {
			wp.rateLimiter.Wait()
		}

		outcome, err := wp.client.Follow(wp.ctx, job.Login)
		result.Attempts = attempt
		result.Outcome = outcome

		if err != nil {
			var apiErr *errs.Error
			if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeAuth {
				result.Err = err
				break
			}
			if wp.ctx.Err() != nil {
				result.Err = wp.ctx.Err()
				break
			}

			result.Err = err
			if attempt == wp.maxAttempts {
				break
			}

			delay := wp.backoff.NextDelay(attempt)
			wp.logger.WarnWithFields("Follow attempt failed, backing off", map[string]interface{}{
				"worker_id": workerID,
				"login":     job.Login,
				"attempt":   attempt,
				"error":     err.Error(),
				"delay":     delay,
			})
			if err := retry.Wait(wp.ctx, delay); err != nil {
				result.Err = err
				break
			}
			continue
		}

		result.Err = nil

		if outcome.Outcome != github.OutcomeRateLimited {
			break
		}
		if attempt == wp.maxAttempts {
			break
		}

		wp.logger.WarnWithFields("Follow rate limited, cooling down", map[string]interface{}{
			"worker_id":   workerID,
			"login":       job.Login,
			"attempt":     attempt,
			"retry_after": outcome.RetryAfter,
		})

		var waitErr error
		if outcome.RetryAfter > 0 {
			waitErr = retry.Wait(wp.ctx, outcome.RetryAfter)
		} else {
			waitErr = wp.guard.Cooldown(wp.ctx)
		}
		if waitErr != nil {
			result.Err = waitErr
			break
		}
	}

	result.Duration = time.Since(start)
	return result
}

// QueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}
