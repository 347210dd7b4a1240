// Package retry provides exponential backoff and retry logic for handling
// transient failures in network operations, particularly for GitHub API calls.
//
// Features:
//   - Multiple backoff strategies (exponential, constant)
//   - Jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Error-type specific backoff strategies
//   - Configurable retry predicates
//   - Integration with the GitHub client error types
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		_, err := client.ListFollowers(ctx, 1, 100)
//		return err
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    2 * time.Second,
//			MaxDelay:     30 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	err := retry.Do(op, cfg)
package retry
