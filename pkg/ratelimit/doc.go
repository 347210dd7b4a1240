// Package ratelimit provides rate limiting functionality for the follow-back bot.
//
// Two cooperating mechanisms are implemented:
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Paces locally issued API calls to stay under abuse-detection thresholds
//
// Quota Guard:
//   - Queries the upstream rate-limit endpoint for the remaining quota
//   - Sleeps until the reported reset time (or a fallback cooldown, whichever
//     is larger) when the remaining quota falls below a low-water-mark
//   - Fails soft: a failed quota query is treated as zero remaining
//
// Usage:
//
//	limiter := ratelimit.NewTokenBucket(60, time.Minute)
//	if limiter.Allow() {
//		// proceed with request
//	}
//
//	guard := ratelimit.NewQuotaGuard(client, 100, time.Minute, log)
//	if _, err := guard.WaitIfLow(ctx); err != nil {
//		return err
//	}
package ratelimit
