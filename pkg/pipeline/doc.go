// Package pipeline implements the incremental follow-back sync.
//
// A run proceeds in phases: scan the follower listing newest-first until the
// persisted cursor login appears (or the listing ends), diff the collected
// prefix against the followed set, reverse it to oldest-first, then follow in
// rate limited batches with a pause between consecutive batches. After every
// batch the followed set, counter, and cursor are persisted, so an
// interrupted run resumes where it stopped and a completed run is idempotent.
package pipeline
