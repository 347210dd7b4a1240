package github

import "time"

// Follower represents a single entry from the follower listing.
// Only the login is used by the pipeline; the remaining fields are passed
// through to the listing endpoint.
type Follower struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// FollowOutcome is the tagged result of a single follow attempt
type FollowOutcome string

const (
	// OutcomeFollowed means the follow succeeded (or was already in place)
	OutcomeFollowed FollowOutcome = "followed"
	// OutcomeNotFound means the account no longer exists; never retried
	OutcomeNotFound FollowOutcome = "not_found"
	// OutcomeForbidden means the follow was refused without a rate-limit
	// indicator; never retried
	OutcomeForbidden FollowOutcome = "forbidden"
	// OutcomeRateLimited means the upstream signalled quota exhaustion;
	// retryable after the cooldown window
	OutcomeRateLimited FollowOutcome = "rate_limited"
	// OutcomeFailed covers any other non-success status; never retried
	OutcomeFailed FollowOutcome = "failed"
)

// FollowResult carries the interpreted outcome of a follow call
type FollowResult struct {
	Login      string
	Outcome    FollowOutcome
	StatusCode int
	// RetryAfter is the server-specified retry interval for OutcomeRateLimited
	// responses that carried one (zero otherwise)
	RetryAfter time.Duration
}

// Followed reports whether the attempt confirmed the follow
func (r FollowResult) Followed() bool {
	return r.Outcome == OutcomeFollowed
}

// rateLimitResponse mirrors the GET /rate_limit payload
type rateLimitResponse struct {
	Resources struct {
		Core struct {
			Limit     int   `json:"limit"`
			Remaining int   `json:"remaining"`
			Reset     int64 `json:"reset"`
		} `json:"core"`
	} `json:"resources"`
}
