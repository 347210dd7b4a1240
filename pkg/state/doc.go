// Package state persists the bot's sync state between runs.
//
// Four plain-text files live in the state directory:
//
//   - last_checked_follower.txt: login of the most recently processed follower
//   - followers.txt: append-only set of logins the bot has followed
//   - follower_counter.txt: lifetime count of successful follows
//   - current_page.txt: last pagination page, recorded for diagnosis only
//
// Scalar files are replaced atomically (temp file plus rename) so an
// interrupted write never leaves a partial value behind.
package state
