package github

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// DefaultBaseURL is the base URL for the GitHub REST API
	DefaultBaseURL = "https://api.github.com"

	// AcceptHeader is the media type for the v3 REST API
	AcceptHeader = "application/vnd.github.v3+json"

	// MaxPerPage is the maximum page size the followers listing accepts
	MaxPerPage = 100
)

// FollowersURL constructs the URL for one page of a user's follower listing
func FollowersURL(baseURL, username string, page, perPage int) string {
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	return fmt.Sprintf("%s/users/%s/followers?%s", baseURL, url.PathEscape(username), params.Encode())
}

// FollowingURL constructs the URL for the idempotent follow PUT
func FollowingURL(baseURL, login string) string {
	return fmt.Sprintf("%s/user/following/%s", baseURL, url.PathEscape(login))
}

// RateLimitURL constructs the URL of the rate-limit metadata endpoint
func RateLimitURL(baseURL string) string {
	return baseURL + "/rate_limit"
}

// SanitizeLogin removes a leading @ and trailing slashes or spaces from a login
func SanitizeLogin(login string) string {
	if login == "" {
		return ""
	}

	if login[0] == '@' {
		login = login[1:]
	}

	for len(login) > 0 && (login[len(login)-1] == '/' || login[len(login)-1] == ' ') {
		login = login[:len(login)-1]
	}

	return login
}
