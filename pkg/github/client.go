package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"followback/pkg/config"
	errs "followback/pkg/errors"
	"followback/pkg/logger"
	"followback/pkg/ratelimit"
)

// Client is a GitHub REST API client scoped to the follower-listing and
// follow-action resources the bot needs
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	username   string
	logger     logger.Logger
}

// NewClient creates a new GitHub API client
func NewClient(cfg *config.GitHubConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	username := SanitizeLogin(cfg.Username)

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = fmt.Sprintf("%s-followback-bot", username)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		headers: map[string]string{
			"Authorization": fmt.Sprintf("token %s", cfg.Token),
			"Accept":        AcceptHeader,
			"User-Agent":    userAgent,
		},
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		logger:   log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Username returns the account the client is configured for
func (c *Client) Username() string {
	return c.username
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, float64(duration.Milliseconds()))

	return resp, nil
}

// get performs a GET request to the specified URL
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Code:    0,
		}
	}

	return c.doRequest(req)
}

// getJSON performs a GET request and decodes the JSON response
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return nil
}

// checkResponseStatus checks the HTTP response status and returns appropriate errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case http.StatusForbidden:
		if isRateLimitExhausted(resp) {
			c.logger.WarnWithFields("rate limit exhausted", map[string]interface{}{
				"status": resp.StatusCode,
				"url":    resp.Request.URL.String(),
			})
			return &errs.Error{
				Type:    errs.ErrorTypeRateLimit,
				Message: "rate limit exhausted",
				Code:    resp.StatusCode,
			}
		}
		c.logger.WarnWithFields("request forbidden", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeForbidden,
			Message: "request forbidden",
			Code:    resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		if resp.StatusCode >= 400 {
			c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
				"status": resp.StatusCode,
				"url":    resp.Request.URL.String(),
			})
			return &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
				Code:    resp.StatusCode,
			}
		}
		return nil
	}
}

// ListFollowers fetches one page of the account's follower listing, most
// recent first. An empty page signals the end of the listing.
func (c *Client) ListFollowers(ctx context.Context, page, perPage int) ([]Follower, error) {
	url := FollowersURL(c.baseURL, c.username, page, perPage)

	c.logger.DebugWithFields("fetching followers page", map[string]interface{}{
		"username": c.username,
		"page":     page,
		"per_page": perPage,
	})

	var followers []Follower
	if err := c.getJSON(ctx, url, &followers); err != nil {
		c.logger.ErrorWithFields("failed to fetch followers page", map[string]interface{}{
			"username": c.username,
			"page":     page,
			"error":    err.Error(),
		})
		return nil, err
	}

	c.logger.InfoWithFields("followers page fetched", map[string]interface{}{
		"username": c.username,
		"page":     page,
		"count":    len(followers),
	})

	return followers, nil
}

// Follow issues the idempotent follow PUT for the given login and interprets
// the response into a tagged FollowResult. Network-level failures are returned
// as errors; every HTTP status maps to an outcome.
func (c *Client) Follow(ctx context.Context, login string) (FollowResult, error) {
	login = SanitizeLogin(login)
	result := FollowResult{Login: login, Outcome: OutcomeFailed}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, FollowingURL(c.baseURL, login), nil)
	if err != nil {
		return result, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Code:    0,
		}
	}
	// The follow PUT has an empty body
	req.Header.Set("Content-Length", "0")

	resp, err := c.doRequest(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	switch resp.StatusCode {
	case http.StatusNoContent:
		result.Outcome = OutcomeFollowed
		logger.LogFollow(c.logger, login, true, nil)
	case http.StatusNotFound:
		result.Outcome = OutcomeNotFound
		c.logger.WarnWithFields("user not found", map[string]interface{}{
			"login": login,
		})
	case http.StatusForbidden:
		if isRateLimitExhausted(resp) {
			result.Outcome = OutcomeRateLimited
			logger.LogRateLimit(c.logger, req.URL.Path, 0)
		} else {
			result.Outcome = OutcomeForbidden
			c.logger.WarnWithFields("follow forbidden", map[string]interface{}{
				"login": login,
			})
		}
	case http.StatusTooManyRequests:
		result.Outcome = OutcomeRateLimited
		result.RetryAfter = retryAfter(resp)
		logger.LogRateLimit(c.logger, req.URL.Path, int(result.RetryAfter.Seconds()))
	case http.StatusUnauthorized:
		return result, &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return result, &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		result.Outcome = OutcomeFailed
		c.logger.WarnWithFields("follow failed", map[string]interface{}{
			"login":  login,
			"status": resp.StatusCode,
			"body":   string(body),
		})
	}

	return result, nil
}

// CheckQuota queries the rate-limit endpoint and returns the core resource
// snapshot. Implements ratelimit.QuotaChecker.
func (c *Client) CheckQuota(ctx context.Context) (ratelimit.Snapshot, error) {
	var response rateLimitResponse
	if err := c.getJSON(ctx, RateLimitURL(c.baseURL), &response); err != nil {
		return ratelimit.Snapshot{}, err
	}

	snap := ratelimit.Snapshot{
		Remaining: response.Resources.Core.Remaining,
		Limit:     response.Resources.Core.Limit,
		ResetAt:   time.Unix(response.Resources.Core.Reset, 0),
	}

	c.logger.DebugWithFields("rate limit snapshot", map[string]interface{}{
		"remaining": snap.Remaining,
		"limit":     snap.Limit,
		"reset_at":  snap.ResetAt,
	})

	return snap, nil
}

// TotalFollowers returns the total follower count by requesting a single-item
// page and reading the last page number from the Link header. When no Link
// header is present the listing fits in one page and the body length is the
// count.
func (c *Client) TotalFollowers(ctx context.Context) (int, error) {
	url := FollowersURL(c.baseURL, c.username, 1, 1)

	resp, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return 0, err
	}

	if link := resp.Header.Get("Link"); link != "" {
		if last, ok := lastPageFromLink(link); ok {
			// per_page=1, so the last page number is the total count
			return last, nil
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	var followers []Follower
	if err := json.Unmarshal(body, &followers); err != nil {
		return 0, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return len(followers), nil
}

// lastPageFromLink extracts the page number of the rel="last" entry from a
// Link header
func lastPageFromLink(link string) (int, bool) {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="last"`) {
			continue
		}

		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end < 0 || end <= start {
			continue
		}

		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			continue
		}

		page, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil || page <= 0 {
			continue
		}
		return page, true
	}

	return 0, false
}

// isRateLimitExhausted reports whether a 403 response carries the rate-limit
// exhaustion indicator
func isRateLimitExhausted(resp *http.Response) bool {
	return resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// retryAfter reads the server-specified retry interval from a 429 response
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
