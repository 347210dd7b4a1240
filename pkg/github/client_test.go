package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followback/pkg/config"
	errs "followback/pkg/errors"
	"followback/pkg/logger"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&config.GitHubConfig{
		Username:       "octocat",
		Token:          "test-token",
		BaseURL:        serverURL,
		RequestTimeout: 5 * time.Second,
	}, logger.NewNopLogger())
}

func TestNewClient(t *testing.T) {
	client := newTestClient("https://api.example.com")

	assert.NotNil(t, client.httpClient)
	assert.Equal(t, "token test-token", client.headers["Authorization"])
	assert.Equal(t, AcceptHeader, client.headers["Accept"])
	assert.Equal(t, "octocat", client.Username())
}

func TestListFollowers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/octocat/followers", r.URL.Path)
		assert.Equal(t, "token test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		json.NewEncoder(w).Encode([]Follower{
			{Login: "alice", ID: 1},
			{Login: "bob", ID: 2},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	followers, err := client.ListFollowers(context.Background(), 2, 100)

	require.NoError(t, err)
	require.Len(t, followers, 2)
	assert.Equal(t, "alice", followers[0].Login)
	assert.Equal(t, "bob", followers[1].Login)
}

func TestListFollowersErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		headers    map[string]string
		wantType   errs.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, nil, errs.ErrorTypeAuth},
		{"not found", http.StatusNotFound, nil, errs.ErrorTypeNotFound},
		{"rate limited 403", http.StatusForbidden, map[string]string{"X-RateLimit-Remaining": "0"}, errs.ErrorTypeRateLimit},
		{"plain forbidden", http.StatusForbidden, nil, errs.ErrorTypeForbidden},
		{"too many requests", http.StatusTooManyRequests, nil, errs.ErrorTypeRateLimit},
		{"server error", http.StatusInternalServerError, nil, errs.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.ListFollowers(context.Background(), 1, 100)

			require.Error(t, err)
			apiErr, ok := err.(*errs.Error)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, tt.statusCode, apiErr.Code)
		})
	}
}

func TestListFollowersParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ListFollowers(context.Background(), 1, 100)

	require.Error(t, err)
	apiErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.ErrorTypeParsing, apiErr.Type)
}

func TestFollowOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		headers     map[string]string
		wantOutcome FollowOutcome
	}{
		{"followed", http.StatusNoContent, nil, OutcomeFollowed},
		{"not found", http.StatusNotFound, nil, OutcomeNotFound},
		{"rate limited 403", http.StatusForbidden, map[string]string{"X-RateLimit-Remaining": "0"}, OutcomeRateLimited},
		{"plain forbidden", http.StatusForbidden, nil, OutcomeForbidden},
		{"too many requests", http.StatusTooManyRequests, nil, OutcomeRateLimited},
		{"unexpected status", http.StatusConflict, nil, OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "/user/following/alice", r.URL.Path)
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			result, err := client.Follow(context.Background(), "alice")

			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, result.Outcome)
			assert.Equal(t, tt.statusCode, result.StatusCode)
			assert.Equal(t, "alice", result.Login)
		})
	}
}

func TestFollowRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Follow(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, OutcomeRateLimited, result.Outcome)
	assert.Equal(t, 42*time.Second, result.RetryAfter)
}

func TestFollowAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Follow(context.Background(), "alice")

	require.Error(t, err)
	apiErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
}

func TestCheckQuota(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rate_limit", r.URL.Path)
		fmt.Fprintf(w, `{"resources":{"core":{"limit":5000,"remaining":4200,"reset":%d}}}`, reset)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	snap, err := client.CheckQuota(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4200, snap.Remaining)
	assert.Equal(t, 5000, snap.Limit)
	assert.Equal(t, reset, snap.ResetAt.Unix())
}

func TestTotalFollowers(t *testing.T) {
	t.Run("with link header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1", r.URL.Query().Get("per_page"))
			w.Header().Set("Link",
				`<https://api.github.com/users/octocat/followers?page=2&per_page=1>; rel="next", `+
					`<https://api.github.com/users/octocat/followers?page=137&per_page=1>; rel="last"`)
			json.NewEncoder(w).Encode([]Follower{{Login: "alice"}})
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		total, err := client.TotalFollowers(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 137, total)
	})

	t.Run("single page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]Follower{{Login: "alice"}})
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		total, err := client.TotalFollowers(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("no followers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "[]")
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		total, err := client.TotalFollowers(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})
}

func TestLastPageFromLink(t *testing.T) {
	page, ok := lastPageFromLink(`<https://api.github.com/x?page=5>; rel="last"`)
	assert.True(t, ok)
	assert.Equal(t, 5, page)

	_, ok = lastPageFromLink(`<https://api.github.com/x?page=2>; rel="next"`)
	assert.False(t, ok)

	_, ok = lastPageFromLink("")
	assert.False(t, ok)
}

func TestSanitizeLogin(t *testing.T) {
	assert.Equal(t, "alice", SanitizeLogin("@alice"))
	assert.Equal(t, "alice", SanitizeLogin("alice/ "))
	assert.Equal(t, "", SanitizeLogin(""))
}

func TestFollowSanitizesLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/following/alice", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Follow(context.Background(), "@alice/")

	require.NoError(t, err)
	assert.Equal(t, OutcomeFollowed, result.Outcome)
	assert.Equal(t, "alice", result.Login)
}

func TestNewClientSanitizesUsername(t *testing.T) {
	client := NewClient(&config.GitHubConfig{
		Username: "@octocat",
		Token:    "test-token",
	}, logger.NewNopLogger())

	assert.Equal(t, "octocat", client.Username())
}
