package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followback/pkg/config"
	"followback/pkg/github"
	"followback/pkg/logger"
)

type fakeLister struct {
	pages [][]github.Follower
	err   error
}

func (f *fakeLister) ListFollowers(ctx context.Context, page, perPage int) ([]github.Follower, error) {
	if f.err != nil {
		return nil, f.err
	}
	if page < 1 || page > len(f.pages) {
		return []github.Follower{}, nil
	}
	return f.pages[page-1], nil
}

func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Addr:           ":0",
		AllowedOrigins: []string{"*"},
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

func serveRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestFollowersEndpoint(t *testing.T) {
	lister := &fakeLister{pages: [][]github.Follower{
		{{Login: "b", ID: 2, HTMLURL: "https://github.com/b"}, {Login: "a", ID: 1, HTMLURL: "https://github.com/a"}},
	}}
	server := NewServer(testServerConfig(), lister, 2, logger.NewNopLogger())

	rec := serveRequest(server, http.MethodGet, "/followers")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var followers []github.Follower
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &followers))
	require.Len(t, followers, 2)
	assert.Equal(t, "b", followers[0].Login)
	assert.Equal(t, "https://github.com/a", followers[1].HTMLURL)
}

func TestFollowersEndpointPaginates(t *testing.T) {
	lister := &fakeLister{pages: [][]github.Follower{
		{{Login: "d"}, {Login: "c"}},
		{{Login: "b"}, {Login: "a"}},
		{},
	}}
	server := NewServer(testServerConfig(), lister, 2, logger.NewNopLogger())

	rec := serveRequest(server, http.MethodGet, "/followers")

	require.Equal(t, http.StatusOK, rec.Code)

	var followers []github.Follower
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &followers))
	assert.Len(t, followers, 4)
}

func TestFollowersEndpointEmptyListing(t *testing.T) {
	server := NewServer(testServerConfig(), &fakeLister{}, 2, logger.NewNopLogger())

	rec := serveRequest(server, http.MethodGet, "/followers")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestFollowersEndpointUpstreamFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("upstream down")}
	server := NewServer(testServerConfig(), lister, 2, logger.NewNopLogger())

	rec := serveRequest(server, http.MethodGet, "/followers")

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestFollowersEndpointMethodNotAllowed(t *testing.T) {
	server := NewServer(testServerConfig(), &fakeLister{}, 2, logger.NewNopLogger())

	rec := serveRequest(server, http.MethodPost, "/followers")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(testServerConfig(), &fakeLister{}, 2, logger.NewNopLogger())

	rec := serveRequest(server, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestCORSHeaders(t *testing.T) {
	server := NewServer(testServerConfig(), &fakeLister{}, 2, logger.NewNopLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/followers", nil)
	req.Header.Set("Origin", "https://example.com")
	server.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
