package scrape

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscraps/internal/config"
	"jobscraps/internal/logger"
	"jobscraps/internal/store"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.ScrapeConfig{
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
	}, logger.Global())
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(config.ScrapeConfig{}, logger.Global())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcquisition)
}

func TestSearchPostsParametersAndDecodesBatch(t *testing.T) {
	var gotParams map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotParams))

		json.NewEncoder(w).Encode([]store.Job{
			{ID: "indeed_abc", Site: "indeed", Title: "Data Engineer"},
			{Site: "linkedin", JobURL: "https://www.linkedin.com/jobs/view/4242424242"},
		})
	})

	batch, err := c.Search(context.Background(), map[string]any{
		"search_term": "data engineer",
		"location":    "Denver, CO",
	})
	require.NoError(t, err)
	require.Len(t, batch, 2)

	assert.Equal(t, "data engineer", gotParams["search_term"])
	assert.Equal(t, "indeed_abc", batch[0].ID)
	// Listings without a provider id get one derived from site and URL.
	assert.NotEmpty(t, batch[1].ID)
	assert.Contains(t, batch[1].ID, "linkedin_")
}

func TestSearchSendsBearerToken(t *testing.T) {
	t.Setenv("SCRAPE_API_TOKEN", "sekrit")

	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]store.Job{})
	})

	_, err := c.Search(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sekrit", gotAuth)
}

func TestSearchSurfacesErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := c.Search(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcquisition)
	assert.Contains(t, err.Error(), "429")
}

func TestSearchSurfacesMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := c.Search(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcquisition)
}

func TestSearchHonorsContextCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background connection
		// read; otherwise it never observes the client disconnect and the
		// request context is never cancelled, deadlocking srv.Close.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Search(ctx, map[string]any{})
	assert.Error(t, err)
}
