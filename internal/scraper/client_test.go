package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetchProfileSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"full_name": "Jane Doe"})
	}))
	defer srv.Close()

	c := NewClient(Config{ProfileURL: srv.URL, RateLimitPerMinute: 600})
	payload, err := c.FetchProfile(context.Background(), "https://www.linkedin.com/in/jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", payload["full_name"])
}

func TestClientFetchProfileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{ProfileURL: srv.URL, RateLimitPerMinute: 600})
	_, err := c.FetchProfile(context.Background(), "https://www.linkedin.com/in/ghost")
	require.Error(t, err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestClientRetriesOn500ThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"full_name": "Eventually"})
	}))
	defer srv.Close()

	c := NewClient(Config{ProfileURL: srv.URL, RateLimitPerMinute: 600, MaxRetries: 3})
	payload, err := c.FetchProfile(context.Background(), "https://www.linkedin.com/in/retry")
	require.NoError(t, err)
	assert.Equal(t, "Eventually", payload["full_name"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClientExhaustsRetriesOn500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{ProfileURL: srv.URL, RateLimitPerMinute: 600, MaxRetries: 3})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.FetchProfile(ctx, "https://www.linkedin.com/in/down")
	require.Error(t, err)
}
