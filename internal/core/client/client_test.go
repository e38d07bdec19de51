package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rosterwatch/rosterwatch/internal/core"
	"github.com/rosterwatch/rosterwatch/internal/core/engine"
)

func testBackoff(maxAttempts int) *engine.BackoffPolicy {
	return &engine.BackoffPolicy{
		Base:        time.Millisecond,
		Ceiling:     2 * time.Millisecond,
		MaxAttempts: maxAttempts,
	}
}

func TestClientFetchMapsProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user/12345", r.URL.Path)
		require.Equal(t, "basic,profile", r.URL.Query().Get("selections"))
		require.Equal(t, "secret", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"player_id": 12345,
			"name": "Shadow",
			"level": 42,
			"status": {"state": "Hospital", "description": "In hospital for 2 hrs", "until": 1767225600},
			"last_action": {"timestamp": 1767222000},
			"faction": {"faction_name": "Night Watch"}
		}`))
	}))
	defer server.Close()

	c := &Client{
		BaseURL: server.URL,
		APIKey:  "secret",
		Backoff: testBackoff(3),
	}

	result := c.Fetch(context.Background(), 12345)
	require.True(t, result.Success())
	require.Equal(t, int64(12345), result.Entity.ID)
	require.Equal(t, "Shadow", result.Entity.DisplayName)
	require.Equal(t, 42, result.Entity.Level)
	require.Equal(t, "Night Watch", result.Entity.Affiliation)
	require.Equal(t, core.StatusHospitalized, result.Entity.Status)
	require.Equal(t, "In hospital for 2 hrs", result.Entity.StatusDetail)
	require.NotNil(t, result.Entity.StatusUntil)
	require.Equal(t, time.Unix(1767225600, 0).UTC(), *result.Entity.StatusUntil)
	require.NotNil(t, result.Entity.LastAction)
	require.NotNil(t, result.Entity.LastFetchedAt)
}

func TestClientFetchNotFoundDoesNotRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL, Backoff: testBackoff(5)}

	result := c.Fetch(context.Background(), 1)
	require.False(t, result.Success())
	require.Equal(t, core.ErrorKindNotFound, result.Err)
	require.Equal(t, int32(1), attempts.Load())
}

func TestClientFetchRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"name": "Shadow", "level": 1, "status": {"state": "Okay"}}`))
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL, Backoff: testBackoff(5)}

	result := c.Fetch(context.Background(), 1)
	require.True(t, result.Success())
	require.Equal(t, int32(3), attempts.Load())
}

func TestClientFetchExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL, Backoff: testBackoff(3)}

	result := c.Fetch(context.Background(), 1)
	require.Equal(t, core.ErrorKindServerError, result.Err)
	require.Equal(t, int32(3), attempts.Load())
}

func TestClientFetchReportsRateLimit(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"name": "Shadow", "level": 1, "status": {"state": "Okay"}}`))
	}))
	defer server.Close()

	limiter := engine.NewRateLimiter(engine.RateLimiterConfig{CapacityPerMinute: 1000})

	c := &Client{BaseURL: server.URL, Limiter: limiter, Backoff: testBackoff(5)}

	started := time.Now()
	result := c.Fetch(context.Background(), 1)
	require.True(t, result.Success())
	require.Equal(t, int32(2), attempts.Load())
	// The 429 put the limiter into a one second cooldown, so the retry
	// cannot have been admitted before it elapsed.
	require.GreaterOrEqual(t, time.Since(started), time.Second)
}

func TestClientFetchInBandErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want core.ErrorKind
	}{
		{"incorrect key", `{"error": {"code": 2, "error": "Incorrect key"}}`, core.ErrorKindUnauthorized},
		{"incorrect id", `{"error": {"code": 6, "error": "Incorrect ID"}}`, core.ErrorKindNotFound},
		{"disabled key", `{"error": {"code": 7, "error": "Disabled key"}}`, core.ErrorKindForbidden},
		{"unknown code", `{"error": {"code": 99, "error": "Mystery"}}`, core.ErrorKindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			c := &Client{BaseURL: server.URL, Backoff: testBackoff(3)}

			result := c.Fetch(context.Background(), 1)
			require.Equal(t, tc.want, result.Err)
		})
	}
}

func TestClientFetchParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": `))
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL, Backoff: testBackoff(3)}

	result := c.Fetch(context.Background(), 1)
	require.Equal(t, core.ErrorKindParse, result.Err)
}

func TestClientFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := &Client{
		BaseURL: server.URL,
		Timeout: 20 * time.Millisecond,
		Backoff: testBackoff(1),
	}

	result := c.Fetch(context.Background(), 1)
	require.Equal(t, core.ErrorKindTimeout, result.Err)
}

func TestClientFetchCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := &Client{BaseURL: server.URL, Backoff: testBackoff(3)}

	result := c.Fetch(ctx, 1)
	require.Equal(t, core.ErrorKindCancelled, result.Err)
}
