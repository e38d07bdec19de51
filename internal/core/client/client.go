package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rosterwatch/rosterwatch/internal/core"
	"github.com/rosterwatch/rosterwatch/internal/core/engine"
)

const defaultSelections = "basic,profile"

// Client fetches entity profiles from the remote API. Each Fetch is one
// logical operation: permits are acquired from the shared limiter,
// transient failures are retried per the backoff policy, and the
// outcome is classified into an ErrorKind.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Limiter    *engine.RateLimiter
	Backoff    *engine.BackoffPolicy
	// Timeout bounds each attempt. Zero means no per-attempt deadline
	// beyond the caller's context.
	Timeout time.Duration
	Clock   func() time.Time
}

type profilePayload struct {
	PlayerID int64  `json:"player_id"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	Status   struct {
		State       string `json:"state"`
		Description string `json:"description"`
		Until       int64  `json:"until"`
	} `json:"status"`
	LastAction struct {
		Timestamp int64 `json:"timestamp"`
	} `json:"last_action"`
	Faction struct {
		FactionName string `json:"faction_name"`
	} `json:"faction"`
	Error *apiError `json:"error"`
}

// apiError is the in-band error envelope some 200 responses carry.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Fetch retrieves the current profile for one entity ID.
func (c *Client) Fetch(ctx context.Context, id int64) core.FetchResult {
	if c == nil {
		return core.Failure(id, core.ErrorKindUnknown, "client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var lastHint time.Duration
	for attempt := 0; ; attempt++ {
		if err := c.acquire(ctx); err != nil {
			return core.Failure(id, core.ErrorKindCancelled, err.Error())
		}

		result := c.attempt(ctx, id)
		if result.Success() || !result.Err.Retryable() {
			return result
		}

		lastHint = result.RetryAfter
		if c.Backoff == nil || !c.Backoff.ShouldRetry(attempt, result.Err) {
			return result
		}

		delay := c.Backoff.DelayForAttempt(attempt, lastHint)
		if err := sleep(ctx, delay); err != nil {
			return core.Failure(id, core.ErrorKindCancelled, err.Error())
		}
	}
}

// acquire blocks until the limiter grants a permit or ctx is done.
func (c *Client) acquire(ctx context.Context) error {
	if c.Limiter == nil {
		return ctx.Err()
	}

	for {
		granted, wait := c.Limiter.TryAcquire()
		if granted {
			return nil
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Client) attempt(ctx context.Context, id int64) core.FetchResult {
	attemptCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.requestURL(id), nil)
	if err != nil {
		return core.Failure(id, core.ErrorKindUnknown, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return core.Failure(id, classifyTransport(ctx, attemptCtx, err), err.Error())
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	switch {
	case resp.StatusCode == http.StatusOK:
		return c.decode(ctx, resp, id)
	case resp.StatusCode == http.StatusTooManyRequests:
		hint := retryAfterHeader(resp)
		if c.Limiter != nil {
			c.Limiter.ReportRateLimited(ctx, hint)
		}
		result := core.Failure(id, core.ErrorKindRateLimited, "rate limited by server")
		result.RetryAfter = hint
		return result
	case resp.StatusCode == http.StatusUnauthorized:
		return core.Failure(id, core.ErrorKindUnauthorized, "invalid or missing API key")
	case resp.StatusCode == http.StatusForbidden:
		return core.Failure(id, core.ErrorKindForbidden, "access denied")
	case resp.StatusCode == http.StatusNotFound:
		return core.Failure(id, core.ErrorKindNotFound, "entity not found")
	case resp.StatusCode >= 500:
		return core.Failure(id, core.ErrorKindServerError, fmt.Sprintf("server error: %d", resp.StatusCode))
	default:
		return core.Failure(id, core.ErrorKindUnknown, fmt.Sprintf("unexpected response: %d", resp.StatusCode))
	}
}

func (c *Client) decode(ctx context.Context, resp *http.Response, id int64) core.FetchResult {
	var payload profilePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return core.Failure(id, core.ErrorKindParse, fmt.Sprintf("decode profile: %v", err))
	}

	if payload.Error != nil {
		return c.classifyAPIError(ctx, id, payload.Error)
	}

	now := c.now()
	entity := &core.Entity{
		ID:            id,
		DisplayName:   payload.Name,
		Level:         payload.Level,
		Affiliation:   payload.Faction.FactionName,
		Status:        core.ParseStatus(payload.Status.State),
		StatusDetail:  payload.Status.Description,
		LastFetchedAt: &now,
	}
	if payload.Status.Until > 0 {
		until := time.Unix(payload.Status.Until, 0).UTC()
		entity.StatusUntil = &until
	}
	if payload.LastAction.Timestamp > 0 {
		last := time.Unix(payload.LastAction.Timestamp, 0).UTC()
		entity.LastAction = &last
	}

	return core.FetchResult{ID: id, Entity: entity, FetchedAt: now}
}

// classifyAPIError maps in-band error codes returned with HTTP 200.
func (c *Client) classifyAPIError(ctx context.Context, id int64, apiErr *apiError) core.FetchResult {
	message := apiErr.Message
	if message == "" {
		message = fmt.Sprintf("api error code %d", apiErr.Code)
	}

	switch apiErr.Code {
	case 2, 10, 13:
		return core.Failure(id, core.ErrorKindUnauthorized, message)
	case 5:
		if c.Limiter != nil {
			c.Limiter.ReportRateLimited(ctx, 0)
		}
		return core.Failure(id, core.ErrorKindRateLimited, message)
	case 6:
		return core.Failure(id, core.ErrorKindNotFound, message)
	case 7:
		return core.Failure(id, core.ErrorKindForbidden, message)
	case 8:
		return core.Failure(id, core.ErrorKindRateLimited, message)
	default:
		return core.Failure(id, core.ErrorKindUnknown, message)
	}
}

func (c *Client) requestURL(id int64) string {
	base := c.BaseURL
	if base == "" {
		base = "https://api.torn.com"
	}

	query := url.Values{}
	query.Set("selections", defaultSelections)
	if c.APIKey != "" {
		query.Set("key", c.APIKey)
	}

	return fmt.Sprintf("%s/user/%d?%s", base, id, query.Encode())
}

func (c *Client) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func classifyTransport(ctx, attemptCtx context.Context, err error) core.ErrorKind {
	if ctx.Err() != nil {
		return core.ErrorKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return core.ErrorKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.ErrorKindTimeout
	}

	return core.ErrorKindNetwork
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := resp.Header.Get("Retry-After")
	if retry == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retry); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}

	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
