package core

import "time"

// Status classifies an entity's last-known remote state.
type Status string

const (
	StatusActive       Status = "active"
	StatusHospitalized Status = "hospitalized"
	StatusIncarcerated Status = "incarcerated"
	StatusTraveling    Status = "traveling"
	StatusFederal      Status = "federal"
	StatusUnknown      Status = "unknown"
)

// ParseStatus maps a remote status state string onto a Status.
func ParseStatus(state string) Status {
	switch state {
	case "Okay", "okay", "active":
		return StatusActive
	case "Hospital", "hospital", "hospitalized":
		return StatusHospitalized
	case "Jail", "jail", "incarcerated":
		return StatusIncarcerated
	case "Traveling", "traveling", "Abroad", "abroad":
		return StatusTraveling
	case "Federal", "federal":
		return StatusFederal
	default:
		return StatusUnknown
	}
}

// ErrorKind classifies fetch failures.
type ErrorKind string

const (
	ErrorKindNetwork      ErrorKind = "network"
	ErrorKindTimeout      ErrorKind = "timeout"
	ErrorKindRateLimited  ErrorKind = "rate_limited"
	ErrorKindServerError  ErrorKind = "server_error"
	ErrorKindUnauthorized ErrorKind = "unauthorized"
	ErrorKindNotFound     ErrorKind = "not_found"
	ErrorKindForbidden    ErrorKind = "forbidden"
	ErrorKindParse        ErrorKind = "parse_error"
	ErrorKindCancelled    ErrorKind = "cancelled"
	ErrorKindUnknown      ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind may be retried
// within the same fetch.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindNetwork, ErrorKindTimeout, ErrorKindRateLimited, ErrorKindServerError:
		return true
	default:
		return false
	}
}

// Entity is the last-known state of one tracked remote ID.
type Entity struct {
	ID            int64      `json:"id"`
	DisplayName   string     `json:"display_name,omitempty"`
	Level         int        `json:"level,omitempty"`
	Affiliation   string     `json:"affiliation,omitempty"`
	Status        Status     `json:"status"`
	StatusDetail  string     `json:"status_detail,omitempty"`
	StatusUntil   *time.Time `json:"status_until,omitempty"`
	LastAction    *time.Time `json:"last_action,omitempty"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	LastError     *ErrorKind `json:"last_error,omitempty"`
	Ignored       bool       `json:"ignored,omitempty"`
}

// FetchResult is the terminal outcome of one fetch task. Exactly one of
// Entity or Err is meaningful.
type FetchResult struct {
	ID         int64         `json:"id"`
	Entity     *Entity       `json:"entity,omitempty"`
	Err        ErrorKind     `json:"error,omitempty"`
	Message    string        `json:"message,omitempty"`
	RetryAfter time.Duration `json:"-"`
	FromCache  bool          `json:"from_cache,omitempty"`
	FetchedAt  time.Time     `json:"fetched_at"`
}

// Success reports whether the fetch produced entity data.
func (r FetchResult) Success() bool {
	return r.Entity != nil && r.Err == ""
}

// Failure builds a failed result for an ID.
func Failure(id int64, kind ErrorKind, message string) FetchResult {
	return FetchResult{ID: id, Err: kind, Message: message, FetchedAt: time.Now().UTC()}
}

// CacheEntry is one persisted entity snapshot.
type CacheEntry struct {
	ID        int64     `json:"id"`
	Payload   Entity    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Fresh reports whether the entry may be served without a network fetch.
// The TTL is evaluated at lookup time so a reconfigured TTL applies to
// entries written before the change.
func (e CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(e.FetchedAt) < ttl
}

// RateLimitState mirrors one persisted rate-limit journal row.
type RateLimitState struct {
	RequestCount int        `json:"request_count"`
	WindowStart  time.Time  `json:"window_start"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
	Last429At    *time.Time `json:"last_429_at,omitempty"`
}

// CycleStats aggregates one completed (or cancelled) refresh cycle.
type CycleStats struct {
	CycleID   string            `json:"cycle_id"`
	Total     int               `json:"total"`
	Success   int               `json:"success"`
	CacheHits int               `json:"cache_hits"`
	Cancelled int               `json:"cancelled"`
	Errors    map[ErrorKind]int `json:"errors,omitempty"`
	Aborted   bool              `json:"aborted"`
	StartedAt time.Time         `json:"started_at"`
	// Elapsed is wall-clock and includes time spent paused offline;
	// Paused reports that share so displays can subtract it.
	Elapsed time.Duration `json:"elapsed"`
	Paused  time.Duration `json:"paused,omitempty"`
}

// ErrorCount returns the total number of failed items, excluding
// cancellations.
func (s CycleStats) ErrorCount() int {
	total := 0
	for _, n := range s.Errors {
		total += n
	}
	return total
}
