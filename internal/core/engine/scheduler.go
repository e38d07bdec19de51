package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

// ErrCycleActive is returned when a cycle is requested while another
// one is still running.
var ErrCycleActive = errors.New("refresh cycle already active")

// Fetcher performs one remote fetch per entity ID.
type Fetcher interface {
	Fetch(ctx context.Context, id int64) core.FetchResult
}

// CycleCache serves and stores entity snapshots for cache-first
// dispatch.
type CycleCache interface {
	GetEntity(ctx context.Context, id int64) (*core.CacheEntry, error)
	PutEntity(ctx context.Context, entry core.CacheEntry) error
}

// ResultSink receives merged fetch outcomes. Only the scheduler writes
// to it during a cycle.
type ResultSink interface {
	Apply(result core.FetchResult)
}

// Scheduler runs bounded-concurrency refresh cycles. At most one cycle
// is active at a time; tasks are served from cache when fresh and
// dispatched to workers otherwise. Dispatch pauses while offline,
// in-flight work is allowed to finish.
type Scheduler struct {
	Fetcher Fetcher
	Cache   CycleCache
	Sink    ResultSink
	Limiter *RateLimiter
	// Concurrency is the worker count. Values < 1 behave as 1.
	Concurrency int
	// CacheTTL is evaluated per lookup; entries older than it are
	// refetched.
	CacheTTL time.Duration
	Clock    func() time.Time

	mu      sync.Mutex
	active  bool
	cancel  context.CancelFunc
	online  bool
	gate    chan struct{}
	started bool

	eventsMu sync.Mutex
	events   []chan Event
}

// Subscribe registers an event channel. Events are delivered
// best-effort: a subscriber that stops draining misses events rather
// than stalling the cycle.
func (s *Scheduler) Subscribe() <-chan Event {
	ch := make(chan Event, 256)

	s.eventsMu.Lock()
	s.events = append(s.events, ch)
	s.eventsMu.Unlock()

	return ch
}

// SetOnline updates the connectivity gate. While offline the dispatch
// loop blocks before handing out new tasks.
func (s *Scheduler) SetOnline(online bool) {
	if s == nil {
		return
	}

	s.mu.Lock()
	s.ensureGateLocked()
	if online == s.online {
		s.mu.Unlock()
		return
	}

	s.online = online
	if online {
		close(s.gate)
	} else {
		s.gate = make(chan struct{})
	}
	s.mu.Unlock()

	s.publish(ConnectivityEvent{Online: online})
}

// CancelCycle requests cooperative cancellation of the active cycle, if
// any. In-flight tasks observe the cancelled context; queued tasks are
// not dispatched.
func (s *Scheduler) CancelCycle() {
	if s == nil {
		return
	}

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Active reports whether a cycle is currently running.
func (s *Scheduler) Active() bool {
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Run executes one refresh cycle over the given IDs and blocks until
// it completes or is cancelled. A concurrent Run returns ErrCycleActive
// without side effects.
func (s *Scheduler) Run(ctx context.Context, ids []int64) (core.CycleStats, error) {
	if s == nil || s.Fetcher == nil {
		return core.CycleStats{}, errors.New("scheduler is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return core.CycleStats{}, ErrCycleActive
	}
	s.active = true
	s.ensureGateLocked()
	cycleCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.active = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	stats := core.CycleStats{
		CycleID:   uuid.New().String(),
		Total:     len(ids),
		Errors:    make(map[core.ErrorKind]int),
		StartedAt: s.now(),
	}

	concurrency := s.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(ids) && len(ids) > 0 {
		concurrency = len(ids)
	}

	jobs := make(chan int64)
	results := make(chan core.FetchResult)

	var workers sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for id := range jobs {
				results <- s.runTask(cycleCtx, id)
			}
		}()
	}

	var paused time.Duration
	go func() {
		defer close(jobs)
		for _, id := range ids {
			waited, err := s.waitOnline(cycleCtx)
			paused += waited
			if err != nil {
				return
			}
			select {
			case jobs <- id:
			case <-cycleCtx.Done():
				return
			}
		}
	}()

	go func() {
		workers.Wait()
		close(results)
	}()

	completed := 0
	for result := range results {
		completed++

		if s.Sink != nil {
			s.Sink.Apply(result)
		}

		switch {
		case result.Success() && result.FromCache:
			stats.CacheHits++
		case result.Success():
			stats.Success++
		case result.Err == core.ErrorKindCancelled:
			stats.Cancelled++
		default:
			stats.Errors[result.Err]++
		}

		s.publish(ItemResultEvent{CycleID: stats.CycleID, Result: result})
		s.publish(ProgressEvent{CycleID: stats.CycleID, Completed: completed, Total: stats.Total})
	}

	// IDs never handed to a worker count as cancelled.
	stats.Cancelled += stats.Total - completed
	stats.Aborted = cycleCtx.Err() != nil
	stats.Elapsed = s.now().Sub(stats.StartedAt)
	stats.Paused = paused

	if s.Limiter != nil {
		_ = s.Limiter.FlushUsage(context.WithoutCancel(ctx))
	}

	s.publish(CycleCompleteEvent{Stats: stats})

	return stats, nil
}

// runTask resolves one ID, serving a fresh cache entry without touching
// the network and persisting successful remote fetches back to cache.
func (s *Scheduler) runTask(ctx context.Context, id int64) core.FetchResult {
	if err := ctx.Err(); err != nil {
		return core.Failure(id, core.ErrorKindCancelled, err.Error())
	}

	now := s.now()
	if s.Cache != nil {
		if entry, err := s.Cache.GetEntity(ctx, id); err == nil && entry != nil && entry.Fresh(now, s.CacheTTL) {
			payload := entry.Payload
			return core.FetchResult{
				ID:        id,
				Entity:    &payload,
				FromCache: true,
				FetchedAt: entry.FetchedAt,
			}
		}
	}

	result := s.Fetcher.Fetch(ctx, id)

	if result.Success() && !result.FromCache && s.Cache != nil {
		entry := core.CacheEntry{ID: id, Payload: *result.Entity, FetchedAt: result.FetchedAt}
		// Cache write failures degrade to a refetch next cycle.
		_ = s.Cache.PutEntity(context.WithoutCancel(ctx), entry)
	}

	return result
}

// waitOnline blocks until the gate opens or ctx is done, returning the
// time spent blocked so paused cycles can report it separately.
func (s *Scheduler) waitOnline(ctx context.Context) (time.Duration, error) {
	var waited time.Duration
	for {
		s.mu.Lock()
		s.ensureGateLocked()
		gate := s.gate
		online := s.online
		s.mu.Unlock()

		if online {
			return waited, nil
		}

		start := s.now()
		select {
		case <-gate:
			waited += s.now().Sub(start)
		case <-ctx.Done():
			waited += s.now().Sub(start)
			return waited, ctx.Err()
		}
	}
}

// ensureGateLocked initializes the online gate on first use. Caller
// holds s.mu.
func (s *Scheduler) ensureGateLocked() {
	if s.started {
		return
	}
	s.started = true
	s.online = true
	s.gate = make(chan struct{})
	close(s.gate)
}

func (s *Scheduler) publish(event Event) {
	s.eventsMu.Lock()
	subscribers := s.events
	s.eventsMu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (s *Scheduler) now() time.Time {
	if s != nil && s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}
