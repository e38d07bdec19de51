package engine

import "github.com/rosterwatch/rosterwatch/internal/core"

// Event is a scheduler notification. The concrete types below are the
// only implementations.
type Event interface {
	isEvent()
}

// ItemResultEvent reports one finished fetch task.
type ItemResultEvent struct {
	CycleID string
	Result  core.FetchResult
}

// ProgressEvent reports cycle completion counts after each task.
type ProgressEvent struct {
	CycleID   string
	Completed int
	Total     int
}

// CycleCompleteEvent carries the final stats of a cycle, including
// aborted ones.
type CycleCompleteEvent struct {
	Stats core.CycleStats
}

// ConnectivityEvent reports a debounced online state flip.
type ConnectivityEvent struct {
	Online bool
}

func (ItemResultEvent) isEvent()    {}
func (ProgressEvent) isEvent()      {}
func (CycleCompleteEvent) isEvent() {}
func (ConnectivityEvent) isEvent()  {}
