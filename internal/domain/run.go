package domain

import "time"

// RunStats summarizes one pipeline invocation.
type RunStats struct {
	RunID      string
	Mode       RunMode
	Fetched    int
	Duplicates int
	Filtered   int // wrong mode or stale breaking entries
	Unverified int
	Eligible   int
	Posted     int
	Errors     int // per-feed failures, already degraded to empty
	Throttled  bool
	Duration   time.Duration
}
