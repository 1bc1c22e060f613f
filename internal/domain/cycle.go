package domain

import "time"

// CycleStats holds statistics about one full pass over all channels.
type CycleStats struct {
	Channels     int
	Fetched      int
	Dispatched   int
	Skipped      int
	SinkFailures int
	Errors       int
	Duration     time.Duration
}
