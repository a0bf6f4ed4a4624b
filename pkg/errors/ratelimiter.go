package errors

import (
	"sync"
	"time"
)

// rateLimiter silences repeated reports raised from the same origin frame.
type rateLimiter struct {
	lock   sync.Mutex
	silent time.Duration
	buffer map[string]*errorStats
	now    func() time.Time
}

func newRateLimiter(silent time.Duration) *rateLimiter {
	return &rateLimiter{
		silent: silent,
		buffer: map[string]*errorStats{},
		now:    time.Now,
	}
}

type errorStats struct {
	totalOccurCount           int
	occurCountSinceLastReport int
	lastReportTime            *time.Time
}

func (in *errorStats) copy() *errorStats {
	cp := *in
	return &cp
}

// StackBasedRateLimited reports whether an error from stack must be dropped, and the
// stats as they were before this occurrence.
func (b *rateLimiter) StackBasedRateLimited(stack string) (bool, *errorStats) {
	b.lock.Lock()
	defer b.lock.Unlock()
	stats := b.buffer[stack]
	if stats == nil {
		stats = &errorStats{}
		b.buffer[stack] = stats
	}
	before := stats.copy()
	now := b.now()
	stats.totalOccurCount++
	if stats.lastReportTime != nil && now.Sub(*stats.lastReportTime) < b.silent {
		stats.occurCountSinceLastReport++
		return true, before
	}
	stats.occurCountSinceLastReport = 0
	stats.lastReportTime = &now
	return false, before
}
