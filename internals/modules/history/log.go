// Package history keeps a bounded, time-ordered log of check results per
// service and derives statistics from it.
package history

import (
	"sort"
	"sync"
	"time"

	"healthmon/internals/domain"
)

// Log is a fixed-capacity ring of results ordered by StartedAt.
// Appending past capacity evicts the oldest entry.
type Log struct {
	mu        sync.RWMutex
	buf       []domain.CheckResult
	head      int // index of the oldest entry
	size      int
	retention time.Duration
}

// NewLog creates a log holding at most capacity entries. A retention of zero
// disables age-based pruning.
func NewLog(capacity int, retention time.Duration) *Log {
	if capacity < 1 {
		capacity = 1
	}
	return &Log{
		buf:       make([]domain.CheckResult, capacity),
		retention: retention,
	}
}

func (l *Log) Capacity() int {
	return len(l.buf)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Append adds res at the tail. Callers apply results in StartedAt order.
func (l *Log) Append(res domain.CheckResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.push(res)
}

func (l *Log) push(res domain.CheckResult) {
	tail := (l.head + l.size) % len(l.buf)
	l.buf[tail] = res
	if l.size == len(l.buf) {
		l.head = (l.head + 1) % len(l.buf)
		return
	}
	l.size++
}

// Load replaces the contents with entries, sorted by StartedAt. Only the
// newest Capacity entries are kept.
func (l *Log) Load(entries []domain.CheckResult) {
	sorted := make([]domain.CheckResult, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.Before(sorted[j].StartedAt)
	})
	if len(sorted) > len(l.buf) {
		sorted = sorted[len(sorted)-len(l.buf):]
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.head, l.size = 0, 0
	for _, e := range sorted {
		l.push(e)
	}
}

// Prune drops entries older than the retention window relative to now and
// returns how many were removed.
func (l *Log) Prune(now time.Time) int {
	if l.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-l.retention)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for l.size > 0 && l.buf[l.head].StartedAt.Before(cutoff) {
		l.buf[l.head] = domain.CheckResult{}
		l.head = (l.head + 1) % len(l.buf)
		l.size--
		removed++
	}
	return removed
}

// Cutoff is the oldest timestamp that survives a Prune at now.
func (l *Log) Cutoff(now time.Time) time.Time {
	if l.retention <= 0 {
		return time.Time{}
	}
	return now.Add(-l.retention)
}

// Entries returns a copy, oldest first.
func (l *Log) Entries() []domain.CheckResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.since(time.Time{})
}

// Since returns a copy of entries started at or after t, oldest first.
func (l *Log) Since(t time.Time) []domain.CheckResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.since(t)
}

func (l *Log) since(t time.Time) []domain.CheckResult {
	out := make([]domain.CheckResult, 0, l.size)
	for i := 0; i < l.size; i++ {
		e := l.buf[(l.head+i)%len(l.buf)]
		if e.StartedAt.Before(t) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Last returns the newest entry.
func (l *Log) Last() (domain.CheckResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.size == 0 {
		return domain.CheckResult{}, false
	}
	return l.buf[(l.head+l.size-1)%len(l.buf)], true
}
