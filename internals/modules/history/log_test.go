package history

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthmon/internals/domain"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(at time.Duration, ok bool, latency time.Duration) domain.CheckResult {
	return domain.CheckResult{
		StartedAt:  base.Add(at),
		FinishedAt: base.Add(at + latency),
		Success:    ok,
		Latency:    latency,
	}
}

func TestAppendBeyondCapacityEvictsOldest(t *testing.T) {
	l := NewLog(5, 0)
	for i := 0; i < 12; i++ {
		l.Append(entry(time.Duration(i)*time.Second, true, time.Millisecond))
	}

	got := l.Entries()
	require.Len(t, got, 5)
	assert.Equal(t, base.Add(7*time.Second), got[0].StartedAt)
	assert.Equal(t, base.Add(11*time.Second), got[4].StartedAt)

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, base.Add(11*time.Second), last.StartedAt)
}

func TestPruneRemovesOldEntriesUnderCap(t *testing.T) {
	l := NewLog(100, 30*24*time.Hour)
	l.Append(entry(-31*24*time.Hour, true, time.Millisecond))
	l.Append(entry(-time.Hour, true, time.Millisecond))
	l.Append(entry(0, false, 0))

	removed := l.Prune(base)
	assert.Equal(t, 1, removed)
	require.Equal(t, 2, l.Len())
	assert.Equal(t, base.Add(-time.Hour), l.Entries()[0].StartedAt)

	assert.Equal(t, 0, l.Prune(base))
}

func TestPruneDisabledWithoutRetention(t *testing.T) {
	l := NewLog(10, 0)
	l.Append(entry(-1000*24*time.Hour, true, time.Millisecond))
	assert.Equal(t, 0, l.Prune(base))
	assert.Equal(t, 1, l.Len())
}

func TestLoadSortsAndTrims(t *testing.T) {
	l := NewLog(3, 0)
	l.Load([]domain.CheckResult{
		entry(4*time.Second, true, 0),
		entry(1*time.Second, true, 0),
		entry(3*time.Second, true, 0),
		entry(2*time.Second, true, 0),
	})

	got := l.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, base.Add(2*time.Second), got[0].StartedAt)
	assert.Equal(t, base.Add(4*time.Second), got[2].StartedAt)
}

func TestConcurrentAppendAndStats(t *testing.T) {
	l := NewLog(50, 0)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			l.Append(entry(time.Duration(i)*time.Second, i%4 != 0, time.Millisecond))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s := l.Stats(0, base.Add(time.Hour))
			assert.LessOrEqual(t, s.Total, 50)
		}
	}()
	wg.Wait()
	assert.Equal(t, 50, l.Len())
}
