package filestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthmon/internals/domain"
)

var t0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func hist(name string, at time.Duration, ok bool) domain.HistoryEntry {
	return domain.HistoryEntry{
		Service:     name,
		CheckResult: domain.CheckResult{StartedAt: t0.Add(at), FinishedAt: t0.Add(at + time.Millisecond), Success: ok, Latency: time.Millisecond},
	}
}

func TestServicesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	got, err := s.LoadServices(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	in := []domain.Service{
		{Name: "web", Host: "example.com", Port: 443, Path: "/health", Scheme: domain.SchemeHTTPS, IntervalSec: 30, DownAlertThreshold: 2},
		{Name: "db", Host: "10.0.0.5", Port: 5432, Scheme: domain.SchemeTCP, IntervalSec: 10, DownAlertThreshold: 3},
	}
	require.NoError(t, s.SaveServices(ctx, in))

	got, err = s.LoadServices(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, in[1], got[0])
	assert.Equal(t, in[0], got[1])
}

func TestHistoryToleratesTornLine(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.AppendHistory(ctx, "web", hist("web", 0, true)))
	require.NoError(t, s.AppendHistory(ctx, "web", hist("web", time.Second, false)))

	f, err := os.OpenFile(s.historyPath("web"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"service":"web","started_at":"2026-02`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := s.LoadHistory(ctx, "web")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[1].Success)
	assert.Equal(t, t0.Add(time.Second), got[1].StartedAt.UTC())
}

func TestPruneAndDeleteHistory(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, s.AppendHistory(ctx, "web", hist("web", time.Duration(i)*time.Minute, true)))
	}

	require.NoError(t, s.PruneHistory(ctx, "web", t0.Add(time.Minute), 3))
	got, err := s.LoadHistory(ctx, "web")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, t0.Add(3*time.Minute), got[0].StartedAt.UTC())

	require.NoError(t, s.DeleteHistory(ctx, "web"))
	require.NoError(t, s.DeleteHistory(ctx, "web"))
	got, err = s.LoadHistory(ctx, "web")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWatchIgnoresOwnSaves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := New(t.TempDir())
	require.NoError(t, err)

	changed := make(chan struct{}, 4)
	require.NoError(t, s.Watch(ctx, func() { changed <- struct{}{} }))

	require.NoError(t, s.SaveServices(ctx, []domain.Service{{Name: "a", Host: "h", Scheme: domain.SchemeHTTP, Path: "/", IntervalSec: 5, DownAlertThreshold: 1}}))
	select {
	case <-changed:
		t.Fatal("own save reported as external change")
	case <-time.After(3 * watchDebounce):
	}

	external := []byte("services:\n  - name: b\n    host: example.org\n")
	require.NoError(t, os.WriteFile(s.ServicesPath(), external, 0o644))
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("external edit not reported")
	}
}
