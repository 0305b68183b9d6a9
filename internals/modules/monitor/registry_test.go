package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthmon/internals/domain"
	"healthmon/internals/modules/scheduler"
	"healthmon/internals/modules/status"
	"healthmon/pkg/apperror"
)

type funcProber func(ctx context.Context, target domain.Service, timeout time.Duration) (domain.CheckResult, error)

func (f funcProber) Check(ctx context.Context, target domain.Service, timeout time.Duration) (domain.CheckResult, error) {
	return f(ctx, target, timeout)
}

// blockingProber never returns a result before its loop is cancelled, so
// tests drive state through Apply alone.
func blockingProber() funcProber {
	return func(ctx context.Context, target domain.Service, timeout time.Duration) (domain.CheckResult, error) {
		<-ctx.Done()
		return domain.CheckResult{}, ctx.Err()
	}
}

func okProber() funcProber {
	return func(ctx context.Context, target domain.Service, timeout time.Duration) (domain.CheckResult, error) {
		now := time.Now()
		return domain.CheckResult{StartedAt: now, FinishedAt: now, Success: true, Latency: time.Millisecond}, nil
	}
}

type fakeAlerter struct {
	mu          sync.Mutex
	transitions []domain.Transition
	forgotten   []string
}

func (a *fakeAlerter) Submit(svc domain.Service, tr domain.Transition) (domain.AlertEvent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transitions = append(a.transitions, tr)
	return domain.AlertEvent{Service: svc, From: tr.From, To: tr.To, At: tr.At}, status.Reportable(tr)
}

func (a *fakeAlerter) Forget(service string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.forgotten = append(a.forgotten, service)
}

func (a *fakeAlerter) edges() [][2]domain.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][2]domain.Status, 0, len(a.transitions))
	for _, tr := range a.transitions {
		out = append(out, [2]domain.Status{tr.From, tr.To})
	}
	return out
}

type fakePersister struct {
	mu       sync.Mutex
	services []domain.Service
	history  map[string][]domain.HistoryEntry
	saves    int
	deleted  []string
	pruned   []string
}

func newPersister(services ...domain.Service) *fakePersister {
	return &fakePersister{services: services, history: make(map[string][]domain.HistoryEntry)}
}

func (p *fakePersister) LoadServices(ctx context.Context) ([]domain.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Service(nil), p.services...), nil
}

func (p *fakePersister) LoadHistory(ctx context.Context, service string) ([]domain.HistoryEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.HistoryEntry(nil), p.history[service]...), nil
}

func (p *fakePersister) SaveServices(services []domain.Service) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services = append([]domain.Service(nil), services...)
	p.saves++
	return true
}

func (p *fakePersister) AppendHistory(service string, entry domain.HistoryEntry) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history[service] = append(p.history[service], entry)
	return true
}

func (p *fakePersister) DeleteHistory(service string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.history, service)
	p.deleted = append(p.deleted, service)
	return true
}

func (p *fakePersister) PruneHistory(service string, before time.Time, keep int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruned = append(p.pruned, service)
	return true
}

func (p *fakePersister) historyLen(service string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.history[service])
}

var testDefaults = domain.Defaults{Host: "localhost", IntervalSec: 30, DownAlertThreshold: 3}

func newRegistry(t *testing.T, p funcProber, alerts *fakeAlerter, store *fakePersister) *Registry {
	t.Helper()
	nop := zerolog.Nop()
	r := NewRegistry(context.Background(), p, alerts, store, Options{
		Defaults:     testDefaults,
		ProbeTimeout: 5 * time.Second,
		HistorySize:  100,
		UptimeWindow: time.Hour,
		GraphPoints:  10,
		Scheduler: []scheduler.Option{
			scheduler.WithInterval(func(domain.Service) time.Duration { return time.Hour }),
		},
	}, nil, &nop)
	t.Cleanup(r.Stop)
	return r
}

func apiService() domain.Service {
	return domain.Service{Name: "api", Host: "example.com", Scheme: domain.SchemeHTTP, IntervalSec: 60, DownAlertThreshold: 2}
}

func generationOf(t *testing.T, r *Registry, name string) uint64 {
	t.Helper()
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	require.True(t, ok, "service %s not registered", name)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

func result(at time.Time, ok bool) domain.CheckResult {
	res := domain.CheckResult{StartedAt: at, FinishedAt: at.Add(10 * time.Millisecond), Success: ok}
	if ok {
		res.Latency = 10 * time.Millisecond
		res.StatusCode = 200
	} else {
		res.ErrorClass = domain.ErrConnectionRefused
	}
	return res
}

func TestRegistry_AddStartsUnknown(t *testing.T) {
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, newPersister())

	svc, err := r.Add(domain.Service{Name: " api ", IntervalSec: 5})
	require.NoError(t, err)
	assert.Equal(t, "api", svc.Name)
	assert.Equal(t, "localhost", svc.Host)
	assert.Equal(t, 3, svc.DownAlertThreshold)
	assert.Equal(t, "/", svc.Path)

	snap, err := r.Get("api")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnknown, snap.Status)
	assert.False(t, snap.HasData)
	assert.Nil(t, snap.LastChecked)
	assert.NotNil(t, snap.RecentLatencies)
}

func TestRegistry_FirstProbeIsImmediate(t *testing.T) {
	r := newRegistry(t, okProber(), &fakeAlerter{}, newPersister())

	_, err := r.Add(apiService())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := r.Get("api")
		return err == nil && snap.Status == domain.StatusUp
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegistry_AddRejectsDuplicatesAndInvalid(t *testing.T) {
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, newPersister())

	_, err := r.Add(apiService())
	require.NoError(t, err)

	_, err = r.Add(apiService())
	assert.True(t, apperror.IsKind(err, apperror.AlreadyExists))

	_, err = r.Add(domain.Service{Name: "bad", Scheme: "ftp"})
	assert.True(t, apperror.IsKind(err, apperror.Configuration))

	_, err = r.Add(domain.Service{Name: "neg", IntervalSec: -1})
	assert.True(t, apperror.IsKind(err, apperror.Configuration))

	assert.Len(t, r.List(), 1)
}

func TestRegistry_ThresholdTwoScenario(t *testing.T) {
	alerts := &fakeAlerter{}
	store := newPersister()
	r := newRegistry(t, blockingProber(), alerts, store)

	_, err := r.Add(apiService())
	require.NoError(t, err)
	gen := generationOf(t, r, "api")

	base := time.Now().Add(-time.Minute)
	want := []domain.Status{domain.StatusUp, domain.StatusDegraded, domain.StatusDown, domain.StatusUp}
	for i, ok := range []bool{true, false, false, true} {
		require.True(t, r.Apply("api", gen, result(base.Add(time.Duration(i)*time.Second), ok)))
		snap, err := r.Get("api")
		require.NoError(t, err)
		assert.Equal(t, want[i], snap.Status, "after result %d", i)
	}

	assert.Equal(t, [][2]domain.Status{
		{domain.StatusUnknown, domain.StatusUp},
		{domain.StatusUp, domain.StatusDegraded},
		{domain.StatusDegraded, domain.StatusDown},
		{domain.StatusDown, domain.StatusUp},
	}, alerts.edges())

	snap, err := r.Get("api")
	require.NoError(t, err)
	assert.True(t, snap.HasData)
	assert.Equal(t, 1, snap.ConsecutiveSuccesses)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.InDelta(t, 50.0, snap.UptimePercent, 0.001)
	require.NotNil(t, snap.LastTransition)
	assert.Equal(t, base.Add(3*time.Second), *snap.LastTransition)
	assert.Equal(t, 4, store.historyLen("api"))
}

func TestRegistry_StaleResultsDiscarded(t *testing.T) {
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, newPersister())

	_, err := r.Add(apiService())
	require.NoError(t, err)
	gen := generationOf(t, r, "api")

	now := time.Now()
	require.True(t, r.Apply("api", gen, result(now, true)))
	assert.False(t, r.Apply("api", gen, result(now.Add(-time.Second), false)), "older start")
	assert.False(t, r.Apply("api", gen, result(now, false)), "equal start keeps the first")

	snap, err := r.Get("api")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUp, snap.Status)
	assert.Equal(t, 0, snap.ConsecutiveFailures)

	page, err := r.History("api", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestRegistry_RemoveStopsMutations(t *testing.T) {
	alerts := &fakeAlerter{}
	store := newPersister()
	r := newRegistry(t, blockingProber(), alerts, store)

	_, err := r.Add(apiService())
	require.NoError(t, err)
	gen := generationOf(t, r, "api")

	require.NoError(t, r.Remove("api"))

	// the in-flight probe lands after removal
	assert.False(t, r.Apply("api", gen, result(time.Now(), false)))
	assert.Empty(t, alerts.edges())
	assert.Equal(t, 0, store.historyLen("api"))
	assert.Equal(t, []string{"api"}, alerts.forgotten)
	assert.Equal(t, []string{"api"}, store.deleted)

	_, err = r.Get("api")
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
	assert.Empty(t, r.Snapshot())
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, newPersister())

	err := r.Remove("ghost")
	assert.True(t, apperror.IsKind(err, apperror.NotFound))

	assert.NotPanics(t, func() { r.Forget("ghost") })

	assert.True(t, apperror.IsKind(r.Refresh("ghost"), apperror.NotFound))
	_, err = r.Stats("ghost", 0)
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
	_, err = r.History("ghost", 1, 10)
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestRegistry_UpdateInvalidatesOldLoop(t *testing.T) {
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, newPersister())

	_, err := r.Add(apiService())
	require.NoError(t, err)
	oldGen := generationOf(t, r, "api")
	require.True(t, r.Apply("api", oldGen, result(time.Now().Add(-time.Second), true)))

	edited := apiService()
	edited.Name = ""
	edited.IntervalSec = 120
	svc, err := r.Update("api", edited)
	require.NoError(t, err)
	assert.Equal(t, 120, svc.IntervalSec)

	assert.False(t, r.Apply("api", oldGen, result(time.Now(), false)))

	snap, err := r.Get("api")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUp, snap.Status, "state survives an edit")

	renamed := apiService()
	renamed.Name = "other"
	_, err = r.Update("api", renamed)
	assert.True(t, apperror.IsKind(err, apperror.InvalidInput))

	_, err = r.Update("ghost", apiService())
	assert.Error(t, err)
}

func TestRegistry_RestoreFromStore(t *testing.T) {
	store := newPersister(apiService())
	at := time.Now().Add(-time.Minute)
	store.history["api"] = []domain.HistoryEntry{
		{Service: "api", CheckResult: result(at, true)},
		{Service: "api", CheckResult: result(at.Add(time.Second), false)},
	}
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, store)

	require.NoError(t, r.Restore(context.Background(), []domain.Service{{Name: "seed", Host: "seed.local"}}))

	names := []string{}
	for _, s := range r.List() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"api"}, names, "stored list wins over seed")

	snap, err := r.Get("api")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnknown, snap.Status)
	assert.True(t, snap.HasData)
	assert.InDelta(t, 50.0, snap.UptimePercent, 0.001)
}

func TestRegistry_RestoreFallsBackToSeed(t *testing.T) {
	store := newPersister()
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, store)

	err := r.Restore(context.Background(), []domain.Service{
		{Name: "web", Host: "web.local"},
		{Name: "broken", Scheme: "gopher"},
	})
	assert.True(t, apperror.IsKind(err, apperror.Configuration))

	require.Len(t, r.List(), 1)
	loaded, _ := store.LoadServices(context.Background())
	require.Len(t, loaded, 1)
	assert.Equal(t, "web", loaded[0].Name)
}

func TestRegistry_Reconcile(t *testing.T) {
	store := newPersister()
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, store)

	_, err := r.Add(domain.Service{Name: "keep", Host: "keep.local"})
	require.NoError(t, err)
	_, err = r.Add(domain.Service{Name: "drop", Host: "drop.local"})
	require.NoError(t, err)

	store.mu.Lock()
	store.services = []domain.Service{
		{Name: "keep", Host: "keep.local", IntervalSec: 90},
		{Name: "new", Host: "new.local"},
	}
	store.mu.Unlock()

	require.NoError(t, r.Reconcile(context.Background()))

	got := map[string]int{}
	for _, s := range r.List() {
		got[s.Name] = s.IntervalSec
	}
	assert.Equal(t, map[string]int{"keep": 90, "new": 30}, got)
}

func TestRegistry_SubscribeSignalsChanges(t *testing.T) {
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, newPersister())

	ch, cancel := r.Subscribe()
	defer cancel()

	_, err := r.Add(apiService())
	require.NoError(t, err)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change signalled")
	}
}

func TestRegistry_StatsAndHistory(t *testing.T) {
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, newPersister())

	_, err := r.Add(apiService())
	require.NoError(t, err)
	gen := generationOf(t, r, "api")

	base := time.Now().Add(-10 * time.Minute)
	for i := range 5 {
		require.True(t, r.Apply("api", gen, result(base.Add(time.Duration(i)*time.Minute), i != 2)))
	}

	stats, err := r.Stats("api", 0)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, stats.Window)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 4, stats.Up)
	assert.InDelta(t, 80.0, stats.UptimePercent, 0.001)

	page, err := r.History("api", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, base.Add(4*time.Minute), page.Items[0].StartedAt)
}

func TestRegistry_SnapshotIsConsistentUnderApply(t *testing.T) {
	r := newRegistry(t, blockingProber(), &fakeAlerter{}, newPersister())

	_, err := r.Add(apiService())
	require.NoError(t, err)
	gen := generationOf(t, r, "api")

	base := time.Now().Add(-time.Minute)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 10 {
			r.Apply("api", gen, result(base.Add(time.Duration(i)*time.Second), true))
		}
	}()

	for {
		select {
		case <-done:
			snap, err := r.Get("api")
			require.NoError(t, err)
			assert.Equal(t, 10, snap.ConsecutiveSuccesses)
			assert.Len(t, snap.RecentLatencies, 10)
			return
		default:
		}
		snap, err := r.Get("api")
		require.NoError(t, err)
		require.Len(t, snap.RecentLatencies, snap.ConsecutiveSuccesses)
	}
}

func TestRegistry_Prune(t *testing.T) {
	store := newPersister()
	nop := zerolog.Nop()
	r := NewRegistry(context.Background(), blockingProber(), &fakeAlerter{}, store, Options{
		Defaults:    testDefaults,
		HistorySize: 100,
		Retention:   time.Hour,
		Scheduler: []scheduler.Option{
			scheduler.WithInterval(func(domain.Service) time.Duration { return time.Hour }),
		},
	}, nil, &nop)
	t.Cleanup(r.Stop)

	_, err := r.Add(apiService())
	require.NoError(t, err)
	gen := generationOf(t, r, "api")

	now := time.Now()
	require.True(t, r.Apply("api", gen, result(now.Add(-2*time.Hour), true)))
	require.True(t, r.Apply("api", gen, result(now.Add(-time.Minute), true)))

	assert.Equal(t, 1, r.Prune(now))
	assert.Equal(t, []string{"api"}, store.pruned)

	page, err := r.History("api", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}
