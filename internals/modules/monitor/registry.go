// Package monitor owns the set of monitored services and their live state.
//
// The Registry is the single writer of every ServiceState and history log:
// the scheduler hands it results through Apply, which discards results from
// removed or replaced loops (by generation) and results older than the newest
// applied one (by probe start time, the later start winning; an equal start
// keeps the result applied first).
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"healthmon/internals/domain"
	"healthmon/internals/modules/history"
	"healthmon/internals/modules/probe"
	"healthmon/internals/modules/scheduler"
	"healthmon/internals/modules/status"
	"healthmon/pkg/apperror"
	"healthmon/pkg/metrics"
)

var allStatuses = []string{
	string(domain.StatusUnknown),
	string(domain.StatusUp),
	string(domain.StatusDown),
	string(domain.StatusDegraded),
}

type Options struct {
	Defaults      domain.Defaults
	ProbeTimeout  time.Duration
	HistorySize   int
	Retention     time.Duration
	UptimeWindow  time.Duration
	GraphPoints   int
	PruneInterval time.Duration
	Scheduler     []scheduler.Option
}

type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	generation uint64

	sched  *scheduler.Scheduler
	alerts Alerter
	store  Persister
	opts   Options

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int

	now     func() time.Time
	metrics *metrics.Recorder
	logger  *zerolog.Logger
}

func NewRegistry(
	ctx context.Context,
	prober probe.Prober,
	alerts Alerter,
	store Persister,
	opts Options,
	rec *metrics.Recorder,
	logger *zerolog.Logger,
) *Registry {

	if opts.HistorySize < 1 {
		opts.HistorySize = 1000
	}
	if opts.UptimeWindow <= 0 {
		opts.UptimeWindow = 24 * time.Hour
	}
	if opts.GraphPoints <= 0 {
		opts.GraphPoints = 60
	}

	r := &Registry{
		entries: make(map[string]*entry),
		alerts:  alerts,
		store:   store,
		opts:    opts,
		subs:    make(map[int]chan struct{}),
		now:     time.Now,
		metrics: rec,
		logger:  logger,
	}

	schedOpts := append([]scheduler.Option{scheduler.WithMetrics(rec)}, opts.Scheduler...)
	r.sched = scheduler.NewScheduler(ctx, prober, r, opts.ProbeTimeout, logger, schedOpts...)
	return r
}

func (r *Registry) nextGeneration() uint64 {
	r.generation++
	return r.generation
}

// Add registers svc and starts probing it immediately with status Unknown.
func (r *Registry) Add(svc domain.Service) (domain.Service, error) {
	const op string = "monitor.add"

	svc, err := svc.Normalize(r.opts.Defaults)
	if err != nil {
		return domain.Service{}, apperror.New(apperror.Configuration, op, err)
	}

	r.mu.Lock()
	if _, exists := r.entries[svc.Name]; exists {
		r.mu.Unlock()
		return domain.Service{}, apperror.Newf(apperror.AlreadyExists, op, "service %q already exists", svc.Name)
	}
	e := r.insertLocked(svc, nil)
	// loops start and stop under the registry lock so they always match the entry set
	r.sched.Add(svc, e.generation)
	services := r.servicesLocked()
	r.mu.Unlock()

	r.store.SaveServices(services)
	r.afterMembershipChange(len(services))

	r.logger.Info().Str("service", svc.Name).Str("target", svc.URL()).Msg("service added")
	return svc, nil
}

func (r *Registry) insertLocked(svc domain.Service, past []domain.CheckResult) *entry {
	e := &entry{
		svc:        svc,
		generation: r.nextGeneration(),
		state:      status.New(),
		log:        history.NewLog(r.opts.HistorySize, r.opts.Retention),
	}
	if len(past) > 0 {
		e.log.Load(past)
		e.log.Prune(r.now())
	}
	r.entries[svc.Name] = e
	r.metrics.SetStatus(svc.Name, string(e.state.Status), allStatuses)
	return e
}

// Update replaces a service's configuration. State and history are kept; the
// probe loop restarts with the new interval.
func (r *Registry) Update(name string, svc domain.Service) (domain.Service, error) {
	const op string = "monitor.update"

	if svc.Name == "" {
		svc.Name = name
	}
	if svc.Name != name {
		return domain.Service{}, apperror.Newf(apperror.InvalidInput, op, "service name cannot change from %q to %q", name, svc.Name)
	}
	svc, err := svc.Normalize(r.opts.Defaults)
	if err != nil {
		return domain.Service{}, apperror.New(apperror.Configuration, op, err)
	}

	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return domain.Service{}, apperror.Newf(apperror.NotFound, op, "service %q not found", name)
	}
	e.mu.Lock()
	e.svc = svc
	e.generation = r.nextGeneration()
	gen := e.generation
	e.mu.Unlock()
	r.sched.Add(svc, gen)
	services := r.servicesLocked()
	r.mu.Unlock()

	r.store.SaveServices(services)
	r.notify()

	r.logger.Info().Str("service", name).Msg("service updated")
	return svc, nil
}

// Remove is the explicit user action: an unknown name is an error.
// Once it returns, no in-flight probe can mutate the service's state.
func (r *Registry) Remove(name string) error {
	const op string = "monitor.remove"

	if !r.remove(name) {
		return apperror.Newf(apperror.NotFound, op, "service %q not found", name)
	}
	r.logger.Info().Str("service", name).Msg("service removed")
	return nil
}

// Forget removes name if present. Used for programmatic cleanup.
func (r *Registry) Forget(name string) {
	if r.remove(name) {
		r.logger.Debug().Str("service", name).Msg("service forgotten")
	}
}

func (r *Registry) remove(name string) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, name)

	e.mu.Lock()
	e.removed = true
	e.generation = 0
	e.mu.Unlock()
	r.sched.Remove(name)

	services := r.servicesLocked()
	r.mu.Unlock()

	r.alerts.Forget(name)
	r.metrics.ForgetService(name)
	r.store.SaveServices(services)
	r.store.DeleteHistory(name)
	r.afterMembershipChange(len(services))
	return true
}

// Apply folds one probe result into the service's state. It reports false
// when the result was discarded.
func (r *Registry) Apply(name string, generation uint64, res domain.CheckResult) bool {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()

	if e.removed || e.generation != generation {
		e.mu.Unlock()
		return false
	}
	if !e.watermark.IsZero() && !res.StartedAt.After(e.watermark) {
		e.mu.Unlock()
		r.metrics.DiscardedResult("stale")
		r.logger.Debug().
			Str("service", name).
			Time("started_at", res.StartedAt).
			Time("watermark", e.watermark).
			Msg("stale result discarded")
		return false
	}

	next, tr := status.Apply(e.state, res, name, e.svc.DownAlertThreshold)
	e.state = next
	e.watermark = res.StartedAt
	e.log.Append(res)
	svc := e.svc

	// queued while holding the entry lock so writes keep apply order
	r.store.AppendHistory(name, domain.HistoryEntry{Service: name, CheckResult: res})
	if tr != nil {
		r.alerts.Submit(svc, *tr)
	}
	e.mu.Unlock()

	r.metrics.SetStatus(name, string(next.Status), allStatuses)
	if tr != nil {
		r.logTransition(*tr)
	}
	r.notify()
	return true
}

func (r *Registry) logTransition(tr domain.Transition) {
	ev := r.logger.Info()
	if tr.To == domain.StatusDown {
		ev = r.logger.Warn()
	}
	ev.Str("service", tr.Service).
		Str("from", string(tr.From)).
		Str("to", string(tr.To)).
		Bool("reportable", status.Reportable(tr)).
		Str("error_class", string(tr.Result.ErrorClass)).
		Msg("status changed")
}

func (r *Registry) lookup(op, name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, apperror.Newf(apperror.NotFound, op, "service %q not found", name)
	}
	return e, nil
}

func (r *Registry) Get(name string) (ServiceSnapshot, error) {
	e, err := r.lookup("monitor.get", name)
	if err != nil {
		return ServiceSnapshot{}, err
	}
	return r.snapshotOf(e, r.now()), nil
}

// List returns service configurations sorted by name.
func (r *Registry) List() []domain.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.servicesLocked()
}

func (r *Registry) servicesLocked() []domain.Service {
	out := make([]domain.Service, 0, len(r.entries))
	for _, e := range r.entries {
		e.mu.Lock()
		out = append(out, e.svc)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshot returns a consistent view of every service. The service set
// cannot change while it is taken.
func (r *Registry) Snapshot() []ServiceSnapshot {
	now := r.now()

	r.mu.RLock()
	out := make([]ServiceSnapshot, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, r.snapshotOf(e, now))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Service.Name < out[j].Service.Name })
	return out
}

func (r *Registry) snapshotOf(e *entry, now time.Time) ServiceSnapshot {
	// held across the log reads so state and history agree
	e.mu.Lock()
	svc, st := e.svc, e.state
	stats := e.log.Stats(r.opts.UptimeWindow, now)
	latencies := e.log.Latencies(r.opts.UptimeWindow, r.opts.GraphPoints, now)
	e.mu.Unlock()

	snap := ServiceSnapshot{
		Service:              svc,
		Status:               st.Status,
		HasData:              stats.HasData,
		ConsecutiveFailures:  st.ConsecutiveFailures,
		ConsecutiveSuccesses: st.ConsecutiveSuccesses,
		UptimePercent:        stats.UptimePercent,
		UptimeWindow:         r.opts.UptimeWindow,
		RecentLatencies:      latencies,
	}
	if snap.RecentLatencies == nil {
		snap.RecentLatencies = []history.LatencyPoint{}
	}
	if !st.LastTransition.IsZero() {
		t := st.LastTransition
		snap.LastTransition = &t
	}
	if last := st.LastResult; last != nil {
		t := last.StartedAt
		snap.LastChecked = &t
		snap.LastLatency = last.Latency
		snap.LastErrorClass = last.ErrorClass
		snap.LastStatusCode = last.StatusCode
		snap.LastMessage = last.Message
	}
	return snap
}

// Stats derives statistics over window; a non-positive window uses the
// configured uptime window.
func (r *Registry) Stats(name string, window time.Duration) (history.Stats, error) {
	e, err := r.lookup("monitor.stats", name)
	if err != nil {
		return history.Stats{}, err
	}
	if window <= 0 {
		window = r.opts.UptimeWindow
	}
	return e.log.Stats(window, r.now()), nil
}

func (r *Registry) History(name string, page, size int) (history.Page, error) {
	e, err := r.lookup("monitor.history", name)
	if err != nil {
		return history.Page{}, err
	}
	return e.log.Page(page, size), nil
}

func (r *Registry) Refresh(name string) error {
	const op string = "monitor.refresh"
	if _, err := r.lookup(op, name); err != nil {
		return err
	}
	if !r.sched.Refresh(name) {
		return apperror.Newf(apperror.NotFound, op, "service %q not found", name)
	}
	return nil
}

func (r *Registry) RefreshAll() int {
	return r.sched.RefreshAll()
}

// Restore loads services and history from storage. When storage has no
// services (or cannot be read) the seed list is used and saved.
func (r *Registry) Restore(ctx context.Context, seed []domain.Service) error {
	services, err := r.store.LoadServices(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("could not load services, using configured list")
		services = nil
	}
	fromStore := len(services) > 0
	if !fromStore {
		services = seed
	}

	var firstErr error
	for _, raw := range services {
		svc, err := raw.Normalize(r.opts.Defaults)
		if err != nil {
			if firstErr == nil {
				firstErr = apperror.New(apperror.Configuration, "monitor.restore", err)
			}
			r.logger.Error().Err(err).Str("service", raw.Name).Msg("skipping invalid service")
			continue
		}

		var past []domain.CheckResult
		entries, err := r.store.LoadHistory(ctx, svc.Name)
		if err != nil {
			r.logger.Warn().Err(err).Str("service", svc.Name).Msg("could not load history")
		}
		for _, h := range entries {
			past = append(past, h.CheckResult)
		}

		r.mu.Lock()
		if _, exists := r.entries[svc.Name]; exists {
			r.mu.Unlock()
			r.logger.Warn().Str("service", svc.Name).Msg("duplicate service skipped")
			continue
		}
		e := r.insertLocked(svc, past)
		r.sched.Add(svc, e.generation)
		r.mu.Unlock()
	}

	r.mu.RLock()
	current, n := r.servicesLocked(), len(r.entries)
	r.mu.RUnlock()
	if !fromStore {
		r.store.SaveServices(current)
	}
	r.afterMembershipChange(n)

	r.logger.Info().Int("services", n).Bool("from_store", fromStore).Msg("registry restored")
	return firstErr
}

// Reconcile re-reads the stored service list and applies the difference:
// missing services are forgotten, new ones added, edited ones updated.
func (r *Registry) Reconcile(ctx context.Context) error {
	const op string = "monitor.reconcile"

	stored, err := r.store.LoadServices(ctx)
	if err != nil {
		return apperror.New(apperror.Persistence, op, err)
	}

	want := make(map[string]domain.Service, len(stored))
	for _, raw := range stored {
		svc, err := raw.Normalize(r.opts.Defaults)
		if err != nil {
			r.logger.Error().Err(err).Str("service", raw.Name).Msg("ignoring invalid service from storage")
			continue
		}
		want[svc.Name] = svc
	}

	for _, have := range r.List() {
		svc, keep := want[have.Name]
		switch {
		case !keep:
			r.Forget(have.Name)
		case svc != have:
			if _, err := r.Update(have.Name, svc); err != nil {
				r.logger.Error().Err(err).Str("service", have.Name).Msg("reconcile update failed")
			}
		}
		delete(want, have.Name)
	}
	for _, svc := range want {
		if _, err := r.Add(svc); err != nil && !apperror.IsKind(err, apperror.AlreadyExists) {
			r.logger.Error().Err(err).Str("service", svc.Name).Msg("reconcile add failed")
		}
	}
	return nil
}

func (r *Registry) afterMembershipChange(n int) {
	r.metrics.SetMonitored(n)
	r.notify()
}

// Subscribe returns a channel signalled, coalesced, whenever any snapshot
// changes. The returned func unsubscribes.
func (r *Registry) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.subMu.Unlock()

	return ch, func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) notify() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Stop halts every probe loop and waits for in-flight probes.
func (r *Registry) Stop() {
	r.sched.Stop()
}
