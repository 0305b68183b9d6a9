// Package scheduler runs one independent probe loop per service.
//
// Each loop owns a ticker; every tick or refresh probes in its own goroutine
// so a hanging target never delays another tick or another service. Results
// are handed to a ResultSink together with the generation the loop was
// started with; the sink rejects generations it no longer recognises.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"healthmon/internals/domain"
	"healthmon/internals/modules/probe"
	"healthmon/pkg/metrics"
)

type ResultSink interface {
	Apply(service string, generation uint64, res domain.CheckResult) bool
}

type Option func(*Scheduler)

// WithInterval overrides how a service's tick period is computed.
func WithInterval(fn func(domain.Service) time.Duration) Option {
	return func(s *Scheduler) { s.intervalOf = fn }
}

func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = rec }
}

type loop struct {
	target     domain.Service
	generation uint64
	interval   time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	refresh    chan struct{}
}

type Scheduler struct {
	// lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	loops map[string]*loop

	// services
	prober     probe.Prober
	sink       ResultSink
	timeout    time.Duration
	intervalOf func(domain.Service) time.Duration

	// misc
	metrics *metrics.Recorder
	logger  *zerolog.Logger
}

func NewScheduler(
	ctx context.Context,
	prober probe.Prober,
	sink ResultSink,
	probeTimeout time.Duration,
	logger *zerolog.Logger,
	opts ...Option,
) *Scheduler {

	ctx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		ctx:        ctx,
		cancel:     cancel,
		loops:      make(map[string]*loop),
		prober:     prober,
		sink:       sink,
		timeout:    probeTimeout,
		intervalOf: domain.Service.Interval,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add starts the loop for target and fires its first probe immediately.
// An existing loop for the same name is replaced. Add after Stop is a no-op.
func (s *Scheduler) Add(target domain.Service, generation uint64) {
	interval := s.intervalOf(target)
	if interval <= 0 {
		panic(fmt.Sprintf("scheduler: interval for %q must be > 0", target.Name))
	}

	ctx, cancel := context.WithCancel(s.ctx)
	l := &loop{
		target:     target,
		generation: generation,
		interval:   interval,
		ctx:        ctx,
		cancel:     cancel,
		refresh:    make(chan struct{}, 1),
	}

	s.mu.Lock()
	// Stop cancels before taking mu, so a stopped scheduler is seen here
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		cancel()
		s.logger.Debug().Str("service", target.Name).Msg("scheduler stopped, loop not started")
		return
	}
	if old, ok := s.loops[target.Name]; ok {
		old.cancel()
	}
	s.loops[target.Name] = l
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(l)
}

// Remove cancels the loop. In-flight probes finish but their results are
// dropped.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.loops[name]
	if !ok {
		return false
	}
	l.cancel()
	delete(s.loops, name)
	return true
}

// Refresh requests an out-of-band probe without moving the ticker phase.
// Requests made while one is pending are coalesced.
func (s *Scheduler) Refresh(name string) bool {
	s.mu.Lock()
	l, ok := s.loops[name]
	s.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case l.refresh <- struct{}{}:
	default:
	}
	return true
}

func (s *Scheduler) RefreshAll() int {
	s.mu.Lock()
	names := make([]string, 0, len(s.loops))
	for name := range s.loops {
		names = append(names, name)
	}
	s.mu.Unlock()

	n := 0
	for _, name := range names {
		if s.Refresh(name) {
			n++
		}
	}
	return n
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loops)
}

// Stop cancels every loop and waits for loops and in-flight probes to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	s.loops = make(map[string]*loop)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(l *loop) {
	defer s.wg.Done()

	logger := s.logger.With().Str("service", l.target.Name).Logger()
	logger.Debug().Dur("interval", l.interval).Msg("probe loop started")

	ticker := time.NewTicker(l.interval)
	defer func() {
		ticker.Stop()
		logger.Debug().Msg("probe loop stopped")
	}()

	s.spawn(l)

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			s.spawn(l)

		case <-l.refresh:
			s.spawn(l)
		}
	}
}

func (s *Scheduler) spawn(l *loop) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.probeOnce(l)
	}()
}

func (s *Scheduler) probeOnce(l *loop) {
	res := s.check(l)

	s.metrics.ObserveProbe(l.target.Name, res.Success, string(res.ErrorClass), res.Latency)

	if l.ctx.Err() != nil {
		s.metrics.DiscardedResult("cancelled")
		return
	}
	if !s.sink.Apply(l.target.Name, l.generation, res) {
		s.metrics.DiscardedResult("rejected")
	}
}

// check runs one probe and converts errors and panics into internal-error
// results.
func (s *Scheduler) check(l *loop) (res domain.CheckResult) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("service", l.target.Name).
				Interface("panic", r).
				Msg("probe panicked")
			res = domain.InternalFailure(started, fmt.Sprintf("probe panicked: %v", r))
		}
	}()

	timeout := probe.EffectiveTimeout(s.timeout, l.interval)
	res, err := s.prober.Check(l.ctx, l.target, timeout)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("service", l.target.Name).
			Msg("probe failed unexpectedly")
		return domain.InternalFailure(started, err.Error())
	}
	if res.StartedAt.IsZero() {
		res.StartedAt = started
	}
	return res
}
