package alert

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"healthmon/internals/domain"
	"healthmon/pkg/metrics"
)

// Config is passed explicitly so each Service can be tested in isolation.
type Config struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	RatePerMin int
	Burst      int
}

type AlertService struct {
	// lifecycle
	workerCount int
	workerWG    sync.WaitGroup
	mu          sync.RWMutex
	closed      bool

	// channels
	alertChan chan domain.AlertEvent

	// policy
	policy    *policy
	limiter   *rate.Limiter
	notifiers []Notifier
	timeout   time.Duration

	// misc
	metrics *metrics.Recorder
	logger  *zerolog.Logger
}

func NewAlertService(cfg Config, notifiers []Notifier, rec *metrics.Recorder, logger *zerolog.Logger) *AlertService {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	limit := rate.Inf
	if cfg.RatePerMin > 0 {
		limit = rate.Limit(float64(cfg.RatePerMin) / 60)
	}
	burst := max(cfg.Burst, 1)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &AlertService{
		workerCount: cfg.Workers,
		alertChan:   make(chan domain.AlertEvent, cfg.QueueSize),
		policy:      newPolicy(),
		limiter:     rate.NewLimiter(limit, burst),
		notifiers:   notifiers,
		timeout:     cfg.Timeout,
		metrics:     rec,
		logger:      logger,
	}
}

// Start starts the alert workers. Deliveries in flight are bounded by ctx
// and the per-notifier timeout.
func (s *AlertService) Start(ctx context.Context) {

	s.workerWG.Add(s.workerCount)

	for range s.workerCount {
		go s.handleAlerts(ctx)
	}
}

// Submit offers a transition for notification and never blocks. It returns
// the queued event, or false if the transition is not notification-worthy or
// was dropped.
func (s *AlertService) Submit(svc domain.Service, tr domain.Transition) (domain.AlertEvent, bool) {
	ev := domain.AlertEvent{
		ID:         uuid.New(),
		Service:    svc,
		From:       tr.From,
		To:         tr.To,
		At:         tr.At,
		Latency:    tr.Result.Latency,
		ErrorClass: tr.Result.ErrorClass,
		Message:    tr.Result.Message,
	}

	ok := s.policy.admit(tr, func() bool { return s.enqueue(ev) })
	return ev, ok
}

// enqueue runs with the policy lock held and must not block.
func (s *AlertService) enqueue(ev domain.AlertEvent) bool {
	if !s.limiter.Allow() {
		s.drop(ev, "rate_limited")
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(ev, "closed")
		return false
	}

	select {
	case s.alertChan <- ev:
		return true
	default:
		s.drop(ev, "queue_full")
		return false
	}
}

// Forget drops incident state for a removed service.
func (s *AlertService) Forget(service string) {
	s.policy.forget(service)
}

func (s *AlertService) OpenIncident(service string) bool {
	return s.policy.openIncident(service)
}

func (s *AlertService) drop(ev domain.AlertEvent, reason string) {
	s.metrics.Alert("all", reason)
	s.logger.Warn().
		Str("service", ev.Service.Name).
		Str("to", string(ev.To)).
		Str("alert_id", ev.ID.String()).
		Str("reason", reason).
		Msg("alert dropped")
}

func (s *AlertService) handleAlerts(ctx context.Context) {
	defer s.workerWG.Done()

	for ev := range s.alertChan {
		s.dispatch(ctx, ev)
	}
}

func (s *AlertService) dispatch(ctx context.Context, ev domain.AlertEvent) {
	for _, n := range s.notifiers {
		res := s.notify(ctx, n, ev)

		if res.Delivered {
			s.metrics.Alert(n.Name(), "delivered")
			s.logger.Info().
				Str("service", ev.Service.Name).
				Str("notifier", n.Name()).
				Str("to", string(ev.To)).
				Msg("alert delivered")
			continue
		}

		s.metrics.Alert(n.Name(), "failed")
		s.logger.Warn().
			Str("service", ev.Service.Name).
			Str("notifier", n.Name()).
			Str("alert_id", ev.ID.String()).
			Str("reason", res.Reason).
			Msg("alert delivery failed")
	}
}

func (s *AlertService) notify(ctx context.Context, n Notifier, ev domain.AlertEvent) (res domain.DeliveryResult) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res = domain.DeliveryFailed("notifier panicked")
		}
	}()

	return n.Notify(ctx, ev)
}

// Shutdown stops accepting alerts, lets queued ones drain and waits for
// the workers.
func (s *AlertService) Shutdown() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.alertChan)
	}
	s.mu.Unlock()

	s.workerWG.Wait()
}
