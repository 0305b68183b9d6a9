package persist

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"healthmon/internals/domain"
	"healthmon/pkg/apperror"
	"healthmon/pkg/metrics"
)

type opKind string

const (
	opSaveServices  opKind = "save_services"
	opAppendHistory opKind = "append_history"
	opDeleteHistory opKind = "delete_history"
	opPruneHistory  opKind = "prune_history"
)

type op struct {
	kind     opKind
	service  string
	services []domain.Service
	entry    domain.HistoryEntry
	before   time.Time
	keep     int
}

// Writer applies store mutations on its own goroutine so storage latency or
// failure never reaches the probe path. Enqueueing never blocks; a full queue
// drops the write with a warning.
type Writer struct {
	store   Store
	queue   chan op
	timeout time.Duration

	mu      sync.RWMutex
	started bool
	closed  bool
	done    chan struct{}

	metrics *metrics.Recorder
	logger  *zerolog.Logger
}

func NewWriter(store Store, queueSize int, timeout time.Duration, rec *metrics.Recorder, logger *zerolog.Logger) *Writer {
	if queueSize < 1 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		store:   store,
		queue:   make(chan op, queueSize),
		timeout: timeout,
		done:    make(chan struct{}),
		metrics: rec,
		logger:  logger,
	}
}

// Start runs the worker until Close drains the queue.
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	go w.run()
}

func (w *Writer) run() {
	defer close(w.done)
	for o := range w.queue {
		w.apply(o)
	}
}

func (w *Writer) apply(o op) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var err error
	switch o.kind {
	case opSaveServices:
		err = w.store.SaveServices(ctx, o.services)
	case opAppendHistory:
		err = w.store.AppendHistory(ctx, o.service, o.entry)
	case opDeleteHistory:
		err = w.store.DeleteHistory(ctx, o.service)
	case opPruneHistory:
		err = w.store.PruneHistory(ctx, o.service, o.before, o.keep)
	}

	if err != nil {
		w.fail(o, apperror.New(apperror.Persistence, "persist."+string(o.kind), err))
	}
}

func (w *Writer) fail(o op, err error) {
	w.metrics.PersistFailure(string(o.kind))
	w.logger.Warn().
		Err(err).
		Str("op", string(o.kind)).
		Str("service", o.service).
		Msg("persistence failed")
}

func (w *Writer) enqueue(o op) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return false
	}

	select {
	case w.queue <- o:
		return true
	default:
		w.fail(o, apperror.Newf(apperror.Persistence, "persist.enqueue", "write queue full"))
		return false
	}
}

func (w *Writer) SaveServices(services []domain.Service) bool {
	cp := make([]domain.Service, len(services))
	copy(cp, services)
	return w.enqueue(op{kind: opSaveServices, services: cp})
}

func (w *Writer) AppendHistory(service string, entry domain.HistoryEntry) bool {
	return w.enqueue(op{kind: opAppendHistory, service: service, entry: entry})
}

func (w *Writer) DeleteHistory(service string) bool {
	return w.enqueue(op{kind: opDeleteHistory, service: service})
}

func (w *Writer) PruneHistory(service string, before time.Time, keep int) bool {
	return w.enqueue(op{kind: opPruneHistory, service: service, before: before, keep: keep})
}

// LoadServices and LoadHistory read synchronously. They are used at startup
// before any write is queued.
func (w *Writer) LoadServices(ctx context.Context) ([]domain.Service, error) {
	const op string = "persist.load_services"
	services, err := w.store.LoadServices(ctx)
	if err != nil {
		return nil, apperror.New(apperror.Persistence, op, err)
	}
	return services, nil
}

func (w *Writer) LoadHistory(ctx context.Context, service string) ([]domain.HistoryEntry, error) {
	const op string = "persist.load_history"
	entries, err := w.store.LoadHistory(ctx, service)
	if err != nil {
		return nil, apperror.New(apperror.Persistence, op, err)
	}
	return entries, nil
}

// Watch forwards to the store when it supports watching.
func (w *Writer) Watch(ctx context.Context, onChange func()) (bool, error) {
	watcher, ok := w.store.(Watcher)
	if !ok {
		return false, nil
	}
	return true, watcher.Watch(ctx, onChange)
}

// Close stops accepting writes, drains the queue within ctx and closes the
// store.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	started := w.started
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	if !started {
		return w.store.Close()
	}

	select {
	case <-w.done:
	case <-ctx.Done():
		w.logger.Warn().Int("pending", len(w.queue)).Msg("persistence queue not drained before shutdown")
	}
	return w.store.Close()
}
