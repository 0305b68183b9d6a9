package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pruner is a background process that applies history retention to the
// in-memory logs and asks storage to do the same.
type Pruner struct {
	// lifecycle
	ctx      context.Context
	interval time.Duration

	// services
	registry *Registry

	// misc
	logger *zerolog.Logger
}

func NewPruner(ctx context.Context, interval time.Duration, registry *Registry, logger *zerolog.Logger) *Pruner {
	return &Pruner{
		ctx:      ctx,
		interval: interval,
		registry: registry,
		logger:   logger,
	}
}

// Run blocks until ctx is done.
func (p *Pruner) Run() {
	if p.interval <= 0 {
		panic("prune loop interval must be > 0")
	}
	p.logger.Info().Dur("interval", p.interval).Msg("pruner started")
	ticker := time.NewTicker(p.interval)
	defer func() {
		ticker.Stop()
		p.logger.Info().Msg("pruner stopped")
	}()

	for {
		select {
		case <-p.ctx.Done():
			return

		case <-ticker.C:
			p.doWork()
		}
	}
}

func (p *Pruner) doWork() {
	removed := p.registry.Prune(p.registry.now())
	if removed > 0 {
		p.logger.Info().Msgf("pruned %d history entries", removed)
	}
}

// Prune drops expired entries from every log and queues the same pruning in
// storage. It returns how many in-memory entries were dropped.
func (r *Registry) Prune(now time.Time) int {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	total := 0
	for _, e := range entries {
		e.mu.Lock()
		name, removed := e.svc.Name, e.removed
		e.mu.Unlock()
		if removed {
			continue
		}

		total += e.log.Prune(now)
		r.store.PruneHistory(name, e.log.Cutoff(now), e.log.Capacity())
	}
	return total
}
