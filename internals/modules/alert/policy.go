package alert

import (
	"sync"
	"time"

	"healthmon/internals/domain"
)

type transitionKey struct {
	to domain.Status
	at time.Time
}

// policy decides which transitions notify. It keeps one open-incident flag
// and the last accepted transition per service.
type policy struct {
	mu   sync.Mutex
	open map[string]bool
	last map[string]transitionKey
}

func newPolicy() *policy {
	return &policy{
		open: make(map[string]bool),
		last: make(map[string]transitionKey),
	}
}

// admit reports whether tr should notify. Only an edge into Down opens an
// incident, and only an open incident can be closed by a recovery. Degraded
// never notifies. State is committed only when enqueue succeeds, so a dropped
// alert leaves the policy as if tr had not been seen.
func (p *policy) admit(tr domain.Transition, enqueue func() bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := transitionKey{to: tr.To, at: tr.At}
	if last, ok := p.last[tr.Service]; ok && last.to == key.to && last.at.Equal(key.at) {
		return false
	}

	opens := tr.To == domain.StatusDown && tr.From != domain.StatusDown
	closes := tr.From == domain.StatusDown && tr.To == domain.StatusUp
	switch {
	case opens && p.open[tr.Service]:
		return false
	case closes && !p.open[tr.Service]:
		return false
	case !opens && !closes:
		return false
	}

	if !enqueue() {
		return false
	}

	if opens {
		p.open[tr.Service] = true
	} else {
		delete(p.open, tr.Service)
	}
	p.last[tr.Service] = key
	return true
}

// openIncident reports whether service has an unresolved outage notification.
func (p *policy) openIncident(service string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open[service]
}

func (p *policy) forget(service string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.open, service)
	delete(p.last, service)
}
