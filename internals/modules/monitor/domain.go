package monitor

import (
	"context"
	"sync"
	"time"

	"healthmon/internals/domain"
	"healthmon/internals/modules/history"
)

// Alerter receives status transitions. Submit must not block.
type Alerter interface {
	Submit(svc domain.Service, tr domain.Transition) (domain.AlertEvent, bool)
	Forget(service string)
}

// Persister is the asynchronous write side of storage plus the startup reads.
type Persister interface {
	LoadServices(ctx context.Context) ([]domain.Service, error)
	LoadHistory(ctx context.Context, service string) ([]domain.HistoryEntry, error)
	SaveServices(services []domain.Service) bool
	AppendHistory(service string, entry domain.HistoryEntry) bool
	DeleteHistory(service string) bool
	PruneHistory(service string, before time.Time, keep int) bool
}

// entry is the live state of one service. Everything below mu is mutated
// only by Registry.Apply, or by the registry when the service is edited.
type entry struct {
	mu         sync.Mutex
	svc        domain.Service
	generation uint64
	removed    bool
	state      domain.ServiceState
	log        *history.Log
	watermark  time.Time // StartedAt of the newest applied result
}

// ServiceSnapshot is the read model handed to consumers.
type ServiceSnapshot struct {
	Service              domain.Service         `json:"service"`
	Status               domain.Status          `json:"status"`
	HasData              bool                   `json:"has_data"`
	LastChecked          *time.Time             `json:"last_checked,omitempty"`
	LastLatency          time.Duration          `json:"last_latency_ns"`
	LastErrorClass       domain.ErrorClass      `json:"last_error_class,omitempty"`
	LastStatusCode       int                    `json:"last_status_code,omitempty"`
	LastMessage          string                 `json:"last_message,omitempty"`
	LastTransition       *time.Time             `json:"last_transition,omitempty"`
	ConsecutiveFailures  int                    `json:"consecutive_failures"`
	ConsecutiveSuccesses int                    `json:"consecutive_successes"`
	UptimePercent        float64                `json:"uptime_percent"`
	UptimeWindow         time.Duration          `json:"uptime_window_ns"`
	RecentLatencies      []history.LatencyPoint `json:"recent_latencies"`
}
