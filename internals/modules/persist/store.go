// Package persist is the boundary between the live monitor and durable storage.
package persist

import (
	"context"
	"time"

	"healthmon/internals/domain"
)

// Store is implemented by every storage backend.
type Store interface {
	LoadServices(ctx context.Context) ([]domain.Service, error)
	SaveServices(ctx context.Context, services []domain.Service) error
	LoadHistory(ctx context.Context, service string) ([]domain.HistoryEntry, error)
	AppendHistory(ctx context.Context, service string, entry domain.HistoryEntry) error
	DeleteHistory(ctx context.Context, service string) error
	// PruneHistory removes entries started before the cutoff and keeps at
	// most keep of the newest ones.
	PruneHistory(ctx context.Context, service string, before time.Time, keep int) error
	Close() error
}

// Watcher is implemented by backends that can report external edits to the
// service list.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Nop stores nothing. It backs the "none" driver.
type Nop struct{}

func (Nop) LoadServices(context.Context) ([]domain.Service, error) { return nil, nil }

func (Nop) SaveServices(context.Context, []domain.Service) error { return nil }

func (Nop) LoadHistory(context.Context, string) ([]domain.HistoryEntry, error) { return nil, nil }

func (Nop) AppendHistory(context.Context, string, domain.HistoryEntry) error { return nil }

func (Nop) DeleteHistory(context.Context, string) error { return nil }

func (Nop) PruneHistory(context.Context, string, time.Time, int) error { return nil }

func (Nop) Close() error { return nil }
