package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"healthmon/internals/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS services (
  name TEXT PRIMARY KEY,
  host TEXT NOT NULL,
  port INTEGER NOT NULL DEFAULT 0,
  path TEXT NOT NULL DEFAULT '',
  scheme TEXT NOT NULL,
  interval_sec INTEGER NOT NULL,
  down_alert_threshold INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS check_history (
  id BIGSERIAL PRIMARY KEY,
  service TEXT NOT NULL,
  started_at TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL,
  success BOOLEAN NOT NULL,
  latency_ns BIGINT NOT NULL DEFAULT 0,
  error_class TEXT NOT NULL DEFAULT '',
  status_code INTEGER NOT NULL DEFAULT 0,
  message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_check_history_service_started ON check_history(service, started_at);
`

// Store persists services and history in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) LoadServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := s.pool.Query(ctx, `
SELECT name, host, port, path, scheme, interval_sec, down_alert_threshold
FROM services ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Service, error) {
		var svc domain.Service
		var scheme string
		err := row.Scan(&svc.Name, &svc.Host, &svc.Port, &svc.Path, &scheme, &svc.IntervalSec, &svc.DownAlertThreshold)
		svc.Scheme = domain.Scheme(scheme)
		return svc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan services: %w", err)
	}
	return out, nil
}

func (s *Store) SaveServices(ctx context.Context, services []domain.Service) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM services`); err != nil {
			return fmt.Errorf("clear services: %w", err)
		}

		batch := &pgx.Batch{}
		for _, svc := range services {
			batch.Queue(`
INSERT INTO services (name, host, port, path, scheme, interval_sec, down_alert_threshold)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				svc.Name, svc.Host, svc.Port, svc.Path, string(svc.Scheme), svc.IntervalSec, svc.DownAlertThreshold)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert services: %w", err)
		}
		return nil
	})
}

func (s *Store) LoadHistory(ctx context.Context, service string) ([]domain.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT started_at, finished_at, success, latency_ns, error_class, status_code, message
FROM check_history WHERE service = $1 ORDER BY started_at, id`, service)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HistoryEntry, error) {
		e := domain.HistoryEntry{Service: service}
		var latency int64
		var class string
		err := row.Scan(&e.StartedAt, &e.FinishedAt, &e.Success, &latency, &class, &e.StatusCode, &e.Message)
		e.Latency = time.Duration(latency)
		e.ErrorClass = domain.ErrorClass(class)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return out, nil
}

func (s *Store) AppendHistory(ctx context.Context, service string, e domain.HistoryEntry) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO check_history (service, started_at, finished_at, success, latency_ns, error_class, status_code, message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		service, e.StartedAt, e.FinishedAt, e.Success, int64(e.Latency), string(e.ErrorClass), e.StatusCode, e.Message)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *Store) DeleteHistory(ctx context.Context, service string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM check_history WHERE service = $1`, service); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

func (s *Store) PruneHistory(ctx context.Context, service string, before time.Time, keep int) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if !before.IsZero() {
			if _, err := tx.Exec(ctx, `DELETE FROM check_history WHERE service = $1 AND started_at < $2`, service, before); err != nil {
				return fmt.Errorf("prune by age: %w", err)
			}
		}
		if keep > 0 {
			if _, err := tx.Exec(ctx, `
DELETE FROM check_history WHERE service = $1 AND id NOT IN (
  SELECT id FROM check_history WHERE service = $1 ORDER BY started_at DESC, id DESC LIMIT $2
)`, service, keep); err != nil {
				return fmt.Errorf("prune by count: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
