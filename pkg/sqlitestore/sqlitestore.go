package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

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

CREATE TABLE IF NOT EXISTS history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  service TEXT NOT NULL,
  started_at INTEGER NOT NULL,
  finished_at INTEGER NOT NULL,
  success INTEGER NOT NULL,
  latency_ns INTEGER NOT NULL DEFAULT 0,
  error_class TEXT NOT NULL DEFAULT '',
  status_code INTEGER NOT NULL DEFAULT 0,
  message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_history_service_started ON history(service, started_at);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serialises writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) LoadServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, host, port, path, scheme, interval_sec, down_alert_threshold
FROM services ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	var out []domain.Service
	for rows.Next() {
		var svc domain.Service
		var scheme string
		if err := rows.Scan(&svc.Name, &svc.Host, &svc.Port, &svc.Path, &scheme, &svc.IntervalSec, &svc.DownAlertThreshold); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		svc.Scheme = domain.Scheme(scheme)
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *Store) SaveServices(ctx context.Context, services []domain.Service) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM services`); err != nil {
		return fmt.Errorf("clear services: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO services (name, host, port, path, scheme, interval_sec, down_alert_threshold)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, svc := range services {
		if _, err := stmt.ExecContext(ctx, svc.Name, svc.Host, svc.Port, svc.Path, string(svc.Scheme), svc.IntervalSec, svc.DownAlertThreshold); err != nil {
			return fmt.Errorf("insert service %q: %w", svc.Name, err)
		}
	}
	return tx.Commit()
}

func (s *Store) LoadHistory(ctx context.Context, service string) ([]domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT started_at, finished_at, success, latency_ns, error_class, status_code, message
FROM history WHERE service = ? ORDER BY started_at, id`, service)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var started, finished, latency int64
		var success int
		var class string
		e := domain.HistoryEntry{Service: service}
		if err := rows.Scan(&started, &finished, &success, &latency, &class, &e.StatusCode, &e.Message); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.StartedAt = time.Unix(0, started).UTC()
		e.FinishedAt = time.Unix(0, finished).UTC()
		e.Success = success == 1
		e.Latency = time.Duration(latency)
		e.ErrorClass = domain.ErrorClass(class)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AppendHistory(ctx context.Context, service string, e domain.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO history (service, started_at, finished_at, success, latency_ns, error_class, status_code, message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		service, e.StartedAt.UnixNano(), e.FinishedAt.UnixNano(), boolToInt(e.Success),
		int64(e.Latency), string(e.ErrorClass), e.StatusCode, e.Message)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *Store) DeleteHistory(ctx context.Context, service string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE service = ?`, service); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

func (s *Store) PruneHistory(ctx context.Context, service string, before time.Time, keep int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if !before.IsZero() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE service = ? AND started_at < ?`, service, before.UnixNano()); err != nil {
			return fmt.Errorf("prune by age: %w", err)
		}
	}
	if keep > 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM history WHERE service = ? AND id NOT IN (
  SELECT id FROM history WHERE service = ? ORDER BY started_at DESC, id DESC LIMIT ?
)`, service, service, keep); err != nil {
			return fmt.Errorf("prune by count: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
