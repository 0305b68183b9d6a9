// Package filestore persists services as YAML and history as one JSON Lines
// file per service.
package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"healthmon/internals/domain"
)

const (
	servicesFile = "services.yaml"
	historyDir   = "history"
	maxLineSize  = 1 << 20
)

type servicesDoc struct {
	Services []domain.Service `yaml:"services"`
}

type Store struct {
	mu          sync.Mutex
	dir         string
	lastWritten []byte // services file content as last saved by us
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, historyDir), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) ServicesPath() string {
	return filepath.Join(s.dir, servicesFile)
}

func (s *Store) historyPath(service string) string {
	return filepath.Join(s.dir, historyDir, url.PathEscape(service)+".jsonl")
}

func (s *Store) LoadServices(ctx context.Context) ([]domain.Service, error) {
	data, err := os.ReadFile(s.ServicesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read services: %w", err)
	}

	var doc servicesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse services: %w", err)
	}
	return doc.Services, nil
}

func (s *Store) SaveServices(ctx context.Context, services []domain.Service) error {
	sorted := make([]domain.Service, len(services))
	copy(sorted, services)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	data, err := yaml.Marshal(servicesDoc{Services: sorted})
	if err != nil {
		return fmt.Errorf("encode services: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.ServicesPath(), data); err != nil {
		return err
	}
	s.lastWritten = data
	return nil
}

func (s *Store) LoadHistory(ctx context.Context, service string) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readHistory(service)
}

// readHistory skips lines that do not decode, which covers a final line torn
// by a crash mid-append.
func (s *Store) readHistory(service string) ([]domain.HistoryEntry, error) {
	f, err := os.Open(s.historyPath(service))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	var entries []domain.HistoryEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e domain.HistoryEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("scan history: %w", err)
	}
	return entries, nil
}

func (s *Store) AppendHistory(ctx context.Context, service string, entry domain.HistoryEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.historyPath(service), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append history: %w", err)
	}
	return f.Close()
}

func (s *Store) DeleteHistory(ctx context.Context, service string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.historyPath(service)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

func (s *Store) PruneHistory(ctx context.Context, service string, before time.Time, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readHistory(service)
	if err != nil || len(entries) == 0 {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.Timestamp().Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	if keep > 0 && len(kept) > keep {
		kept = kept[len(kept)-keep:]
	}
	if len(kept) == len(entries) {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range kept {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode history entry: %w", err)
		}
	}
	return writeAtomic(s.historyPath(service), buf.Bytes())
}

func (s *Store) Close() error {
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
