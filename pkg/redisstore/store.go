package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"healthmon/internals/domain"
)

func (c *Client) servicesKey() string {
	return c.prefix + ":services"
}

func (c *Client) historyKey(service string) string {
	return fmt.Sprintf("%s:history:%s", c.prefix, service)
}

func (c *Client) LoadServices(ctx context.Context) ([]domain.Service, error) {
	raw, err := c.rdb.HGetAll(ctx, c.servicesKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.Service, 0, len(raw))
	for name, v := range raw {
		var svc domain.Service
		if err := json.Unmarshal([]byte(v), &svc); err != nil {
			return nil, fmt.Errorf("decode service %q: %w", name, err)
		}
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveServices replaces the hash atomically.
func (c *Client) SaveServices(ctx context.Context, services []domain.Service) error {
	fields := make(map[string]any, len(services))
	for _, svc := range services {
		b, err := json.Marshal(svc)
		if err != nil {
			return fmt.Errorf("encode service %q: %w", svc.Name, err)
		}
		fields[svc.Name] = b
	}

	return retry(ctx, 3, func() error {
		_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, c.servicesKey())
			if len(fields) > 0 {
				pipe.HSet(ctx, c.servicesKey(), fields)
			}
			return nil
		})
		return err
	})
}

func (c *Client) LoadHistory(ctx context.Context, service string) ([]domain.HistoryEntry, error) {
	raw, err := c.rdb.LRange(ctx, c.historyKey(service), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	out := make([]domain.HistoryEntry, 0, len(raw))
	for _, v := range raw {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Client) AppendHistory(ctx context.Context, service string, entry domain.HistoryEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	return retry(ctx, 2, func() error {
		return c.rdb.RPush(ctx, c.historyKey(service), b).Err()
	})
}

func (c *Client) DeleteHistory(ctx context.Context, service string) error {
	return retry(ctx, 2, func() error {
		return c.rdb.Del(ctx, c.historyKey(service)).Err()
	})
}

// PruneHistory pops expired entries from the head of the list, then caps
// its length with LTRIM.
func (c *Client) PruneHistory(ctx context.Context, service string, before time.Time, keep int) error {
	key := c.historyKey(service)

	if !before.IsZero() {
		raw, err := c.rdb.LRange(ctx, key, 0, -1).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		expired := 0
		for _, v := range raw {
			var e domain.HistoryEntry
			if err := json.Unmarshal([]byte(v), &e); err == nil && !e.Timestamp().Before(before) {
				break
			}
			expired++
		}
		if expired > 0 {
			if err := retry(ctx, 2, func() error {
				return c.rdb.LTrim(ctx, key, int64(expired), -1).Err()
			}); err != nil {
				return err
			}
		}
	}

	if keep > 0 {
		return retry(ctx, 2, func() error {
			return c.rdb.LTrim(ctx, key, int64(-keep), -1).Err()
		})
	}
	return nil
}
