package redisstore

import (
	"context"
	"time"
)

const retryBackoff = 50 * time.Millisecond

// retry runs fn up to attempts times with linear backoff. It gives up early
// when ctx is done and returns the last error otherwise.
func retry(ctx context.Context, attempts int, fn func() error) error {
	var err error

	for i := range attempts {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(i+1)):
		}
	}

	return err
}
