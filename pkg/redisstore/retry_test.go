package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, func() error {
		calls++
		if calls < 2 {
			return errors.New("busy")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 2, func() error {
		calls++
		return errors.New("down")
	})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retry(ctx, 5, func() error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeysArePrefixed(t *testing.T) {
	c := &Client{prefix: "hm"}
	assert.Equal(t, "hm:services", c.servicesKey())
	assert.Equal(t, "hm:history:web", c.historyKey("web"))
}
