package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthmon/internals/domain"
	"healthmon/pkg/apperror"
)

func targetFor(t *testing.T, rawURL, path string) domain.Service {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return domain.Service{
		Name:               "svc",
		Host:               u.Hostname(),
		Port:               port,
		Path:               path,
		Scheme:             domain.Scheme(u.Scheme),
		IntervalSec:        10,
		DownAlertThreshold: 3,
	}
}

func TestCheckHTTPSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	res, err := New().Check(context.Background(), targetFor(t, srv.URL, "/health"), time.Second)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, domain.ErrNone, res.ErrorClass)
	assert.False(t, res.StartedAt.IsZero())
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestCheckHTTPUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res, err := New().Check(context.Background(), targetFor(t, srv.URL, "/"), time.Second)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrUnexpectedStatus, res.ErrorClass)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestCheckHTTPTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	res, err := New().Check(context.Background(), targetFor(t, srv.URL, "/"), 50*time.Millisecond)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrTimeout, res.ErrorClass)
}

func TestCheckConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	target := domain.Service{Name: "db", Host: "127.0.0.1", Port: addr.Port, Scheme: domain.SchemeTCP, IntervalSec: 5, DownAlertThreshold: 1}
	res, err := New().Check(context.Background(), target, time.Second)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrConnectionRefused, res.ErrorClass)
}

func TestCheckTCPSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	target := domain.Service{Name: "db", Host: "127.0.0.1", Port: addr.Port, Scheme: domain.SchemeTCP, IntervalSec: 5, DownAlertThreshold: 1}
	res, err := New().Check(context.Background(), target, time.Second)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestCheckMalformedTargetFailsFast(t *testing.T) {
	_, err := New().Check(context.Background(), domain.Service{Name: "x", Scheme: "gopher"}, time.Second)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Configuration))
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want domain.ErrorClass
	}{
		{context.DeadlineExceeded, domain.ErrTimeout},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), domain.ErrTimeout},
		{&net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, domain.ErrDNSFailure},
		{&net.DNSError{Err: "i/o timeout", IsTimeout: true}, domain.ErrTimeout},
		{&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, domain.ErrConnectionRefused},
		{errors.New("tls: handshake failure"), domain.ErrProtocol},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classifyError(c.err), c.err.Error())
	}
}

func TestEffectiveTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, EffectiveTimeout(5*time.Second, 10*time.Second))
	assert.Equal(t, 2*time.Second, EffectiveTimeout(5*time.Second, 2*time.Second))
	assert.Equal(t, MaxTimeout, EffectiveTimeout(time.Minute, 0))
	assert.Equal(t, MaxTimeout, EffectiveTimeout(0, time.Hour))
}
