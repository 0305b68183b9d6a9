package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewHttpClient returns a pooled client for health probes. Request deadlines
// come from the caller's context; the transport only bounds connection setup.
func NewHttpClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{
		Transport: transport,
	}
}

// NewNotifyClient is used for outbound alert webhooks.
func NewNotifyClient(timeout time.Duration) *http.Client {
	c := NewHttpClient()
	c.Timeout = timeout
	return c
}
