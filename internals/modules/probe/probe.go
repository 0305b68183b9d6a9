package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"healthmon/internals/domain"
	"healthmon/pkg/apperror"
	"healthmon/pkg/httpclient"
)

// MaxTimeout caps any single probe regardless of configuration.
const MaxTimeout = 30 * time.Second

// Prober performs one check against a service target.
// Network failures are returned as failed results, never as errors; an error
// means the target itself is malformed.
type Prober interface {
	Check(ctx context.Context, target domain.Service, timeout time.Duration) (domain.CheckResult, error)
}

type Probe struct {
	httpClient *http.Client
	dialer     *net.Dialer
}

func New() *Probe {
	return &Probe{
		httpClient: httpclient.NewHttpClient(),
		dialer:     &net.Dialer{KeepAlive: -1},
	}
}

// NewWithClient is used when the caller owns the HTTP transport.
func NewWithClient(c *http.Client) *Probe {
	return &Probe{
		httpClient: c,
		dialer:     &net.Dialer{KeepAlive: -1},
	}
}

// EffectiveTimeout is min(timeout, interval, MaxTimeout).
func EffectiveTimeout(timeout, interval time.Duration) time.Duration {
	if timeout <= 0 || timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if interval > 0 && interval < timeout {
		timeout = interval
	}
	return timeout
}

func (p *Probe) Check(ctx context.Context, target domain.Service, timeout time.Duration) (domain.CheckResult, error) {
	const op string = "probe.check"

	if err := target.Validate(); err != nil {
		return domain.CheckResult{}, apperror.New(apperror.Configuration, op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, EffectiveTimeout(timeout, 0))
	defer cancel()

	if target.Scheme == domain.SchemeTCP {
		return p.checkTCP(ctx, target), nil
	}
	return p.checkHTTP(ctx, target)
}

func (p *Probe) checkHTTP(ctx context.Context, target domain.Service) (domain.CheckResult, error) {
	const op string = "probe.check_http"

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL(), nil)
	if err != nil {
		// the target passed validation, so this is a malformed endpoint we could not catch earlier
		return domain.CheckResult{}, apperror.New(apperror.Configuration, op, err)
	}
	req.Header.Set("User-Agent", "healthmon/1.0")

	resp, err := p.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return failed(start, classifyError(err), err.Error(), 0), nil
	}
	defer resp.Body.Close()
	// drain a bounded amount so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed(start, domain.ErrUnexpectedStatus, http.StatusText(resp.StatusCode), resp.StatusCode), nil
	}

	return domain.CheckResult{
		StartedAt:  start,
		FinishedAt: time.Now(),
		Success:    true,
		Latency:    latency,
		StatusCode: resp.StatusCode,
	}, nil
}

func (p *Probe) checkTCP(ctx context.Context, target domain.Service) domain.CheckResult {
	start := time.Now()

	conn, err := p.dialer.DialContext(ctx, "tcp", target.Address())
	latency := time.Since(start)
	if err != nil {
		return failed(start, classifyError(err), err.Error(), 0)
	}
	_ = conn.Close()

	return domain.CheckResult{
		StartedAt:  start,
		FinishedAt: time.Now(),
		Success:    true,
		Latency:    latency,
	}
}

func failed(start time.Time, class domain.ErrorClass, msg string, code int) domain.CheckResult {
	return domain.CheckResult{
		StartedAt:  start,
		FinishedAt: time.Now(),
		Success:    false,
		ErrorClass: class,
		StatusCode: code,
		Message:    msg,
	}
}
