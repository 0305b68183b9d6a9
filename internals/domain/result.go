package domain

import "time"

// ErrorClass classifies a failed check. It is informational and never
// changes the success flag.
type ErrorClass string

const (
	ErrNone              ErrorClass = ""
	ErrTimeout           ErrorClass = "timeout"
	ErrConnectionRefused ErrorClass = "connection-refused"
	ErrDNSFailure        ErrorClass = "dns-failure"
	ErrProtocol          ErrorClass = "protocol-error"
	ErrUnexpectedStatus  ErrorClass = "unexpected-status"
	ErrInternal          ErrorClass = "internal-error"
)

// CheckResult is the immutable outcome of one probe.
type CheckResult struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Success    bool          `json:"success"`
	Latency    time.Duration `json:"latency_ns,omitempty"`
	ErrorClass ErrorClass    `json:"error_class,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// HistoryEntry is a persisted CheckResult tagged with its service.
type HistoryEntry struct {
	Service string `json:"service"`
	CheckResult
}

// Timestamp orders entries within a service log.
func (e HistoryEntry) Timestamp() time.Time {
	return e.StartedAt
}

// InternalFailure builds the result recorded when a probe faults unexpectedly.
func InternalFailure(startedAt time.Time, msg string) CheckResult {
	return CheckResult{
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Success:    false,
		ErrorClass: ErrInternal,
		Message:    msg,
	}
}
