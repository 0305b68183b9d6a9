package domain

import "time"

type Status string

const (
	StatusUnknown  Status = "UNKNOWN"
	StatusUp       Status = "UP"
	StatusDown     Status = "DOWN"
	StatusDegraded Status = "DEGRADED"
)

// ServiceState is the live status of one service.
// Exactly one of the consecutive counters is non-zero once a probe has been applied.
type ServiceState struct {
	Status               Status       `json:"status"`
	ConsecutiveFailures  int          `json:"consecutive_failures"`
	ConsecutiveSuccesses int          `json:"consecutive_successes"`
	LastTransition       time.Time    `json:"last_transition"`
	LastResult           *CheckResult `json:"last_result,omitempty"`
}

// Transition is emitted when a result changes a service's status.
type Transition struct {
	Service   string
	From      Status
	To        Status
	At        time.Time
	Threshold int
	Result    CheckResult
}
