// Package status converts a stream of check results into a service status.
//
// The status is a pure function of the previous status, the two consecutive
// counters and the down-alert threshold (see Derive). Apply is the only place
// the counters move.
package status

import (
	"healthmon/internals/domain"
)

// Derive returns the status implied by the counters. At most one counter is
// non-zero; when both are zero no result has been applied and prev is kept.
func Derive(prev domain.Status, consecutiveSuccesses, consecutiveFailures, threshold int) domain.Status {
	if threshold < 1 {
		threshold = 1
	}

	switch {
	case consecutiveSuccesses > 0:
		return domain.StatusUp
	case consecutiveFailures >= threshold:
		return domain.StatusDown
	case consecutiveFailures > 0:
		// below threshold: an outage is not over until a success arrives
		if prev == domain.StatusDown {
			return domain.StatusDown
		}
		return domain.StatusDegraded
	default:
		return prev
	}
}

// New returns the initial state of a freshly added service.
func New() domain.ServiceState {
	return domain.ServiceState{Status: domain.StatusUnknown}
}

// Apply folds one result into state. The returned transition is nil when the
// status did not change.
func Apply(state domain.ServiceState, res domain.CheckResult, service string, threshold int) (domain.ServiceState, *domain.Transition) {
	next := state

	if res.Success {
		next.ConsecutiveSuccesses++
		next.ConsecutiveFailures = 0
	} else {
		next.ConsecutiveFailures++
		next.ConsecutiveSuccesses = 0
	}

	r := res
	next.LastResult = &r
	next.Status = Derive(state.Status, next.ConsecutiveSuccesses, next.ConsecutiveFailures, threshold)

	if next.Status == state.Status {
		return next, nil
	}

	next.LastTransition = res.StartedAt
	return next, &domain.Transition{
		Service:   service,
		From:      state.Status,
		To:        next.Status,
		At:        res.StartedAt,
		Threshold: threshold,
		Result:    res,
	}
}

// Reportable reports whether a transition is surfaced as an event rather than
// only reflected in the current status. Degraded→Up is informational.
func Reportable(t domain.Transition) bool {
	switch {
	case t.To == domain.StatusDown:
		return true
	case t.To == domain.StatusUp:
		return t.From == domain.StatusDown || t.From == domain.StatusUnknown
	case t.To == domain.StatusDegraded:
		return t.From == domain.StatusUp || t.From == domain.StatusUnknown
	}
	return false
}
