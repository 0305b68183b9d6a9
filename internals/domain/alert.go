package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertEvent is a notification-worthy transition. ID identifies the
// transition instance and is what duplicate suppression keys on.
type AlertEvent struct {
	ID         uuid.UUID     `json:"id"`
	Service    Service       `json:"service"`
	From       Status        `json:"from"`
	To         Status        `json:"to"`
	At         time.Time     `json:"at"`
	Latency    time.Duration `json:"latency_ns,omitempty"`
	ErrorClass ErrorClass    `json:"error_class,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// IsRecovery reports whether the event closes an outage.
func (e AlertEvent) IsRecovery() bool {
	return e.From == StatusDown && e.To == StatusUp
}

type DeliveryResult struct {
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
}

func Delivered() DeliveryResult {
	return DeliveryResult{Delivered: true}
}

func DeliveryFailed(reason string) DeliveryResult {
	return DeliveryResult{Reason: reason}
}
