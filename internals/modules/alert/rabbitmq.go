package alert

import (
	"context"

	"healthmon/internals/domain"
	"healthmon/pkg/rabbitmq"
)

const EventType = "service.status_changed"

type publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// RabbitNotifier publishes the event to an exchange with publisher confirms.
// The routing key is suffixed with the new status so consumers can bind to
// outages only.
type RabbitNotifier struct {
	pub        publisher
	routingKey string
}

func NewRabbitNotifier(pub *rabbitmq.Publisher, routingKey string) *RabbitNotifier {
	return &RabbitNotifier{pub: pub, routingKey: routingKey}
}

func (n *RabbitNotifier) Name() string { return "rabbitmq" }

func (n *RabbitNotifier) Notify(ctx context.Context, ev domain.AlertEvent) domain.DeliveryResult {
	body, err := rabbitmq.NewEvent(ev.ID, EventType, ev)
	if err != nil {
		return domain.DeliveryFailed(err.Error())
	}
	if err := n.pub.Publish(ctx, n.routingKey+"."+statusType(ev), body); err != nil {
		return domain.DeliveryFailed(err.Error())
	}
	return domain.Delivered()
}
