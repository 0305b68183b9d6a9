package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

var (
	ErrNilConnection  = errors.New("AMQP connection is nil")
	ErrNilChannel     = errors.New("AMQP channel is nil")
	ErrNacked         = errors.New("message was nacked by broker")
	ErrConfirmTimeout = errors.New("publish confirm timeout")
)

type Publisher struct {
	mu         sync.Mutex                  // one publish+confirm in flight per channel
	ch         *amqp091.Channel            // AMQP channel for publishing messages
	confirms   <-chan amqp091.Confirmation // Channel to receive publish confirmations
	exchange   string                      // Exchange to publish messages to
	routingKey string                      // Routing key for the messages
	seq        uint64                      // delivery tag of the last publish
}

func NewPublisher(conn *amqp091.Connection, exchange, routingKey string) (*Publisher, error) {

	if conn == nil {
		return nil, ErrNilConnection
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, err
	}

	confirms := ch.NotifyPublish(make(chan amqp091.Confirmation, 16))

	return &Publisher{
		ch:         ch,
		confirms:   confirms,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// Publish sends body and waits for the broker confirm, bounded by ctx.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if p.ch == nil {
		return ErrNilChannel
	}
	if routingKey == "" {
		routingKey = p.routingKey
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return err
	}
	p.seq++

	for {
		select {
		case confirm, ok := <-p.confirms:
			if !ok {
				return ErrNilChannel
			}
			// confirms left over from a publish that timed out
			if confirm.DeliveryTag < p.seq {
				continue
			}
			if !confirm.Ack {
				return ErrNacked
			}
			return nil
		case <-ctx.Done():
			return ErrConfirmTimeout
		}
	}
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}
