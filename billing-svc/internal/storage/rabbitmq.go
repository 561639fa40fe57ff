package storage

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"smartbill/billing-svc/internal/domain"
)

// AMQPChannel is the subset of *amqp.Channel used for publishing.
type AMQPChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher sends billing events to a topic exchange with routing key
// "billing.<event type>".
type RabbitPublisher struct {
	mu       sync.Mutex
	channel  AMQPChannel
	exchange string
}

func NewRabbitPublisher(channel AMQPChannel, exchange string) (*RabbitPublisher, error) {
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	return &RabbitPublisher{channel: channel, exchange: exchange}, nil
}

func (p *RabbitPublisher) PublishEvent(ctx context.Context, event domain.BillingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encode billing event")
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, p.exchange, "billing."+string(event.Type), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Body:         body,
	})
}

func (p *RabbitPublisher) Close() error {
	return p.channel.Close()
}
