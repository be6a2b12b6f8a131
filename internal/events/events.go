package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iurnickita/tiffintrails/internal/events/config"
	"github.com/iurnickita/tiffintrails/internal/model"
)

const (
	ordersExchange  = "orders_topic"
	orderCreatedKey = "orders.created"
)

// Publisher рассылает события о принятых заказах.
// Без настроенного RabbitMQ превращается в no-op.
type Publisher interface {
	OrderCreated(ctx context.Context, order model.Order) error
}

func NewPublisher(cfg config.Config, zaplog *zap.Logger) (Publisher, error) {
	if cfg.RabbitURL == "" {
		return noopPublisher{}, nil
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(ordersExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	zaplog.Info("order events enabled")
	return &amqpPublisher{conn: conn, ch: ch}, nil
}

type amqpPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func (p *amqpPublisher) OrderCreated(ctx context.Context, order model.Order) error {
	body, err := json.Marshal(order)
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx, ordersExchange, orderCreatedKey, false, false,
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			ContentType:   "application/json",
			Timestamp:     time.Now().UTC(),
			CorrelationId: order.ID,
			Body:          body,
		})
}

type noopPublisher struct{}

func (noopPublisher) OrderCreated(ctx context.Context, order model.Order) error { return nil }
