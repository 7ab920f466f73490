package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPPublisher mirrors domain events onto a RabbitMQ topic exchange so
// other back-office services can consume them. The routing key is the
// event name, e.g. "vehicle.created".
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, exchange: exchange}, nil
}

// Register subscribes the publisher to every domain topic on the bus.
func (p *AMQPPublisher) Register(bus *Bus) error {
	return bus.SubscribeAll(p.publish)
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

func (p *AMQPPublisher) publish(evt Event) {
	ch, err := p.conn.Channel()
	if err != nil {
		zap.L().Warn("amqp channel open failed", zap.Error(err))
		return
	}
	defer ch.Close()

	body, err := json.Marshal(evt)
	if err != nil {
		zap.L().Error("amqp event marshal failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx, p.exchange, evt.Name, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		zap.L().Warn("amqp publish failed",
			zap.String("event", evt.Name),
			zap.String("tenantId", evt.TenantID),
			zap.Error(err))
	}
}
