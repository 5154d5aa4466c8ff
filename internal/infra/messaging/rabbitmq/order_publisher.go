package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mkrupp/storefront/internal/domain"
	"github.com/mkrupp/storefront/internal/infra/logging"
)

// RoutingKeyOrderPlaced is the routing key of order placement events.
const RoutingKeyOrderPlaced = "order.placed"

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) error
}

var _ Channel = (*amqp.Channel)(nil)

// OrderPublisher publishes placed orders as JSON to a topic exchange.
type OrderPublisher struct {
	ch       Channel
	exchange string
	log      logging.Logger
}

// NewOrderPublisher creates a new OrderPublisher. An empty exchange selects ExchangeName.
func NewOrderPublisher(ch Channel, exchange string) *OrderPublisher {
	if exchange == "" {
		exchange = ExchangeName
	}

	return &OrderPublisher{
		ch:       ch,
		exchange: exchange,
		log:      logging.GetLogger("infra.messaging.rabbitmq.order_publisher"),
	}
}

// PublishOrderPlaced publishes order under RoutingKeyOrderPlaced.
func (p *OrderPublisher) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,            // exchange
		RoutingKeyOrderPlaced, // routing key
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    order.ID,
			Timestamp:    time.UnixMilli(order.CreatedAt),
			Type:         RoutingKeyOrderPlaced,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyOrderPlaced, err)
	}

	p.log.DebugContext(ctx, "order published", "id", order.ID, "exchange", p.exchange)

	return nil
}
