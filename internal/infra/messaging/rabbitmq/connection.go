package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mkrupp/storefront/internal/infra/logging"
)

const (
	// ExchangeName is the topic exchange order events are published to.
	ExchangeName = "storefront.orders"
	// ExchangeType is the AMQP type of ExchangeName.
	ExchangeType = "topic"
)

// Config holds the broker connection parameters. An empty URL disables publishing.
type Config struct {
	URL        string        `env:"URL" default:""`
	Exchange   string        `env:"EXCHANGE" default:"storefront.orders"`
	Attempts   int           `env:"ATTEMPTS" default:"5"`
	RetryDelay time.Duration `env:"RETRY_DELAY" default:"2s"`
}

// Enabled reports whether a broker URL is configured.
func (cfg Config) Enabled() bool {
	return cfg.URL != ""
}

// SetupConn dials the broker, retrying while it starts up, and declares the exchange.
func SetupConn(ctx context.Context, cfg Config) (_ *amqp.Connection, _ *amqp.Channel, err error) {
	log := logging.GetLogger("infra.messaging.rabbitmq")

	var conn *amqp.Connection

	for attempt := 1; ; attempt++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			break
		}

		if attempt >= max(cfg.Attempts, 1) {
			return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
		}

		log.WarnContext(ctx, "dial rabbitmq failed", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("dial rabbitmq: %w", ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = ExchangeName
	}

	err = ch.ExchangeDeclare(
		exchange,     // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = conn.Close()

		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.InfoContext(ctx, "connected", "exchange", exchange)

	return conn, ch, nil
}
