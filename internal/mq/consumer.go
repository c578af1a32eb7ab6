package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/septivank/farm-telemetry/internal/apperr"
)

// MessageHandler processes one message body. A non-nil error dead-letters
// the message.
type MessageHandler func(ctx context.Context, body []byte) error

// ConsumerConfig holds consumer topology and handler
type ConsumerConfig struct {
	Connection    *Connection
	Queue         string
	DLQQueue      string
	Exchange      string
	RoutingKey    string
	PrefetchCount int
	Logger        *zap.Logger
	Handler       MessageHandler
}

// Consumer delivers queued ingestion payloads to a handler
type Consumer struct {
	channel  *amqp.Channel
	queue    string
	prefetch int
	logger   *zap.Logger
	handler  MessageHandler
	started  bool
	done     chan struct{}
}

// NewConsumer opens a channel and declares the ingest topology
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := declareIngestTopology(ch, cfg); err != nil {
		ch.Close()
		return nil, err
	}

	return &Consumer{
		channel:  ch,
		queue:    cfg.Queue,
		prefetch: cfg.PrefetchCount,
		logger:   cfg.Logger,
		handler:  cfg.Handler,
		done:     make(chan struct{}),
	}, nil
}

// declareIngestTopology declares the exchange, the DLQ and the ingest queue
// dead-lettering into it.
func declareIngestTopology(ch *amqp.Channel, cfg ConsumerConfig) error {
	if err := declareExchange(ch, cfg.Exchange); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(cfg.DLQQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DLQQueue,
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// Start begins consuming until ctx is cancelled or the channel closes
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.started = true
	c.logger.Info("consumer started",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetch),
	)

	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("delivery channel closed")
					return
				}
				c.handle(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	logger := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("message_id", msg.MessageId),
	)

	if err := c.handler(ctx, msg.Body); err != nil {
		logger.Warn("message rejected, dead-lettering",
			zap.Error(err),
			zap.String("kind", string(apperr.KindOf(err))),
		)
		// requeue=false routes to the DLQ
		if nackErr := msg.Nack(false, false); nackErr != nil {
			logger.Error("failed to NACK message", zap.Error(nackErr))
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("failed to ACK message", zap.Error(err))
		return
	}
	logger.Debug("message ingested")
}

// Close closes the channel and waits for the delivery loop to exit
func (c *Consumer) Close() error {
	err := c.channel.Close()
	if c.started {
		<-c.done
	}
	return err
}
