// Package mq connects the service to RabbitMQ: a consumer that feeds queued
// payloads into ingestion and a publisher for accepted-reading events.
package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Connection wraps a RabbitMQ connection
type Connection struct {
	conn   *amqp.Connection
	logger *zap.Logger
}

// Dial connects to url, retrying with exponential backoff for up to maxWait.
func Dial(ctx context.Context, url string, maxWait time.Duration, logger *zap.Logger) (*Connection, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxWait

	var conn *amqp.Connection
	err := backoff.RetryNotify(func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		logger.Warn("rabbitmq dial failed, retrying", zap.Error(err), zap.Duration("retry_in", next))
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to RabbitMQ (check RABBITMQ_URL and broker availability): %w", err)
	}

	c := &Connection{conn: conn, logger: logger}
	go c.watch()
	return c, nil
}

// NewConnection dials the broker and closes the connection on stop
func NewConnection(lc fx.Lifecycle, logger *zap.Logger, url string) (*Connection, error) {
	logger.Info("connecting to RabbitMQ")

	conn, err := Dial(context.Background(), url, 20*time.Second, logger)
	if err != nil {
		logger.Error("rabbitmq connection failed", zap.Error(err))
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("rabbitmq connection established")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return conn.Close()
		},
	})

	return conn, nil
}

// Channel opens a new channel on the connection
func (c *Connection) Channel() (*amqp.Channel, error) {
	return c.conn.Channel()
}

// Close closes the connection
func (c *Connection) Close() error {
	if c.conn.IsClosed() {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Error("failed to close rabbitmq connection", zap.Error(err))
		return err
	}
	c.logger.Info("rabbitmq connection closed")
	return nil
}

// watch logs unexpected connection loss.
func (c *Connection) watch() {
	closed := c.conn.NotifyClose(make(chan *amqp.Error, 1))
	if err, ok := <-closed; ok && err != nil {
		c.logger.Error("rabbitmq connection lost",
			zap.String("reason", err.Reason),
			zap.Int("code", err.Code),
		)
	}
}
