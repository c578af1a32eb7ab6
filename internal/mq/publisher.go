package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/septivank/farm-telemetry/internal/metrics"
	"github.com/septivank/farm-telemetry/internal/model"
)

// ReadingEvent is published for every accepted zone reading
type ReadingEvent struct {
	Zone          string   `json:"zone"`
	ZoneID        string   `json:"zoneId"`
	SoilMoisture  float64  `json:"soilMoisture"`
	Temperature   float64  `json:"temperature"`
	Humidity      float64  `json:"humidity"`
	GasLevel      *float64 `json:"gasLevel"`
	LightLevel    *float64 `json:"lightLevel"`
	ActuatorState string   `json:"actuatorState"`
	Timestamp     string   `json:"timestamp"`
}

// NewReadingEvent converts r to its wire form
func NewReadingEvent(r model.Reading) ReadingEvent {
	return ReadingEvent{
		Zone:          r.Zone,
		ZoneID:        r.ZoneID,
		SoilMoisture:  r.SoilMoisture,
		Temperature:   r.Temperature,
		Humidity:      r.Humidity,
		GasLevel:      r.GasLevel,
		LightLevel:    r.LightLevel,
		ActuatorState: string(r.ActuatorState),
		Timestamp:     r.Timestamp.Format(time.RFC3339Nano),
	}
}

// Publisher emits reading events to a topic exchange
type Publisher struct {
	mu         sync.Mutex
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// NewPublisher opens a channel and declares the events exchange
func NewPublisher(conn *Connection, exchange, routingKey string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		return nil, err
	}

	return &Publisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

// PublishReading publishes an accepted reading
func (p *Publisher) PublishReading(ctx context.Context, r model.Reading) error {
	body, err := json.Marshal(NewReadingEvent(r))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	p.mu.Unlock()

	if err != nil {
		metrics.EventsPublished.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()

	p.logger.Debug("published reading event",
		zap.String("routing_key", p.routingKey),
		zap.String("zone", r.Zone),
	)
	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}
