package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/septivank/telemetry-insight-worker/internal/rollup"
	"go.uber.org/zap"
)

// Publisher fans out engine events to RabbitMQ. Publishing is
// best-effort for every caller: failures are logged upstream, never
// propagated into query or rollup results.
type Publisher struct {
	conn              *Connection
	channel           *amqp.Channel
	exchange          string
	anomalyRoutingKey string
	rollupRoutingKey  string
	logger            *zap.Logger
}

// PublisherConfig holds publisher settings.
type PublisherConfig struct {
	Exchange          string
	AnomalyRoutingKey string
	RollupRoutingKey  string
}

// NewPublisher creates a publisher on its own channel and declares the
// events exchange.
func NewPublisher(conn *Connection, cfg PublisherConfig, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:              conn,
		channel:           ch,
		exchange:          cfg.Exchange,
		anomalyRoutingKey: cfg.AnomalyRoutingKey,
		rollupRoutingKey:  cfg.RollupRoutingKey,
		logger:            logger,
	}, nil
}

// AnomalyEvent is published when live detection flags a reading.
type AnomalyEvent struct {
	FieldID   string  `json:"field_id"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
	Message   string  `json:"message"`
}

// RollupEvent is published after a successful aggregation run.
type RollupEvent struct {
	RunID           string  `json:"run_id"`
	Mode            string  `json:"mode"`
	AffectedRows    int64   `json:"affected_rows"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PublishAnomalyEvent publishes one detected anomaly.
func (p *Publisher) PublishAnomalyEvent(ctx context.Context, fieldID uuid.UUID, value float64, ts time.Time, message string) error {
	event := AnomalyEvent{
		FieldID:   fieldID.String(),
		Value:     value,
		Timestamp: ts.Format(time.RFC3339),
		Message:   message,
	}
	if err := p.publish(ctx, p.anomalyRoutingKey, event); err != nil {
		return err
	}
	p.logger.Debug("published anomaly event",
		zap.String("routing_key", p.anomalyRoutingKey),
		zap.String("field_id", event.FieldID))
	return nil
}

// PublishRollupEvent publishes one completed aggregation run.
func (p *Publisher) PublishRollupEvent(ctx context.Context, runID string, result rollup.Result) error {
	event := RollupEvent{
		RunID:           runID,
		Mode:            result.Mode,
		AffectedRows:    result.AffectedRows,
		DurationSeconds: result.Duration.Seconds(),
	}
	if err := p.publish(ctx, p.rollupRoutingKey, event); err != nil {
		return err
	}
	p.logger.Debug("published rollup event",
		zap.String("routing_key", p.rollupRoutingKey),
		zap.String("run_id", runID),
		zap.Int64("affected_rows", result.AffectedRows))
	return nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
