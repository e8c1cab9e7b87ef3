package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher delivers recipe events. Publishing is best effort: callers log
// failures and never fail the request that produced the event.
type Publisher interface {
	PublishRecipeEvent(ctx context.Context, ev RecipeEvent) error
}

// NoopPublisher drops every event. It is used when AMQP_URL is unset.
type NoopPublisher struct{}

func (NoopPublisher) PublishRecipeEvent(context.Context, RecipeEvent) error { return nil }

// AMQPPublisher publishes persistent JSON messages to RecipeEventQueue
// through the default exchange. The connection is opened lazily and
// re-dialed after it drops.
type AMQPPublisher struct {
	url    string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher returns a publisher for url. No connection is made
// until the first event.
func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{url: url, logger: logger}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: dial: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(RecipeEventQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

// PublishRecipeEvent marshals ev and publishes it as a persistent message.
func (p *AMQPPublisher) PublishRecipeEvent(ctx context.Context, ev RecipeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		p.logger.Warn("rabbitmq unavailable", "error", err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", RecipeEventQueue, false, false, pub); err != nil {
		p.logger.Warn("rabbitmq publish failed", "type", ev.Type, "recipe_id", ev.RecipeID, "error", err)
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
