package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer reads RecipeEventQueue and appends one line per event to a log
// file (logs/recipe_events.log by default).
type Consumer struct {
	URL     string
	LogPath string
	Logger  *slog.Logger
}

// Run connects to the broker and consumes until ctx is cancelled. Broken
// connections are re-dialed with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join("logs", "recipe_events.log")
	}

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			logger.Warn("recipe-consumer: failed to dial broker", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("recipe-consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("recipe-consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(RecipeEventQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(RecipeEventQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				logger.Error("recipe-consumer: handle message failed", "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev RecipeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return writeLine(f, ev)
}

func writeLine(w io.Writer, ev RecipeEvent) error {
	if _, err := io.WriteString(w, formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// formatLine renders one human-friendly log line for ev.
func formatLine(ev RecipeEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | recipe_id=%d | owner_id=%d",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.RecipeID, ev.OwnerID)
	if ev.Title != "" {
		fmt.Fprintf(&b, " | title=%q", ev.Title)
	}
	if len(ev.Tags) > 0 {
		fmt.Fprintf(&b, " | tags=[%s]", strings.Join(ev.Tags, ","))
	}
	if len(ev.Ingredients) > 0 {
		fmt.Fprintf(&b, " | ingredients=[%s]", strings.Join(ev.Ingredients, ","))
	}
	if ev.Image != "" {
		fmt.Fprintf(&b, " | image=%s", ev.Image)
	}
	b.WriteByte('\n')
	return b.String()
}
