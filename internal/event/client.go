// Package event publishes best-effort mutation notifications over
// AMQP for external consumers (dashboards, exporters). Publishing is
// fire-and-forget: a failed publish is logged and dropped, never
// queued or retried, and never affects the local mutation it follows.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"kakeibo/internal/log"
)

// redialBudget caps how long a background reconnect keeps trying
// before giving up until the next failed publish.
const redialBudget = 5 * time.Minute

type Client struct {
	url          string
	exchangeName string
	routingKey   string

	mu           sync.Mutex
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	redialing    bool
	redialCancel context.CancelFunc
}

func NewClient(url, exchangeName, routingKey string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		url:          url,
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		routingKey:   routingKey,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	return c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
}

// PublishRecordEvent publishes a single mutation notification. A nil
// client is a no-op, so callers can hold an optional publisher
// without guarding every call site. A connection-class failure kicks
// off a background redial; the event itself is still dropped.
func (c *Client) PublishRecordEvent(ctx context.Context, op, recordID string) error {
	if c == nil {
		return nil
	}

	body, err := NewRecordEvent(op, recordID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return fmt.Errorf("publish event: connection down")
	}

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.scheduleRedial()
		}
		return fmt.Errorf("publish event: %w", err)
	}

	slog.DebugContext(ctx, "Published record event",
		log.FieldComponent, log.ComponentEvent,
		"op", op,
		log.FieldRecordID, recordID,
		"exchange", c.exchangeName)

	return nil
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.redialCancel != nil {
		c.redialCancel()
	}
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// exponentialBackoff returns the wait before reconnect attempt n,
// capped at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Second << uint(attempt)
	if d > 30*time.Second || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// isConnectionError reports whether the error looks like a broken
// AMQP connection worth redialing.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
		"channel/connection is not open",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// scheduleRedial starts at most one background reconnect attempt.
// Further connection failures while it runs are absorbed.
func (c *Client) scheduleRedial() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.redialing {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redialBudget)
	c.redialing = true
	c.redialCancel = cancel

	go func() {
		defer cancel()
		if err := c.Redial(ctx); err != nil {
			slog.Warn("AMQP redial abandoned", log.FieldError, err)
		}
		c.mu.Lock()
		c.redialing = false
		c.redialCancel = nil
		c.mu.Unlock()
	}()
}

// Redial replaces the connection and channel after a connection-level
// failure, backing off between attempts until the context is done.
func (c *Client) Redial(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}

		conn, err := amqp091.Dial(c.url)
		if err != nil {
			slog.WarnContext(ctx, "AMQP redial failed", "attempt", attempt+1, log.FieldError, err)
			continue
		}
		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			slog.WarnContext(ctx, "AMQP channel reopen failed", "attempt", attempt+1, log.FieldError, err)
			continue
		}

		c.mu.Lock()
		old := c.conn
		c.conn = conn
		c.channel = channel
		c.mu.Unlock()
		if old != nil {
			old.Close()
		}

		if err := c.setup(); err != nil {
			c.Close()
			return fmt.Errorf("redeclare exchange: %w", err)
		}
		slog.InfoContext(ctx, "AMQP connection reestablished", "attempts", attempt+1)
		return nil
	}
}
