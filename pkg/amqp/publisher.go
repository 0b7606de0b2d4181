package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher writes JSON messages to durable queues on the default exchange.
// Queues are declared on first use.
type Publisher struct {
	mu         sync.Mutex
	ch         Channel
	declared   map[string]struct{}
	deadLetter bool
	closed     bool
	now        func() time.Time
}

type PublisherOption func(*Publisher)

// WithDeadLetter declares a "<queue>.dlq" companion for every queue.
func WithDeadLetter(enabled bool) PublisherOption {
	return func(p *Publisher) { p.deadLetter = enabled }
}

func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) { p.now = now }
}

func NewPublisher(ch Channel, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		ch:       ch,
		declared: make(map[string]struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPublisherFromConn opens a channel on conn.
func NewPublisherFromConn(conn *amqp.Connection, cfg Config) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Join(ErrFailedToConnect, err)
	}
	return NewPublisher(ch, WithDeadLetter(cfg.DeadLetter)), nil
}

// Message is what Publish sends. Body is JSON encoded.
type Message struct {
	ID      string
	Type    string
	Body    any
	Headers map[string]any
	// Priority maps to the AMQP priority field (0-9).
	Priority uint8
}

// Publish returns the message id.
func (p *Publisher) Publish(ctx context.Context, queue string, msg Message) (string, error) {
	if queue == "" {
		return "", ErrEmptyQueue
	}
	body, err := json.Marshal(msg.Body)
	if err != nil {
		return "", errors.Join(ErrEncodeMessage, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrPublisherClosed
	}
	if err := p.declare(queue); err != nil {
		p.mu.Unlock()
		return "", err
	}
	ch := p.ch
	p.mu.Unlock()

	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Type:         msg.Type,
		Timestamp:    p.now().UTC(),
		Priority:     msg.Priority,
		Headers:      amqp.Table(msg.Headers),
		Body:         body,
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", queue, err)
	}
	return id, nil
}

// declare must be called with p.mu held.
func (p *Publisher) declare(queue string) error {
	if _, ok := p.declared[queue]; ok {
		return nil
	}
	var args amqp.Table
	if p.deadLetter {
		dlq := queue + ".dlq"
		if _, err := p.ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlq, err)
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlq,
		}
	}
	if _, err := p.ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	p.declared[queue] = struct{}{}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.ch.Close()
}
