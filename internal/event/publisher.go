package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher writes persistent JSON messages to durable queues.
// amqp channels are not safe for concurrent publishing, so calls are serialised.
type Publisher struct {
	ch      channel
	healthy func() bool

	mu                sync.Mutex
	declared          map[string]bool
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

func NewPublisher(conn *RabbitMQConnection) *Publisher {
	p := newPublisher(conn.Channel, conn.IsHealthy)
	p.markDeclared(conn.Queues)
	return p
}

func (p *Publisher) markDeclared(queues []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, q := range queues {
		p.declared[q] = true
	}
}

func newPublisher(ch channel, healthy func() bool) *Publisher {
	return &Publisher{
		ch:       ch,
		healthy:  healthy,
		declared: make(map[string]bool),
	}
}

func (p *Publisher) PublishJSON(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("failed to marshal event for %s: %w", queue, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[queue] {
		_, err := p.ch.QueueDeclare(
			queue, // queue name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			p.messagesFailed++
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
		p.declared[queue] = true
	}

	err = p.ch.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key (queue name)
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	p.messagesPublished++
	p.lastPublishTime = time.Now()
	return nil
}

func (p *Publisher) recordFailure() {
	p.mu.Lock()
	p.messagesFailed++
	p.mu.Unlock()
}

func (p *Publisher) HealthCheck() PublisherHealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PublisherHealthStatus{
		IsHealthy:         p.healthy == nil || p.healthy(),
		MessagesPublished: p.messagesPublished,
		MessagesFailed:    p.messagesFailed,
		LastPublishTime:   p.lastPublishTime,
	}
}

// ClaimEventPublisher announces filed claims to reporting and to the farmer's devices.
type ClaimEventPublisher struct {
	publisher *Publisher
}

func NewClaimEventPublisher(publisher *Publisher) *ClaimEventPublisher {
	return &ClaimEventPublisher{publisher: publisher}
}

func (c *ClaimEventPublisher) PublishClaimSubmitted(ctx context.Context, evt ClaimSubmittedEvent) error {
	if err := c.publisher.PublishJSON(ctx, ClaimSubmittedQueue, evt); err != nil {
		return err
	}

	slog.Info("Claim submitted event published",
		"queue", ClaimSubmittedQueue,
		"claim_number", evt.ClaimNumber,
		"session_id", evt.SessionID)
	return nil
}

func (c *ClaimEventPublisher) NotifyClaimSubmitted(ctx context.Context, evt ClaimSubmittedEvent) error {
	notification := NotificationEventPushModel{
		LstUserIds: []string{evt.SessionID},
		Title:      "Claim Submitted Successfully",
		Body: fmt.Sprintf("Your claim %s has been successfully registered. The local agriculture officer will visit your farm (Lat: %.4f) within 48 hours for final verification.",
			evt.ClaimNumber, evt.Latitude),
		Data: map[string]any{
			"type":         "crop_claim_submitted",
			"claim_number": evt.ClaimNumber,
			"status":       evt.Status,
		},
	}

	if err := c.publisher.PublishJSON(ctx, PushNotiQueue, notification); err != nil {
		return err
	}

	slog.Info("Notification event published",
		"queue", PushNotiQueue,
		"title", notification.Title,
		"user_count", len(notification.LstUserIds))
	return nil
}
