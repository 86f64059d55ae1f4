package event

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"crop-claim-service/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

const connectionName = "crop-claim-service"

// RabbitMQConnection holds the connection, its publishing channel and the queues
// declared on it at connect time.
type RabbitMQConnection struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
	Queues     []string
}

// amqpURL builds the broker URL; credentials are escaped so generated passwords work.
func amqpURL(cfg config.RabbitMQConfig) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Path:   "/",
	}
	return u.String()
}

// ConnectRabbitMQ dials the broker and declares the given durable queues, so a
// misconfigured broker fails at boot instead of on the first filed claim.
func ConnectRabbitMQ(cfg config.RabbitMQConfig, queues ...string) (*RabbitMQConnection, error) {
	conn, err := amqp.DialConfig(amqpURL(cfg), amqp.Config{
		Heartbeat:  10 * time.Second,
		Properties: amqp.Table{"connection_name": connectionName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareQueues(ch, queues); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	slog.Info("Connected to RabbitMQ", "host", cfg.Host, "port", cfg.Port, "queues", queues)

	return &RabbitMQConnection{
		Connection: conn,
		Channel:    ch,
		Queues:     queues,
	}, nil
}

func declareQueues(ch channel, queues []string) error {
	for _, queue := range queues {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}
	return nil
}

func (r *RabbitMQConnection) IsHealthy() bool {
	return r != nil && r.Connection != nil && !r.Connection.IsClosed() &&
		r.Channel != nil && !r.Channel.IsClosed()
}

func (r *RabbitMQConnection) Close() error {
	if r.Channel != nil && !r.Channel.IsClosed() {
		if err := r.Channel.Close(); err != nil {
			slog.Warn("failed to close RabbitMQ channel", "error", err)
		}
	}
	if r.Connection != nil && !r.Connection.IsClosed() {
		if err := r.Connection.Close(); err != nil {
			return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
		}
	}
	slog.Info("RabbitMQ connection closed")
	return nil
}
