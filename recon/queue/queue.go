// Package queue carries run-trigger commands and run-completed events over
// RabbitMQ. The daemon listens on a trigger queue and publishes each run's
// stats to an event queue when it finishes.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"
)

// MessageProcessor handles one message body.
type MessageProcessor func(msg string)

// Send publishes one message to the named queue.
func Send(amqpURL, qName, message string) error {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(qName, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue '%s': %w", qName, err)
	}

	err = ch.Publish("", q.Name, false, false, amqp.Publishing{
		ContentType: "text/plain",
		Body:        []byte(message),
	})
	if err != nil {
		return fmt.Errorf("publish to '%s': %w", qName, err)
	}

	slog.Debug("Sent message to queue", "queue", qName)
	return nil
}

// ListenWithRetry consumes the named queue, reconnecting with exponential
// backoff (1s doubling to a 30s cap) whenever the broker drops the
// connection. Messages are processed sequentially: a trigger must not start
// a second run while one is active. The listener stops when ctx is
// cancelled.
func ListenWithRetry(ctx context.Context, amqpURL, qName string, processor MessageProcessor) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			slog.Info("Listener shutting down", "queue", qName)
			return
		}

		err := listenOnce(ctx, amqpURL, qName, processor)
		if ctx.Err() != nil {
			slog.Info("Listener stopped", "queue", qName)
			return
		}

		if err != nil {
			slog.Warn("Listener error, retrying", "queue", qName, "error", err, "backoff", backoff)
		} else {
			slog.Info("Listener disconnected, reconnecting", "queue", qName)
			backoff = time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func listenOnce(ctx context.Context, amqpURL, qName string, processor MessageProcessor) error {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(qName, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue '%s': %w", qName, err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer on '%s': %w", qName, err)
	}

	slog.Info("Connected to queue", "queue", qName)

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-connClosed:
			if amqpErr != nil {
				return fmt.Errorf("connection closed: %s", amqpErr.Error())
			}
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			processor(string(msg.Body))
		}
	}
}
