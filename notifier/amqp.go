package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"nobroker_watchdog/models"
)

// AMQPChannel publishes alert JSON to a RabbitMQ queue so downstream
// consumers (dashboards, bots) can pick them up. It redials lazily: a
// dropped connection is reopened on the next Send.
type AMQPChannel struct {
	URL       string
	QueueName string

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPChannel(url, queueName string) *AMQPChannel {
	return &AMQPChannel{URL: url, QueueName: queueName}
}

func (c *AMQPChannel) Name() string { return "QUEUE" }

func (c *AMQPChannel) Send(ctx context.Context, payload *models.AlertPayload) error {
	if err := c.ensureChannel(); err != nil {
		return fmt.Errorf("amqp connect: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("amqp marshal: %w", err)
	}

	err = c.ch.PublishWithContext(ctx, "", c.QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		// Force a redial on the next attempt.
		c.Close()
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (c *AMQPChannel) ensureChannel() error {
	if c.ch != nil && !c.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if _, err := ch.QueueDeclare(c.QueueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.conn = conn
	c.ch = ch
	return nil
}

func (c *AMQPChannel) Close() {
	if c.ch != nil {
		c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
