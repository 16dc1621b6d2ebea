// Package notify carries collection change notifications between fintrack
// processes over AMQP, so a daemon sees writes made by other commands.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Client is one AMQP connection bound to the change exchange.
type Client struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	queue    string
}

// ErrPublishOnly is returned by Deliveries on a client from DialPublisher.
var ErrPublishOnly = errors.New("notify: client has no queue to consume")

// Dial connects to url and declares the fanout exchange. When queue is empty
// a private server-named queue is used, so every process sees every change.
func Dial(url, exchange, queue string) (*Client, error) {
	c, err := open(url, exchange)
	if err != nil {
		return nil, err
	}
	c.queue = queue
	if err := c.declareExchange(); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.bindQueue(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// DialPublisher connects to url and declares only the exchange. The client
// publishes but never consumes, so no queue is declared.
func DialPublisher(url, exchange string) (*Client, error) {
	c, err := open(url, exchange)
	if err != nil {
		return nil, err
	}
	if err := c.declareExchange(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func open(url, exchange string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Client{conn: conn, channel: channel, exchange: exchange}, nil
}

func (c *Client) declareExchange() error {
	err := c.channel.ExchangeDeclare(
		c.exchange, // name
		"fanout",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

func (c *Client) bindQueue() error {
	private := c.queue == ""
	q, err := c.channel.QueueDeclare(
		c.queue,  // name
		!private, // durable
		private,  // delete when unused
		private,  // exclusive
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	c.queue = q.Name

	err = c.channel.QueueBind(
		c.queue,    // queue name
		"",         // routing key, ignored by fanout
		c.exchange, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish sends a change message to the exchange.
func (c *Client) Publish(ctx context.Context, msg ChangeMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchange, // exchange
		"",         // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   msg.Timestamp,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Deliveries starts consuming the bound queue.
func (c *Client) Deliveries() (<-chan amqp091.Delivery, error) {
	if c.queue == "" {
		return nil, ErrPublishOnly
	}
	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("start consuming: %w", err)
	}
	return msgs, nil
}

// Close closes the channel and connection.
func (c *Client) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
