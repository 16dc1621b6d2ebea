package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/fintrack/internal/logging"
)

// Feed publishes local store changes and delivers remote ones, reconnecting
// with backoff when the broker goes away.
type Feed struct {
	url      string
	exchange string
	queue    string
	origin   string
	onRemote func(ChangeMessage)
	log      logrus.FieldLogger

	outbox chan ChangeMessage
}

// NewFeed creates a feed. onRemote is called for changes made by other
// processes; changes this process published are not echoed back.
func NewFeed(url, exchange, queue string, onRemote func(ChangeMessage), logger logrus.FieldLogger) *Feed {
	return &Feed{
		url:      url,
		exchange: exchange,
		queue:    queue,
		origin:   uuid.NewString(),
		onRemote: onRemote,
		log:      logging.Component(logger, "notify"),
		outbox:   make(chan ChangeMessage, 256),
	}
}

// Origin returns the id this process stamps on its messages.
func (f *Feed) Origin() string {
	return f.origin
}

// Enqueue queues a local change for publishing. It never blocks; when the
// outbox is full the change is dropped, since receivers also poll.
// Its signature matches docstore.ChangeFunc.
func (f *Feed) Enqueue(collection, id string) {
	select {
	case f.outbox <- NewChangeMessage(f.origin, collection, id):
	default:
		f.log.WithField("collection", collection).Warn("change outbox full, dropping notification")
	}
}

// Run keeps a broker session alive until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	attempt := 0
	for {
		client, err := Dial(f.url, f.exchange, f.queue)
		if err == nil {
			attempt = 0
			f.log.WithField("exchange", f.exchange).Info("change feed connected")
			err = f.session(ctx, client)
			_ = client.Close()
		}
		if ctx.Err() != nil {
			return nil
		}

		wait := exponentialBackoff(attempt)
		attempt++
		f.log.WithError(err).WithField("retry_in", wait).Warn("change feed disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (f *Feed) session(ctx context.Context, client *Client) error {
	msgs, err := client.Deliveries()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-f.outbox:
			if err := client.Publish(ctx, msg); err != nil {
				// Put it back for the next session if there is room.
				select {
				case f.outbox <- msg:
				default:
				}
				return err
			}
		case d, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			f.handle(d)
		}
	}
}

func (f *Feed) handle(d amqp091.Delivery) {
	if err := f.dispatch(d.Body); err != nil {
		f.log.WithError(err).Warn("bad change message")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// dispatch parses a message body and hands remote changes to onRemote.
func (f *Feed) dispatch(body []byte) error {
	msg, err := ChangeMessageFromJSON(body)
	if err != nil {
		return err
	}
	if msg.Origin == f.origin {
		return nil
	}
	f.log.WithFields(logrus.Fields{
		"collection": msg.Collection,
		"doc_id":     msg.DocumentID,
	}).Debug("remote change")
	if f.onRemote != nil {
		f.onRemote(msg)
	}
	return nil
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
