package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const mailQueueName = "outbound.mail"

// MailPublisher pushes mail messages onto the durable outbound.mail queue.
// A connection is dialed per publish; notification volume is a handful of
// messages per booking, not a throughput concern, and it keeps the
// publisher free of reconnect state.
type MailPublisher struct {
	url      string
	log      *zap.Logger
	fallback Sender
}

// NewMailPublisher takes an optional fallback sender used for direct
// delivery when the broker is unreachable, so mail degrades instead of
// silently disappearing.
func NewMailPublisher(url string, fallback Sender, log *zap.Logger) *MailPublisher {
	return &MailPublisher{url: url, fallback: fallback, log: log}
}

// Publish enqueues one message.  Errors are logged and returned; callers on
// the request path ignore them, since losing a notification must never fail
// the booking that triggered it.
func (p *MailPublisher) Publish(ctx context.Context, msg MailMessage) error {
	msg.QueuedAt = time.Now().UTC().Format(time.RFC3339)

	if err := p.publish(ctx, msg); err != nil {
		if p.fallback != nil {
			p.log.Warn("mail publish failed, sending directly", zap.String("kind", msg.Kind), zap.Error(err))
			go func(m MailMessage) {
				if err := p.fallback.Send(m.To, m.Subject, m.Body); err != nil {
					p.log.Error("direct mail fallback failed", zap.String("kind", m.Kind), zap.Error(err))
				}
			}(msg)
			return nil
		}
		return err
	}
	return nil
}

func (p *MailPublisher) publish(ctx context.Context, msg MailMessage) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("mail publish: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("mail publish: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so queued mail survives a broker restart.
	if _, err := ch.QueueDeclare(mailQueueName, true, false, false, false, nil); err != nil {
		p.log.Warn("mail publish: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", mailQueueName, false, false, pub); err != nil {
		p.log.Warn("mail publish failed", zap.String("kind", msg.Kind), zap.Error(err))
		return err
	}
	return nil
}
