package helpers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// publishTimeout bounds a single publish so a wedged broker connection
// cannot block a request handler waiting on flow control.
const publishTimeout = 5 * time.Second

// RabbitPublisher owns an AMQP connection and a durable queue for
// enqueueing JSON jobs. Publish failures are returned to the caller, who
// decides whether the job is best-effort.
type RabbitPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// durable so jobs survive a broker restart; the worker declares with
	// the same flags so either side can start first
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// PublishJSON enqueues body as a persistent JSON message, tagged with a
// message id so duplicate deliveries can be traced in the worker logs.
func (p *RabbitPublisher) PublishJSON(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}

func (p *RabbitPublisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
