package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hilthontt/interchange/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQ is a Log on a fanout exchange. Each subscriber gets its own
// exclusive queue bound to the exchange, so every node sees every record.
type RabbitMQ struct {
	conn     *amqp.Connection
	Channel  *amqp.Channel
	exchange string
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	consumers []*amqp.Channel
	failure   error
	closing   bool
}

func NewRabbitMQ(uri, exchange string, logger *zap.SugaredLogger) (*RabbitMQ, error) {
	if exchange == "" {
		exchange = "interchange"
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to RabbitMQ: %v", domain.ErrLogUnavailable, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %v", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %v", exchange, err)
	}

	return &RabbitMQ{
		conn:     conn,
		Channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (r *RabbitMQ) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return r.Channel.PublishWithContext(ctx,
		r.exchange, // exchange
		rec.Room,   // routing key, ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Transient,
			Type:         string(rec.Kind),
		},
	)
}

func (r *RabbitMQ) Subscribe(ctx context.Context, handler Handler) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: failed to create consumer channel: %v", domain.ErrLogUnavailable, err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare queue: %v", err)
	}

	if err := ch.QueueBind(q.Name, "", r.exchange, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("failed to bind queue to %s: %v", r.exchange, err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	deliveries, err := ch.ConsumeWithContext(ctx,
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to consume %s: %v", q.Name, err)
	}

	r.mu.Lock()
	r.consumers = append(r.consumers, ch)
	r.mu.Unlock()

	go r.consume(ctx, q.Name, deliveries, closed, handler)

	return nil
}

// consume runs until deliveries closes. Ending while ctx is live and the log
// is not being closed means the broker dropped us; Ping reports it from then on.
func (r *RabbitMQ) consume(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error, handler Handler) {
	for d := range deliveries {
		var rec Record
		if err := json.Unmarshal(d.Body, &rec); err != nil {
			r.logger.Warnw("skipping malformed log entry", "tag", d.DeliveryTag, "error", err)
			continue
		}
		rec.ID = fmt.Sprintf("%s-%d", queue, d.DeliveryTag)

		if err := handler(ctx, rec); err != nil {
			r.logger.Warnw("log entry handler failed", "id", rec.ID, "error", err)
		}
	}

	if ctx.Err() != nil {
		return
	}

	reason := errors.New("delivery channel closed")
	select {
	case amqpErr, ok := <-closed:
		if ok && amqpErr != nil {
			reason = amqpErr
		}
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return
	}
	r.failure = fmt.Errorf("%w: consumer on %s stopped: %v", domain.ErrLogUnavailable, queue, reason)
	r.logger.Errorw("shared log consumer stopped, cross-node delivery is down", "queue", queue, "error", reason)
}

func (r *RabbitMQ) Ping(ctx context.Context) error {
	r.mu.Lock()
	failure := r.failure
	r.mu.Unlock()
	if failure != nil {
		return failure
	}

	if r.conn == nil || r.conn.IsClosed() {
		return domain.ErrLogUnavailable
	}
	if r.Channel == nil || r.Channel.IsClosed() {
		return fmt.Errorf("%w: publish channel closed", domain.ErrLogUnavailable)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	r.closing = true
	for _, ch := range r.consumers {
		ch.Close()
	}
	r.consumers = nil
	r.mu.Unlock()

	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
