package rabbitmq

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/next-trace/scg-projector/codec"
	perr "github.com/next-trace/scg-projector/contract/errors"
)

// Concrete AMQP connection-backed constructor and consumer wrapper.

const defaultMaxElapsed = 30 * time.Second

type Config struct {
	URL         string
	ConnTimeout time.Duration
	Queue       string
	ConsumerTag string
	Prefetch    int
	// MaxElapsed bounds the dial retries; zero means 30s.
	MaxElapsed time.Duration
}

// channel is the subset of *amqp.Channel the client uses.
type channel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var consumerSeq atomic.Uint64

type amqpClient struct {
	cfg  Config
	conn *amqp.Connection
	ch   channel
}

func (c *amqpClient) Deliveries(ctx context.Context) (<-chan Delivery, error) {
	tag := c.cfg.ConsumerTag
	if tag == "" {
		tag = fmt.Sprintf("scg-projector-%d-%d", os.Getpid(), consumerSeq.Add(1))
	}

	ds, err := c.ch.Consume(c.cfg.Queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, err
	}

	out := make(chan Delivery)

	go func() {
		defer close(out)

		for {
			select {
			case d, ok := <-ds:
				if !ok {
					return
				}

				select {
				case out <- convert(d):
				case <-ctx.Done():
					c.cancel(tag)
					return
				}
			case <-ctx.Done():
				c.cancel(tag)
				return
			}
		}
	}()

	return out, nil
}

// cancel deregisters the broker consumer so the tag can be reused by a later Deliveries call.
func (c *amqpClient) cancel(tag string) {
	_ = c.ch.Cancel(tag, false)
}

func (c *amqpClient) Publish(ctx context.Context, m PubMsg) error {
	var h amqp.Table
	if len(m.Headers) > 0 {
		h = amqp.Table{}
		for k, v := range m.Headers {
			h[k] = v
		}
	}

	return c.ch.PublishWithContext(
		ctx,
		m.Exchange,
		m.RoutingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Headers:      h,
			Type:         m.Type,
			ContentType:  "application/json",
			Body:         m.Body,
		},
	)
}

func (c *amqpClient) close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}

	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func convert(d amqp.Delivery) Delivery {
	var h map[string]string
	if len(d.Headers) > 0 {
		h = make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			h[k] = fmt.Sprint(v)
		}
	}

	return Delivery{
		Type:    d.Type,
		Body:    d.Body,
		Headers: h,
		Ack:     func() error { return d.Ack(false) },
		Nack:    func(requeue bool) error { return d.Nack(false, requeue) },
	}
}

func dial(ctx context.Context, cfg Config) (*amqp.Connection, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.MaxElapsed
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = defaultMaxElapsed
	}

	op := func() (*amqp.Connection, error) {
		return amqp.DialConfig(cfg.URL, amqp.Config{
			Locale:     "en_US",
			Properties: amqp.Table{"product": "scg-projector"},
			Dial:       amqp.DefaultDial(cfg.ConnTimeout),
		})
	}

	return backoff.RetryWithData(op, backoff.WithContext(b, ctx))
}

// NewWithAMQPConn dials RabbitMQ with exponential retry, applies the prefetch limit and returns
// an Adapter consuming cfg.Queue together with a cleanup.
func NewWithAMQPConn(ctx context.Context, cfg Config, reg *codec.Registry) (*Adapter, func(), error) {
	if cfg.URL == "" || cfg.Queue == "" {
		return nil, nil, fmt.Errorf("%w: rabbitmq url and queue required", perr.ErrInvalidArgument)
	}

	conn, err := dial(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: rabbitmq dial: %w", perr.ErrConsumeFailed, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("%w: rabbitmq channel: %w", perr.ErrConsumeFailed, err)
	}

	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()

			return nil, nil, fmt.Errorf("%w: rabbitmq qos: %w", perr.ErrConsumeFailed, err)
		}
	}

	cl := &amqpClient{cfg: cfg, conn: conn, ch: ch}
	ad := &Adapter{Client: cl, Publisher: cl, Codec: reg}

	return ad, cl.close, nil
}
