package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"github.com/next-trace/scg-projector/codec"
	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

// TypeHeader carries the registered message type name when the AMQP type property is empty.
const TypeHeader = "type"

// Delivery is an AMQP delivery as seen by the adapter. Ack and Nack settle it with the broker.
type Delivery struct {
	Type    string
	Body    []byte
	Headers map[string]string
	Ack     func() error
	Nack    func(requeue bool) error
}

// Client is a minimal AMQP-like consumer interface decoupled from any concrete library.
// The returned channel is closed when the consumer is cancelled or the connection drops.
type Client interface {
	Deliveries(ctx context.Context) (<-chan Delivery, error)
}

// PubMsg is an outgoing AMQP message.
type PubMsg struct {
	Exchange   string
	RoutingKey string
	Type       string
	Body       []byte
	Headers    map[string]string
}

// Publisher is a minimal AMQP-like publisher interface.
type Publisher interface {
	Publish(ctx context.Context, m PubMsg) error
}

// Adapter implements projection.Source over an injected Client.
// Deliveries are acknowledged only after the sink accepted them.
type Adapter struct {
	Client     Client
	Publisher  Publisher // optional, used by Publish
	Codec      *codec.Registry
	Propagator projection.HeaderPropagator // optional, for context propagation through headers

	// RequeueOnFailure requeues a delivery the sink or codec rejected instead of dropping it.
	RequeueOnFailure bool
}

var _ projection.Source = (*Adapter)(nil)

func New(c Client, reg *codec.Registry) *Adapter { return &Adapter{Client: c, Codec: reg} }

// NewWithPropagator allows configuring a HeaderPropagator for context propagation.
func NewWithPropagator(c Client, reg *codec.Registry, hp projection.HeaderPropagator) *Adapter {
	return &Adapter{Client: c, Codec: reg, Propagator: hp}
}

// Consume hands each delivery to sink as a single-message batch, acking it on success.
// On a decode or sink failure the delivery is nacked and the failure returned.
// It returns nil when the delivery channel closes.
func (a *Adapter) Consume(ctx context.Context, sink projection.Sink) error {
	if err := a.ready(ctx, "consume"); err != nil {
		return err
	}

	deliveries, err := a.Client.Deliveries(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq consume: %w", errors.Join(perr.ErrConsumeFailed, err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}

			if err := a.handle(ctx, d, sink); err != nil {
				return err
			}
		}
	}
}

func (a *Adapter) handle(ctx context.Context, d Delivery, sink projection.Sink) error {
	msg, err := a.Codec.Decode(typeName(d), d.Body)
	if err != nil {
		return a.reject(d, fmt.Errorf("rabbitmq consume: %w", err))
	}

	if a.Propagator != nil {
		ctx = a.Propagator.Extract(ctx, d.Headers)
	}

	if err := sink(ctx, []projection.Message{msg}); err != nil {
		return a.reject(d, err)
	}

	if d.Ack != nil {
		if err := d.Ack(); err != nil {
			return fmt.Errorf("rabbitmq ack: %w", errors.Join(perr.ErrAckFailed, err))
		}
	}

	return nil
}

// reject nacks d and returns cause; a failing nack is joined to it.
func (a *Adapter) reject(d Delivery, cause error) error {
	if d.Nack == nil {
		return cause
	}

	if err := d.Nack(a.RequeueOnFailure); err != nil {
		return errors.Join(cause, fmt.Errorf("rabbitmq nack: %w", errors.Join(perr.ErrAckFailed, err)))
	}

	return cause
}

// Publish encodes msg and publishes it to the exchange with routingKey.
func (a *Adapter) Publish(ctx context.Context, exchange, routingKey string, msg projection.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Publisher == nil || a.Codec == nil {
		return fmt.Errorf("rabbitmq publish: %w", perr.ErrInvalidArgument)
	}

	name, body, err := a.Codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("rabbitmq publish serialize: %w", err)
	}

	hdrs := map[string]string{TypeHeader: name}
	// Inject tracing context via configured propagator (keeps adapter decoupled)
	if a.Propagator != nil {
		a.Propagator.Inject(ctx, hdrs)
	}

	m := PubMsg{
		Exchange:   exchange,
		RoutingKey: routingKey,
		Type:       name,
		Body:       body,
		Headers:    hdrs,
	}
	if err := a.Publisher.Publish(ctx, m); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq publish: %w", errors.Join(perr.ErrPublishFailed, err))
	}

	return nil
}

func (a *Adapter) ready(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Client == nil || a.Codec == nil {
		return fmt.Errorf("rabbitmq %s: %w", label, perr.ErrInvalidArgument)
	}

	return nil
}

func typeName(d Delivery) string {
	if d.Type != "" {
		return d.Type
	}

	return d.Headers[TypeHeader]
}
