package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/next-trace/scg-projector/codec"
	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

// TypeHeader carries the registered message type name.
const TypeHeader = "type"

// Msg is a transport message as seen by the adapter.
type Msg struct {
	Subject string
	Data    []byte
	Headers map[string]string
}

// Client is a minimal NATS-like subscription interface decoupled from any concrete library.
// Next blocks until a message arrives or ctx is done. Returning ErrSourceClosed ends consumption.
type Client interface {
	Next(ctx context.Context) (Msg, error)
}

// Publisher is a minimal NATS-like publisher interface.
type Publisher interface {
	// Publish publishes a message to a subject with optional headers.
	Publish(subject string, data []byte, headers map[string]string) error
}

// Adapter implements projection.Source over an injected Client and decodes payloads with Codec.
type Adapter struct {
	Client    Client
	Publisher Publisher // optional, used by Publish
	Codec     *codec.Registry
}

// Ensure Adapter implements the source contract.
var _ projection.Source = (*Adapter)(nil)

// New creates a new NATS adapter instance with the provided client and codec.
func New(c Client, reg *codec.Registry) *Adapter { return &Adapter{Client: c, Codec: reg} }

// Consume decodes each received message and hands it to sink as a single-message batch.
// It returns nil once the client reports ErrSourceClosed, and stops at the first decode or sink error.
func (a *Adapter) Consume(ctx context.Context, sink projection.Sink) error {
	if err := a.ready(ctx, "consume"); err != nil {
		return err
	}

	for {
		m, err := a.Client.Next(ctx)
		if err != nil {
			if errors.Is(err, perr.ErrSourceClosed) {
				return nil
			}

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			return fmt.Errorf("nats consume next: %w", errors.Join(perr.ErrConsumeFailed, err))
		}

		msg, err := a.Codec.Decode(typeName(m), m.Data)
		if err != nil {
			return fmt.Errorf("nats consume %s: %w", m.Subject, err)
		}

		if err := sink(ctx, []projection.Message{msg}); err != nil {
			return err
		}
	}
}

// Publish encodes msg with the codec and publishes it to subject, tagging it with TypeHeader.
func (a *Adapter) Publish(ctx context.Context, subject string, msg projection.Message, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Publisher == nil || a.Codec == nil {
		return fmt.Errorf("nats publish: %w", perr.ErrInvalidArgument)
	}

	name, body, err := a.Codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("nats publish serialize: %w", err)
	}

	if err := a.Publisher.Publish(subject, body, withType(headers, name)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats publish: %w", errors.Join(perr.ErrPublishFailed, err))
	}

	return nil
}

func (a *Adapter) ready(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Client == nil || a.Codec == nil {
		return fmt.Errorf("nats %s: %w", label, perr.ErrInvalidArgument)
	}

	return nil
}

// helpers

// typeName prefers the type header and falls back to the last subject token.
func typeName(m Msg) string {
	if t := m.Headers[TypeHeader]; t != "" {
		return t
	}

	if i := strings.LastIndexByte(m.Subject, '.'); i >= 0 {
		return m.Subject[i+1:]
	}

	return m.Subject
}

func withType(headers map[string]string, name string) map[string]string {
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}

	h[TypeHeader] = name

	return h
}
