package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/next-trace/scg-projector/codec"
	perr "github.com/next-trace/scg-projector/contract/errors"
)

// Concrete NATS connection-backed Client and constructor.

type Config struct {
	URL           string
	Name          string
	ConnTimeout   time.Duration
	MaxReconnects int
	Subject       string // may contain wildcards, e.g. "projections.>"
	Queue         string // optional queue group
}

type natsClient struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

func (c natsClient) Next(ctx context.Context) (Msg, error) {
	m, err := c.sub.NextMsgWithContext(ctx)
	if err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
			return Msg{}, fmt.Errorf("nats next: %w", perr.ErrSourceClosed)
		}

		return Msg{}, err
	}

	var h map[string]string
	if len(m.Header) > 0 {
		h = make(map[string]string, len(m.Header))
		for k := range m.Header {
			h[k] = m.Header.Get(k)
		}
	}

	return Msg{Subject: m.Subject, Data: m.Data, Headers: h}, nil
}

func (c natsClient) Publish(subject string, data []byte, headers map[string]string) error {
	msg := &nats.Msg{Subject: subject, Data: data}

	var h nats.Header
	if len(headers) > 0 {
		h = nats.Header{}
		for k, v := range headers {
			h.Add(k, v)
		}
	}

	msg.Header = h

	if err := c.nc.PublishMsg(msg); err != nil {
		return err
	}

	return c.nc.Flush()
}

// NewWithNATS creates a real NATS connection subscribed to cfg.Subject and returns an Adapter
// and a cleanup.
func NewWithNATS(cfg Config, reg *codec.Registry) (*Adapter, func(), error) {
	if cfg.URL == "" || cfg.Subject == "" {
		return nil, nil, fmt.Errorf("%w: nats url and subject required", perr.ErrInvalidArgument)
	}

	opts := []nats.Option{}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	if cfg.ConnTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnTimeout))
	}

	if cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: nats connect: %w", perr.ErrConsumeFailed, err)
	}

	var sub *nats.Subscription
	if cfg.Queue != "" {
		sub, err = nc.QueueSubscribeSync(cfg.Subject, cfg.Queue)
	} else {
		sub, err = nc.SubscribeSync(cfg.Subject)
	}

	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("%w: nats subscribe %q: %w", perr.ErrConsumeFailed, cfg.Subject, err)
	}

	cl := natsClient{nc: nc, sub: sub}
	ad := &Adapter{Client: cl, Publisher: cl, Codec: reg}
	cleanup := func() {
		if nc != nil && !nc.IsClosed() {
			_ = sub.Unsubscribe()
			_ = nc.Drain() //nolint:errcheck // best-effort shutdown; cannot return error here
			nc.Close()
		}
	}

	return ad, cleanup, nil
}
