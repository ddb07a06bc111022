package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/next-trace/scg-projector/codec"
	perr "github.com/next-trace/scg-projector/contract/errors"
)

// Concrete franz-go based constructor and consumer wrapper.

type Config struct {
	Brokers  []string
	Topics   []string
	Group    string
	ClientID string
	TLS      *tls.Config
}

type kgoClient struct{ cl *kgo.Client }

func (c kgoClient) Poll(ctx context.Context) ([]Record, error) {
	fetches := c.cl.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return nil, fmt.Errorf("kafka poll: %w", perr.ErrSourceClosed)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var errs []error

	fetches.EachError(func(topic string, partition int32, err error) {
		errs = append(errs, fmt.Errorf("%s/%d: %w", topic, partition, err))
	})

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	var out []Record

	fetches.EachRecord(func(r *kgo.Record) {
		var h map[string]string
		if len(r.Headers) > 0 {
			h = make(map[string]string, len(r.Headers))
			for _, kv := range r.Headers {
				h[kv.Key] = string(kv.Value)
			}
		}

		out = append(out, Record{
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
			Key:       r.Key,
			Value:     r.Value,
			Headers:   h,
			raw:       r,
		})
	})

	return out, nil
}

func (c kgoClient) Commit(ctx context.Context, records []Record) error {
	rs := make([]*kgo.Record, 0, len(records))

	for _, r := range records {
		if kr, ok := r.raw.(*kgo.Record); ok {
			rs = append(rs, kr)
		}
	}

	if len(rs) == 0 {
		return nil
	}

	return c.cl.CommitRecords(ctx, rs...)
}

func (c kgoClient) Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if len(headers) > 0 {
		rec.Headers = make([]kgo.RecordHeader, 0, len(headers))
		for k, v := range headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
	}

	return c.cl.ProduceSync(ctx, rec).FirstErr()
}

// NewWithKgo builds a franz-go consumer group client based Adapter with auto-commit disabled.
// The returned cleanup should be called to close the client.
func NewWithKgo(cfg Config, reg *codec.Registry) (*Adapter, func(), error) {
	if len(cfg.Brokers) == 0 || len(cfg.Topics) == 0 || cfg.Group == "" {
		return nil, nil, fmt.Errorf("%w: kafka brokers, topics and group required", perr.ErrInvalidArgument)
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	if cfg.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(cfg.TLS))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: kafka client init: %w", perr.ErrConsumeFailed, err)
	}

	kc := kgoClient{cl: cl}
	ad := &Adapter{Client: kc, Writer: kc, Codec: reg}
	cleanup := func() { cl.Close() }

	return ad, cleanup, nil
}
