package kafka_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/next-trace/scg-projector/adapters/kafka"
	"github.com/next-trace/scg-projector/codec"
	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

// Unified Kafka adapter tests (single file).

type fakeClient struct {
	polls     [][]kafka.Record
	pollErr   error // returned once polls are exhausted; defaults to ErrSourceClosed
	commitErr error
	committed [][]kafka.Record
}

func (f *fakeClient) Poll(ctx context.Context) ([]kafka.Record, error) {
	if len(f.polls) == 0 {
		if f.pollErr != nil {
			return nil, f.pollErr
		}

		return nil, fmt.Errorf("fake: %w", perr.ErrSourceClosed)
	}

	p := f.polls[0]
	f.polls = f.polls[1:]

	return p, nil
}

func (f *fakeClient) Commit(ctx context.Context, records []kafka.Record) error {
	if f.commitErr != nil {
		return f.commitErr
	}

	f.committed = append(f.committed, records)

	return nil
}

type fakeWriter struct {
	calls []struct {
		topic   string
		key     []byte
		value   []byte
		headers map[string]string
	}
	err error
	ctx context.Context
}

func (f *fakeWriter) Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	f.ctx = ctx
	f.calls = append(f.calls, struct {
		topic   string
		key     []byte
		value   []byte
		headers map[string]string
	}{topic, key, value, headers})

	return f.err
}

type stockReserved struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

type stockReleased struct {
	SKU string `json:"sku"`
}

func newCodec(t *testing.T) *codec.Registry {
	t.Helper()

	reg := codec.NewRegistry()
	_ = codec.RegisterAs[stockReserved](reg, "stock.reserved")
	_ = codec.RegisterAs[stockReleased](reg, "stock.released")

	return reg
}

func rec(typ, value string, offset int64) kafka.Record {
	return kafka.Record{
		Topic:   "inventory",
		Offset:  offset,
		Value:   []byte(value),
		Headers: map[string]string{kafka.TypeHeader: typ},
	}
}

func TestKafka_Consume_BatchPerPollAndCommit(t *testing.T) {
	fc := &fakeClient{polls: [][]kafka.Record{
		{rec("stock.reserved", `{"sku":"a","qty":1}`, 0), rec("stock.released", `{"sku":"a"}`, 1)},
		{}, // empty polls are skipped
		{rec("stock.reserved", `{"sku":"b","qty":2}`, 2)},
	}}

	var batches [][]projection.Message

	err := kafka.New(fc, newCodec(t)).Consume(t.Context(), func(_ context.Context, msgs []projection.Message) error {
		batches = append(batches, msgs)
		return nil
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if len(batches) != 2 || len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Fatalf("batches=%#v", batches)
	}

	if batches[0][0] != (stockReserved{SKU: "a", Qty: 1}) || batches[0][1] != (stockReleased{SKU: "a"}) {
		t.Fatalf("first batch=%#v", batches[0])
	}

	if len(fc.committed) != 2 || fc.committed[1][0].Offset != 2 {
		t.Fatalf("committed=%+v", fc.committed)
	}
}

func TestKafka_Consume_TopicFallback(t *testing.T) {
	r := kafka.Record{Topic: "stock.released", Value: []byte(`{"sku":"z"}`)}
	fc := &fakeClient{polls: [][]kafka.Record{{r}}}

	var got projection.Message

	err := kafka.New(fc, newCodec(t)).Consume(t.Context(), func(_ context.Context, msgs []projection.Message) error {
		got = msgs[0]
		return nil
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if got != (stockReleased{SKU: "z"}) {
		t.Fatalf("got %#v", got)
	}
}

func TestKafka_Consume_FailuresDoNotCommit(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		client *fakeClient
		sink   projection.Sink
		check  func(error) bool
	}{
		{
			name:   "sink failure",
			client: &fakeClient{polls: [][]kafka.Record{{rec("stock.released", `{}`, 0)}}},
			sink:   func(context.Context, []projection.Message) error { return boom },
			check:  func(err error) bool { return err == boom }, //nolint:errorlint // identity is the contract
		},
		{
			name:   "decode failure",
			client: &fakeClient{polls: [][]kafka.Record{{rec("stock.released", `{`, 0)}}},
			check:  func(err error) bool { return errors.Is(err, perr.ErrDecodeFailed) },
		},
		{
			name:   "poll failure",
			client: &fakeClient{pollErr: errors.New("broker down")},
			check:  func(err error) bool { return errors.Is(err, perr.ErrConsumeFailed) },
		},
		{
			name:   "poll cancelled",
			client: &fakeClient{pollErr: context.Canceled},
			check:  func(err error) bool { return errors.Is(err, context.Canceled) },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sink := tc.sink
			if sink == nil {
				sink = func(context.Context, []projection.Message) error { return nil }
			}

			err := kafka.New(tc.client, newCodec(t)).Consume(t.Context(), sink)
			if !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(tc.client.committed) != 0 {
				t.Fatalf("failed batch was committed: %+v", tc.client.committed)
			}
		})
	}
}

func TestKafka_Consume_CommitFailure(t *testing.T) {
	fc := &fakeClient{
		polls:     [][]kafka.Record{{rec("stock.released", `{}`, 0)}},
		commitErr: errors.New("rebalance"),
	}

	err := kafka.New(fc, newCodec(t)).Consume(t.Context(), func(context.Context, []projection.Message) error { return nil })
	if !errors.Is(err, perr.ErrAckFailed) {
		t.Fatalf("want ErrAckFailed, got %v", err)
	}
}

func TestKafka_NilClient(t *testing.T) {
	ad := kafka.New(nil, newCodec(t))

	err := ad.Consume(t.Context(), func(context.Context, []projection.Message) error { return nil })
	if !errors.Is(err, perr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}

	if err := ad.Publish(t.Context(), "t", nil, stockReleased{}); !errors.Is(err, perr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestKafka_Publish(t *testing.T) {
	fw := &fakeWriter{}
	ad := &kafka.Adapter{Writer: fw, Codec: newCodec(t)}

	if err := ad.Publish(t.Context(), "inventory", []byte("a"), stockReserved{SKU: "a", Qty: 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(fw.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fw.calls))
	}

	c := fw.calls[0]
	if c.topic != "inventory" || string(c.key) != "a" || c.headers[kafka.TypeHeader] != "stock.reserved" {
		t.Fatalf("call=%+v", c)
	}

	if string(c.value) != `{"sku":"a","qty":3}` {
		t.Fatalf("value=%s", c.value)
	}

	fw.err = errors.New("boom")
	if err := ad.Publish(t.Context(), "inventory", nil, stockReleased{}); !errors.Is(err, perr.ErrPublishFailed) {
		t.Fatalf("want ErrPublishFailed, got %v", err)
	}

	fw.err = context.DeadlineExceeded
	if err := ad.Publish(t.Context(), "inventory", nil, stockReleased{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want context.DeadlineExceeded, got %v", err)
	}
}

func TestNewWithKgo_MissingConfig(t *testing.T) {
	for _, cfg := range []kafka.Config{
		{},
		{Brokers: []string{"localhost:9092"}},
		{Brokers: []string{"localhost:9092"}, Topics: []string{"inventory"}},
	} {
		_, _, err := kafka.NewWithKgo(cfg, newCodec(t))
		if !errors.Is(err, perr.ErrInvalidArgument) {
			t.Fatalf("config %+v: want ErrInvalidArgument, got %v", cfg, err)
		}
	}
}

type tenantKey struct{}

func TestKafka_Publish_ForwardsContext(t *testing.T) {
	fw := &fakeWriter{}
	ad := &kafka.Adapter{Writer: fw, Codec: newCodec(t)}

	ctx := context.WithValue(t.Context(), tenantKey{}, "acme")
	if err := ad.Publish(ctx, "inventory", nil, stockReleased{SKU: "a"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if fw.ctx == nil || fw.ctx.Value(tenantKey{}) != "acme" {
		t.Fatalf("writer did not receive the publish context")
	}
}
