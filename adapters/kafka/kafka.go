package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/next-trace/scg-projector/codec"
	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

// TypeHeader carries the registered message type name.
const TypeHeader = "type"

// Record is a fetched Kafka record as seen by the adapter.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string

	raw any // client-specific handle used for commits
}

// Client is a minimal Kafka-like consumer interface.
// Users can adapt franz-go, segmentio/kafka-go or any other client to this.
// Poll returning ErrSourceClosed ends consumption.
type Client interface {
	Poll(ctx context.Context) ([]Record, error)
	Commit(ctx context.Context, records []Record) error
}

// Writer is a minimal Kafka-like writer interface.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Adapter implements projection.Source using an injected Client.
// Every poll is handed to the sink as one ordered batch and committed only once the sink accepted it.
type Adapter struct {
	Client Client
	Writer Writer // optional, used by Publish
	Codec  *codec.Registry
}

var _ projection.Source = (*Adapter)(nil)

// New creates a new Kafka adapter instance with the provided client and codec.
func New(c Client, reg *codec.Registry) *Adapter { return &Adapter{Client: c, Codec: reg} }

func (a *Adapter) Consume(ctx context.Context, sink projection.Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Client == nil || a.Codec == nil {
		return fmt.Errorf("kafka consume: %w", perr.ErrInvalidArgument)
	}

	for {
		records, err := a.Client.Poll(ctx)
		if err != nil {
			if errors.Is(err, perr.ErrSourceClosed) {
				return nil
			}

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			return fmt.Errorf("kafka consume poll: %w", errors.Join(perr.ErrConsumeFailed, err))
		}

		if len(records) == 0 {
			continue
		}

		msgs, err := a.decode(records)
		if err != nil {
			return err
		}

		if err := sink(ctx, msgs); err != nil {
			return err
		}

		if err := a.Client.Commit(ctx, records); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			// separate return from preceding multi-line block (wsl)
			return fmt.Errorf("kafka consume commit: %w", errors.Join(perr.ErrAckFailed, err))
		}
	}
}

func (a *Adapter) decode(records []Record) ([]projection.Message, error) {
	msgs := make([]projection.Message, 0, len(records))

	for _, r := range records {
		msg, err := a.Codec.Decode(typeName(r), r.Value)
		if err != nil {
			return nil, fmt.Errorf("kafka consume %s/%d@%d: %w", r.Topic, r.Partition, r.Offset, err)
		}

		msgs = append(msgs, msg)
	}

	return msgs, nil
}

// Publish encodes msg and writes it to topic under key, tagging it with TypeHeader.
func (a *Adapter) Publish(ctx context.Context, topic string, key []byte, msg projection.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Writer == nil || a.Codec == nil {
		return fmt.Errorf("kafka publish: %w", perr.ErrInvalidArgument)
	}

	name, val, err := a.Codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("kafka publish serialize: %w", err)
	}

	if err = a.Writer.Write(ctx, topic, key, val, map[string]string{TypeHeader: name}); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// separate return from preceding multi-line block (wsl)
		return fmt.Errorf("kafka publish write: %w", errors.Join(perr.ErrPublishFailed, err))
	}

	return nil
}

// helpers

func typeName(r Record) string {
	if t := r.Headers[TypeHeader]; t != "" {
		return t
	}

	return r.Topic
}
