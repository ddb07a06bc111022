package projection

import "context"

// Sink receives messages from a Source in delivery order.
// A non-nil error tells the source to stop; it must not acknowledge the batch.
type Sink func(ctx context.Context, msgs []Message) error

// Source delivers messages to a Sink until the context is done, the source is exhausted,
// or the sink fails. Library users provide an implementation backed by their broker
// (NATS, RabbitMQ, Kafka, in-memory, etc.).
type Source interface {
	Consume(ctx context.Context, sink Sink) error
}
