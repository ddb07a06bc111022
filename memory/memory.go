package memory

import (
	"github.com/next-trace/scg-projector/adapters/inmemory"
	"github.com/next-trace/scg-projector/contract/projection"
	"github.com/next-trace/scg-projector/projector"
	"github.com/next-trace/scg-projector/subscription"
)

// Pipeline wires an in-memory source to a projector bound to one connection.
type Pipeline[C any] struct {
	Source       *inmemory.Source
	Projector    *projector.Projector[C]
	Subscription *subscription.Subscription
}

// New constructs a projector over resolver, feeds it from an in-memory source and returns
// the pipeline along with a cleanup function that closes the source. Run the subscription
// to start projecting published messages against conn.
func New[C any](resolver projection.Resolver[C], conn C, opts ...projector.Option[C]) (*Pipeline[C], func(), error) {
	p, err := projector.New(resolver, opts...)
	if err != nil {
		return nil, nil, err
	}

	src := inmemory.New(0)

	sub, err := subscription.New(src, p.Sink(conn))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() { src.Close() }

	return &Pipeline[C]{Source: src, Projector: p, Subscription: sub}, cleanup, nil
}
