package inmemory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

const defaultBuffer = 64

// Source is a thread-safe in-memory implementation of projection.Source.
// Published batches are delivered to the sink in publish order, one sink call per batch.
type Source struct {
	ch        chan []projection.Message
	done      chan struct{}
	closeOnce sync.Once
	delivered atomic.Int64
}

// Ensure Source implements the source contract.
var _ projection.Source = (*Source)(nil)

// New creates a new in-memory source with a buffer of size batches.
// A non-positive size selects the default.
func New(size int) *Source {
	if size <= 0 {
		size = defaultBuffer
	}

	return &Source{
		ch:   make(chan []projection.Message, size),
		done: make(chan struct{}),
	}
}

// Publish queues msgs as one batch. It blocks while the buffer is full, until ctx is done
// or the source is closed.
func (s *Source) Publish(ctx context.Context, msgs ...projection.Message) error {
	select {
	case <-s.done:
		return fmt.Errorf("inmemory publish: %w", perr.ErrSourceClosed)
	default:
	}

	select {
	case s.ch <- msgs:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return fmt.Errorf("inmemory publish: %w", perr.ErrSourceClosed)
	}
}

// Close stops accepting batches and releases blocked publishers. Consume drains what is
// buffered and then returns nil.
func (s *Source) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Consume hands buffered batches to sink until the source is closed and drained,
// the context is done, or the sink fails. A sink error is returned unchanged.
func (s *Source) Consume(ctx context.Context, sink projection.Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msgs := <-s.ch:
			if err := s.deliver(ctx, sink, msgs); err != nil {
				return err
			}
		case <-s.done:
			return s.drain(ctx, sink)
		}
	}
}

func (s *Source) drain(ctx context.Context, sink projection.Sink) error {
	for {
		select {
		case msgs := <-s.ch:
			if err := s.deliver(ctx, sink, msgs); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *Source) deliver(ctx context.Context, sink projection.Sink, msgs []projection.Message) error {
	if msgs == nil {
		msgs = []projection.Message{}
	}

	if err := sink(ctx, msgs); err != nil {
		return err
	}

	s.delivered.Add(1)

	return nil
}

// Delivered returns the number of batches the sink accepted.
func (s *Source) Delivered() int { return int(s.delivered.Load()) }
