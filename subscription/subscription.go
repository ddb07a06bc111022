// Package subscription runs a projection.Source against a projection.Sink until the
// context is done or either side fails.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

// Option configures a Subscription.
type Option func(*Subscription)

// WithLogger sets the logger used for lifecycle output. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Subscription) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithName labels the subscription in log output.
func WithName(name string) Option {
	return func(s *Subscription) { s.name = name }
}

// WithOnError registers a callback invoked with the error that stopped the subscription.
// It is not called for a clean shutdown or a cancelled context.
func WithOnError(fn func(error)) Option {
	return func(s *Subscription) { s.onError = fn }
}

// Subscription binds a source to a sink.
type Subscription struct {
	src     projection.Source
	sink    projection.Sink
	name    string
	logger  *slog.Logger
	onError func(error)
}

// New binds src to sink. Both are required.
func New(src projection.Source, sink projection.Sink, opts ...Option) (*Subscription, error) {
	if src == nil || sink == nil {
		return nil, fmt.Errorf("new subscription: source and sink: %w", perr.ErrInvalidArgument)
	}

	s := &Subscription{
		src:    src,
		sink:   sink,
		name:   "projection",
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Run consumes until the source is exhausted, ctx is done, or the sink fails.
// Cancellation of ctx is reported as nil; any other error is returned unchanged.
func (s *Subscription) Run(ctx context.Context) error {
	start := time.Now()

	s.logger.InfoContext(ctx, "subscription started", "subscription", s.name)

	err := s.src.Consume(ctx, s.sink)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}

	if err != nil {
		s.logger.ErrorContext(ctx, "subscription failed",
			"subscription", s.name, "elapsed", time.Since(start), "error", err)

		if s.onError != nil {
			s.onError(err)
		}

		return err
	}

	s.logger.InfoContext(ctx, "subscription stopped", "subscription", s.name, "elapsed", time.Since(start))

	return nil
}

// RunAll runs every subscription concurrently. The first failure cancels the others and is
// returned unchanged; RunAll returns once all of them stopped.
func RunAll(ctx context.Context, subs ...*Subscription) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, s := range subs {
		g.Go(func() error { return s.Run(gctx) })
	}

	return g.Wait()
}
