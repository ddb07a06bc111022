package projector

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

// Projector dispatches messages to the handlers returned by its resolver.
//
// Projector holds no per-call state and is safe for concurrent use. Handlers of a single
// call run strictly one after the other, in the order the resolver returned them.
type Projector[C any] struct {
	resolve projection.Resolver[C]

	// handler middleware executed in registration order
	mw []Middleware[C]

	logger *slog.Logger
}

var _ projection.Projector[any] = (*Projector[any])(nil)

// New constructs a Projector over resolver. A nil resolver fails with ErrInvalidArgument.
func New[C any](resolver projection.Resolver[C], opts ...Option[C]) (*Projector[C], error) {
	if resolver == nil {
		return nil, fmt.Errorf("new projector: resolver: %w", perr.ErrInvalidArgument)
	}

	p := &Projector[C]{
		resolve: resolver,
		logger:  slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Project projects a single message without a cancellation signal.
func (p *Projector[C]) Project(conn C, msg projection.Message) error {
	return p.ProjectContext(context.Background(), conn, msg)
}

// ProjectContext resolves the handlers for msg and invokes each of them with (ctx, conn, msg).
// A nil message fails with ErrInvalidArgument before the resolver is called.
// Resolver and handler errors are returned as is; handlers after a failing one are not invoked.
func (p *Projector[C]) ProjectContext(ctx context.Context, conn C, msg projection.Message) error {
	if isNil(msg) {
		return fmt.Errorf("project: message: %w", perr.ErrInvalidArgument)
	}

	return p.project(ctx, conn, msg)
}

// ProjectMany projects messages in order without a cancellation signal.
func (p *Projector[C]) ProjectMany(conn C, msgs []projection.Message) error {
	return p.ProjectManyContext(context.Background(), conn, msgs)
}

// ProjectManyContext projects msgs in order. Each message is resolved and fully dispatched
// before the next one is resolved. A nil slice fails with ErrInvalidArgument; an empty one is a no-op.
// The first failure stops the batch and is returned as is.
func (p *Projector[C]) ProjectManyContext(ctx context.Context, conn C, msgs []projection.Message) error {
	if msgs == nil {
		return fmt.Errorf("project many: messages: %w", perr.ErrInvalidArgument)
	}

	for i, msg := range msgs {
		if isNil(msg) {
			return fmt.Errorf("project many: message %d: %w", i, perr.ErrInvalidArgument)
		}

		if err := p.project(ctx, conn, msg); err != nil {
			return err
		}
	}

	return nil
}

// Sink returns a projection.Sink that projects every delivered batch against conn.
func (p *Projector[C]) Sink(conn C) projection.Sink {
	return func(ctx context.Context, msgs []projection.Message) error {
		return p.ProjectManyContext(ctx, conn, msgs)
	}
}

func (p *Projector[C]) project(ctx context.Context, conn C, msg projection.Message) error {
	handlers, err := p.resolve(msg)
	if err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "project", "message", fmt.Sprintf("%T", msg), "handlers", len(handlers))

	for _, h := range handlers {
		if err := p.invoke(ctx, conn, msg, h); err != nil {
			return err
		}
	}

	return nil
}

func (p *Projector[C]) invoke(ctx context.Context, conn C, msg projection.Message, h projection.Handler[C]) error {
	if len(p.mw) == 0 {
		return h.Handle(ctx, conn, msg)
	}

	// Build chain so the first registered middleware runs first
	final := projection.HandlerFunc[C](h.Handle)
	for i := len(p.mw) - 1; i >= 0; i-- {
		final = p.mw[i](final)
	}

	return final(ctx, conn, msg)
}

// isNil reports whether msg is nil or a typed nil reference.
func isNil(msg projection.Message) bool {
	if msg == nil {
		return true
	}

	v := reflect.ValueOf(msg)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
