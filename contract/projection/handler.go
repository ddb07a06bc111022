package projection

import (
	"context"
	"fmt"
	"reflect"

	perr "github.com/next-trace/scg-projector/contract/errors"
)

// HandlerFunc is the asynchronous action of a handler. It receives the caller's context,
// the opaque connection and the message being projected.
type HandlerFunc[C any] func(ctx context.Context, conn C, msg Message) error

// Handler pairs the message type it applies to with the action to invoke.
// A Handler is immutable once constructed and safe to share between goroutines.
type Handler[C any] struct {
	messageType reflect.Type
	handle      HandlerFunc[C]
}

// NewHandler constructs a Handler for messageType. Both arguments are required.
func NewHandler[C any](messageType reflect.Type, fn HandlerFunc[C]) (Handler[C], error) {
	if messageType == nil {
		return Handler[C]{}, fmt.Errorf("new handler: message type: %w", perr.ErrInvalidArgument)
	}

	if fn == nil {
		return Handler[C]{}, fmt.Errorf("new handler %s: action: %w", messageType, perr.ErrInvalidArgument)
	}

	return Handler[C]{messageType: messageType, handle: fn}, nil
}

// HandlerFor constructs a typed Handler for message type M.
// Invoking it with a message that is not an M yields ErrHandlerTypeMismatch.
func HandlerFor[M any, C any](fn func(ctx context.Context, conn C, msg M) error) (Handler[C], error) {
	t := reflect.TypeFor[M]()
	if fn == nil {
		return Handler[C]{}, fmt.Errorf("new handler %s: action: %w", t, perr.ErrInvalidArgument)
	}

	return NewHandler(t, func(ctx context.Context, conn C, msg Message) error {
		m, ok := msg.(M)
		if !ok {
			return fmt.Errorf("handle %T as %s: %w", msg, t, perr.ErrHandlerTypeMismatch)
		}

		return fn(ctx, conn, m)
	})
}

// MessageType returns the message type the handler was declared for.
func (h Handler[C]) MessageType() reflect.Type { return h.messageType }

// Func returns the handler action.
func (h Handler[C]) Func() HandlerFunc[C] { return h.handle }

// Handle invokes the handler action. The zero Handler fails with ErrInvalidArgument.
func (h Handler[C]) Handle(ctx context.Context, conn C, msg Message) error {
	if h.handle == nil {
		return fmt.Errorf("handle %T: %w", msg, perr.ErrInvalidArgument)
	}

	return h.handle(ctx, conn, msg)
}

// WithFunc returns a copy of h whose action is fn, keeping the declared message type.
func (h Handler[C]) WithFunc(fn HandlerFunc[C]) Handler[C] {
	return Handler[C]{messageType: h.messageType, handle: fn}
}
