package projector

import (
	"context"
	"fmt"
	"slices"
	"sync"

	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

// Registry is a registration table of handlers built at startup.
// Handlers keep their registration order; the same message type may be registered many times.
type Registry[C any] struct {
	mu       sync.RWMutex
	handlers []projection.Handler[C]
}

// NewRegistry constructs an empty Registry.
func NewRegistry[C any]() *Registry[C] { return &Registry[C]{} }

// When registers a handler for message type M.
func When[M any, C any](r *Registry[C], fn func(ctx context.Context, conn C, msg M) error) error {
	h, err := projection.HandlerFor(fn)
	if err != nil {
		return fmt.Errorf("when: %w", err)
	}

	return r.Add(h)
}

// Add appends already constructed handlers. The zero Handler is rejected.
func (r *Registry[C]) Add(handlers ...projection.Handler[C]) error {
	for i, h := range handlers {
		if h.MessageType() == nil || h.Func() == nil {
			return fmt.Errorf("add handler %d: %w", i, perr.ErrInvalidArgument)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, handlers...)

	return nil
}

// Handlers returns a copy of the registered handlers in registration order.
func (r *Registry[C]) Handlers() []projection.Handler[C] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.handlers)
}

// Concat returns a new Registry holding the handlers of r followed by those of other.
func (r *Registry[C]) Concat(other *Registry[C]) *Registry[C] {
	out := &Registry[C]{handlers: r.Handlers()}
	if other != nil {
		out.handlers = append(out.handlers, other.Handlers()...)
	}

	return out
}

// Resolver returns an exact-type resolver over a snapshot of the registered handlers.
// Handlers registered afterwards are not visible to it.
func (r *Registry[C]) Resolver() projection.Resolver[C] {
	return ExactTypeResolver(r.Handlers())
}
