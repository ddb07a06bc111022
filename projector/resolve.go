package projector

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

// ExactTypeResolver returns a resolver selecting the handlers declared for the exact dynamic
// type of the message, in the order given. The lookup table is built once.
func ExactTypeResolver[C any](handlers []projection.Handler[C]) projection.Resolver[C] {
	table := make(map[reflect.Type][]projection.Handler[C])
	for _, h := range handlers {
		table[h.MessageType()] = append(table[h.MessageType()], h)
	}

	return func(msg projection.Message) ([]projection.Handler[C], error) {
		return slices.Clone(table[reflect.TypeOf(msg)]), nil
	}
}

// AssignableTypeResolver returns a resolver selecting the handlers whose declared type the
// message's dynamic type is assignable to. This lets a handler declared for an interface
// observe every message implementing it. Order follows the given handlers.
func AssignableTypeResolver[C any](handlers []projection.Handler[C]) projection.Resolver[C] {
	handlers = slices.Clone(handlers)

	var cache sync.Map // reflect.Type -> []projection.Handler[C]

	return func(msg projection.Message) ([]projection.Handler[C], error) {
		t := reflect.TypeOf(msg)
		if t == nil {
			return nil, nil
		}

		if hit, ok := cache.Load(t); ok {
			return slices.Clone(hit.([]projection.Handler[C])), nil
		}

		var matched []projection.Handler[C]

		for _, h := range handlers {
			if t.AssignableTo(h.MessageType()) {
				matched = append(matched, h)
			}
		}

		cache.Store(t, matched)

		return slices.Clone(matched), nil
	}
}

// Strict wraps resolver so that a message without handlers fails with ErrHandlerNotFound.
// A nil resolver yields nil, which New rejects.
func Strict[C any](resolver projection.Resolver[C]) projection.Resolver[C] {
	if resolver == nil {
		return nil
	}

	return func(msg projection.Message) ([]projection.Handler[C], error) {
		handlers, err := resolver(msg)
		if err != nil {
			return nil, err
		}

		if len(handlers) == 0 {
			return nil, fmt.Errorf("resolve %T: %w", msg, perr.ErrHandlerNotFound)
		}

		return handlers, nil
	}
}
