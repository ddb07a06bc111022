package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

// Registry maps type names to message types. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
}

// Register registers M under its type name (see TypeName).
func Register[M any](r *Registry) error {
	return RegisterAs[M](r, TypeName(reflect.TypeFor[M]()))
}

// RegisterAs registers M under name. Decoded values are of type M.
func RegisterAs[M any](r *Registry, name string) error {
	t := reflect.TypeFor[M]()
	if name == "" {
		return fmt.Errorf("register %s: name: %w", t, perr.ErrInvalidArgument)
	}

	if t.Kind() == reflect.Interface {
		return fmt.Errorf("register %s: interface types cannot be decoded: %w", t, perr.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byName[name]; ok && prev != t {
		return fmt.Errorf("register %s as %q: already bound to %s: %w", t, name, prev, perr.ErrInvalidArgument)
	}

	r.byName[name] = t
	r.byType[t] = name

	return nil
}

// Decode unmarshals data into a new value of the type registered under name.
func (r *Registry) Decode(name string, data []byte) (projection.Message, error) {
	r.mu.RLock()
	t, ok := r.byName[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("decode %q: %w", name, perr.ErrUnknownMessageType)
	}

	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decode %q: %w", name, errors.Join(perr.ErrDecodeFailed, err))
	}

	return ptr.Elem().Interface(), nil
}

// Encode returns the registered name of msg and its JSON encoding.
func (r *Registry) Encode(msg projection.Message) (string, []byte, error) {
	t := reflect.TypeOf(msg)

	r.mu.RLock()
	name, ok := r.byType[t]
	r.mu.RUnlock()

	if !ok {
		return "", nil, fmt.Errorf("encode %T: %w", msg, perr.ErrUnknownMessageType)
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return "", nil, fmt.Errorf("encode %T: %w", msg, errors.Join(perr.ErrEncodeFailed, err))
	}

	return name, b, nil
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byName)
}

// TypeName returns the pointer-stripped name of t, falling back to its string form
// for unnamed types.
func TypeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" { // unnamed (e.g., map/struct literal)
		name = t.String()
	}

	return name
}
