package projection

import "context"

// HeaderPropagator abstracts carrying tracing context across process boundaries in
// transport headers. Implementations may bridge to OpenTelemetry or any other propagation standard.
// Implementations must be safe for concurrent use.
type HeaderPropagator interface {
	// Inject mutates headers by inserting the keys that carry ctx.
	Inject(ctx context.Context, headers map[string]string)
	// Extract returns a context derived from ctx that carries what headers hold.
	Extract(ctx context.Context, headers map[string]string) context.Context
}

// NopHeaderPropagator is a no-op implementation useful for tests or when tracing is disabled.
type NopHeaderPropagator struct{}

func (NopHeaderPropagator) Inject(context.Context, map[string]string) {}

func (NopHeaderPropagator) Extract(ctx context.Context, _ map[string]string) context.Context {
	return ctx
}
