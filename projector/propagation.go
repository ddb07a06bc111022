package projector

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/next-trace/scg-projector/contract/projection"
)

// OTelPropagator bridges projection.HeaderPropagator to an OpenTelemetry TextMapPropagator.
// The zero value uses the globally registered propagator.
type OTelPropagator struct {
	Propagator propagation.TextMapPropagator
}

var _ projection.HeaderPropagator = OTelPropagator{}

func (p OTelPropagator) Inject(ctx context.Context, headers map[string]string) {
	p.get().Inject(ctx, propagation.MapCarrier(headers))
}

func (p OTelPropagator) Extract(ctx context.Context, headers map[string]string) context.Context {
	return p.get().Extract(ctx, propagation.MapCarrier(headers))
}

func (p OTelPropagator) get() propagation.TextMapPropagator {
	if p.Propagator != nil {
		return p.Propagator
	}

	return otel.GetTextMapPropagator()
}
