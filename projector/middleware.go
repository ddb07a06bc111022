package projector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/next-trace/scg-projector/contract/projection"
)

// tracerName is the instrumentation scope name for projector tracing.
const tracerName = "github.com/next-trace/scg-projector"

// Middleware wraps handler execution. Middleware must return the error of next unchanged,
// otherwise callers can no longer inspect the original failure.
type Middleware[C any] func(next projection.HandlerFunc[C]) projection.HandlerFunc[C]

// Logging returns middleware that logs handler start and completion. A nil logger disables logging.
func Logging[C any](logger *slog.Logger) Middleware[C] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return func(next projection.HandlerFunc[C]) projection.HandlerFunc[C] {
		return func(ctx context.Context, conn C, msg projection.Message) error {
			typ := fmt.Sprintf("%T", msg)
			logger.DebugContext(ctx, "handler started", slog.String("message_type", typ))

			start := time.Now()
			err := next(ctx, conn, msg)
			elapsed := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "handler failed",
					slog.String("message_type", typ),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()),
				)
			} else {
				logger.InfoContext(ctx, "handler completed",
					slog.String("message_type", typ),
					slog.Duration("elapsed", elapsed),
				)
			}

			return err
		}
	}
}

// Tracing returns middleware that wraps each handler invocation in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used.
func Tracing[C any]() Middleware[C] {
	return TracingWithTracer[C](otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer[C any](tracer trace.Tracer) Middleware[C] {
	return func(next projection.HandlerFunc[C]) projection.HandlerFunc[C] {
		return func(ctx context.Context, conn C, msg projection.Message) error {
			ctx, span := tracer.Start(ctx, "projector.handler.handle",
				trace.WithAttributes(
					attribute.String("projector.message.type", fmt.Sprintf("%T", msg)),
				),
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			err := next(ctx, conn, msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}

			return err
		}
	}
}
