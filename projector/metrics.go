package projector

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/next-trace/scg-projector/contract/projection"
)

// meterName is the instrumentation scope name for projector metrics.
const meterName = "github.com/next-trace/scg-projector"

// Metrics returns middleware that records per-handler metrics using the global
// MeterProvider. Without a configured provider the instruments are noops.
//
// Instruments:
//   - projector.handler.duration (Float64Histogram): handler time in seconds
//   - projector.handler.executions (Int64Counter): handler invocations
//
// Both carry message_type and status ("ok" or "error").
func Metrics[C any]() Middleware[C] {
	return MetricsWithMeter[C](otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter[C any](meter metric.Meter) Middleware[C] {
	duration, _ := meter.Float64Histogram(
		"projector.handler.duration",
		metric.WithDescription("Duration of handler execution in seconds"),
		metric.WithUnit("s"),
	)

	executions, _ := meter.Int64Counter(
		"projector.handler.executions",
		metric.WithDescription("Total number of handler executions"),
		metric.WithUnit("{execution}"),
	)

	return func(next projection.HandlerFunc[C]) projection.HandlerFunc[C] {
		return func(ctx context.Context, conn C, msg projection.Message) error {
			start := time.Now()
			err := next(ctx, conn, msg)
			elapsed := time.Since(start).Seconds()

			status := "ok"
			if err != nil {
				status = "error"
			}

			attrs := metric.WithAttributes(
				attribute.String("message_type", fmt.Sprintf("%T", msg)),
				attribute.String("status", status),
			)

			duration.Record(ctx, elapsed, attrs)
			executions.Add(ctx, 1, attrs)

			return err
		}
	}
}
