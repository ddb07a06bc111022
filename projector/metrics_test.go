package projector_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/next-trace/scg-projector/contract/projection"
	"github.com/next-trace/scg-projector/projector"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return reader, mp
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

type metered struct{}

func TestMetrics_CountsByStatus(t *testing.T) {
	reader, mp := setupTestMeter()
	boom := errors.New("boom")

	calls := 0

	h, err := projection.NewHandler(reflect.TypeFor[metered](), func(context.Context, *recordingConn, projection.Message) error {
		calls++
		if calls == 3 {
			return boom
		}

		return nil
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	p, err := projector.New(fixed(h, h, h),
		projector.WithMiddleware(projector.MetricsWithMeter[*recordingConn](mp.Meter("test"))))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := p.Project(&recordingConn{}, metered{}); err != boom { //nolint:errorlint // identity is the contract
		t.Fatalf("want boom unchanged, got %v", err)
	}

	m := findMetric(t, reader, "projector.handler.executions")
	if m == nil {
		t.Fatalf("projector.handler.executions not found")
	}

	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}

	byStatus := map[string]int64{}

	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		typ, _ := dp.Attributes.Value(attribute.Key("message_type"))

		if typ.AsString() != "projector_test.metered" {
			t.Fatalf("message_type=%q", typ.AsString())
		}

		byStatus[status.AsString()] += dp.Value
	}

	if byStatus["ok"] != 2 || byStatus["error"] != 1 {
		t.Fatalf("executions by status=%v", byStatus)
	}

	if findMetric(t, reader, "projector.handler.duration") == nil {
		t.Fatalf("projector.handler.duration not found")
	}
}
