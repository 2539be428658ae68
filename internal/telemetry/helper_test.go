package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordedHelper(t *testing.T) (*Helper, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	return NewTelemetryHelper("argus/telemetry-test"), recorder
}

func endedSpanAttrs(t *testing.T, recorder *tracetest.SpanRecorder) map[attribute.Key]attribute.Value {
	t.Helper()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}

	return attrs
}

func TestHelper_SetStorageAttributes(t *testing.T) {
	helper, recorder := newRecordedHelper(t)

	_, span := helper.StartSpan(context.Background(), "storage.write")
	helper.SetStorageAttributes(span, "write_records", "findings")
	span.End()

	attrs := endedSpanAttrs(t, recorder)
	assert.Equal(t, "write_records", attrs["storage.operation"].AsString())
	assert.Equal(t, "findings", attrs["storage.index"].AsString())
}

func TestHelper_SetHealthAttributes(t *testing.T) {
	helper, recorder := newRecordedHelper(t)

	_, span := helper.StartSpan(context.Background(), "health.check_storage")
	helper.SetHealthAttributes(span, "storage", "healthy")
	span.End()

	attrs := endedSpanAttrs(t, recorder)
	assert.Equal(t, "storage", attrs["health.dependency"].AsString())
	assert.Equal(t, "healthy", attrs["health.status"].AsString())
}

func TestHelper_SetBundleAttributes(t *testing.T) {
	helper, recorder := newRecordedHelper(t)

	_, span := helper.StartSpan(context.Background(), "pipeline.run")
	helper.SetBundleAttributes(span, "payment-service", "128", "a7925e88")
	span.End()

	attrs := endedSpanAttrs(t, recorder)
	assert.Equal(t, "payment-service", attrs["bundle.repo"].AsString())
	assert.Equal(t, "128", attrs["bundle.build_id"].AsString())
	assert.Equal(t, "a7925e88", attrs["bundle.id"].AsString())
}

func TestHelper_SetErrorAttribute(t *testing.T) {
	helper, recorder := newRecordedHelper(t)

	_, span := helper.StartSpan(context.Background(), "pipeline.stage.findings")
	helper.SetErrorAttribute(span, assert.AnError)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}
