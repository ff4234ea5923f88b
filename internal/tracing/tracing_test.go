package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitInstallsGlobalProvider(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp, shutdown, err := Init(context.Background(), Config{ServiceName: "order-service"}, sdktrace.WithSpanProcessor(sr))
	require.NoError(t, err)

	assert.Same(t, tp, otel.GetTracerProvider())

	_, span := otel.Tracer("tracing-test").Start(context.Background(), "unit")
	span.End()

	require.Len(t, sr.Ended(), 1)
	got := sr.Ended()[0]
	assert.Equal(t, "unit", got.Name())
	assert.True(t, got.SpanContext().HasTraceID())

	name, ok := got.Resource().Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "order-service", name.AsString())

	require.NoError(t, shutdown(context.Background()))
}
