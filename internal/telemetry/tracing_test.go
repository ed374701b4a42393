package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracerProviderExportsAndPropagates(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := InitTracerProvider(context.Background(), "titlecheck-test", exp)
	require.NoError(t, err)

	ctx, span := otel.Tracer("test").Start(context.Background(), "check")
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	span.End()

	require.NotEmpty(t, carrier.Get("traceparent"))
	require.NoError(t, tp.ForceFlush(context.Background()))
	require.Len(t, exp.GetSpans(), 1)
	require.Equal(t, "check", exp.GetSpans()[0].Name)
	require.NoError(t, tp.Shutdown(context.Background()))
}
