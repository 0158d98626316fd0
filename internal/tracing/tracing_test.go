package tracing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"sigil/internal/tracing"
)

func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, tracing.InitWithExporter("sigil-test", "0.0.0", exporter))
	t.Cleanup(func() { _ = tracing.Shutdown(context.Background()) })

	t.Run("records attributes and ok status", func(t *testing.T) {
		exporter.Reset()
		_, span := tracing.StartSpan(context.Background(), "avatar.render", "INTERNAL")
		span.WithAttributes(map[string]string{"avatar.scheme": "int32"}).WithInt("avatar.seed", 92903040)
		tracing.EndSpan(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "avatar.render", spans[0].Name)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)

		attrs := map[string]any{}
		for _, kv := range spans[0].Attributes {
			attrs[string(kv.Key)] = kv.Value.AsInterface()
		}
		assert.Equal(t, "int32", attrs["avatar.scheme"])
		assert.Equal(t, int64(92903040), attrs["avatar.seed"])
	})

	t.Run("records errors", func(t *testing.T) {
		exporter.Reset()
		_, span := tracing.StartSpan(context.Background(), "avatar.render", "INTERNAL")
		tracing.EndSpan(span, errors.New("boom"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, "boom", spans[0].Status.Description)
	})

	t.Run("request spans carry a request id", func(t *testing.T) {
		exporter.Reset()
		_, span, requestID := tracing.StartRequestSpan(context.Background(), "GET /avatars")
		span.SetStatusFromHTTPCode(200)
		tracing.EndSpan(span, nil)

		assert.Len(t, requestID, 36)
		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		found := false
		for _, kv := range spans[0].Attributes {
			if kv.Key == "request.id" {
				found = kv.Value.AsString() == requestID
			}
		}
		assert.True(t, found)
	})

	t.Run("nil spans are ignored", func(t *testing.T) {
		var span *tracing.Span
		assert.NotPanics(t, func() {
			span.WithAttributes(map[string]string{"k": "v"})
			span.SetStatusFromHTTPCode(500)
			tracing.EndSpan(span, nil)
		})
	})
}
