package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabledSamplesNothing(t *testing.T) {
	tp, err := NewProvider(nil, Config{ServiceName: "stripe-migrate"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "migrate.products")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}

func TestNewExporterRejectsUnknownProtocol(t *testing.T) {
	_, err := newExporter(context.Background(), "zipkin", "", true)
	assert.ErrorContains(t, err, "unsupported OTLP protocol")
}
