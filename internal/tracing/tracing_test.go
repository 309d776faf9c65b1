package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/productmatch/backend/config"
)

func TestSetup_Disabled(t *testing.T) {
	for _, exporter := range []string{"", "none"} {
		tp, err := Setup(context.Background(), config.TracingConfig{Exporter: exporter})
		require.NoError(t, err)
		assert.Nil(t, tp)
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		wantErr  bool
	}{
		{name: "grpc", protocol: "grpc"},
		{name: "http", protocol: "http"},
		{name: "unknown protocol", protocol: "thrift", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, err := NewExporter(context.Background(), config.TracingConfig{
				Protocol: tt.protocol,
				Endpoint: "localhost:4317",
				Insecure: true,
				Timeout:  time.Second,
			})
			if tt.wantErr {
				assert.ErrorContains(t, err, "unsupported OTLP protocol")
				return
			}
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = exporter.Shutdown(ctx)
		})
	}
}

func TestNewProvider_ExportsSampledSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := NewProvider(exporter, "productmatch", 1)

	_, span := tp.Tracer("test").Start(context.Background(), "work")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "work", spans[0].Name)

	var service string
	for _, attr := range spans[0].Resource.Attributes() {
		if attr.Key == "service.name" {
			service = attr.Value.AsString()
		}
	}
	assert.Equal(t, "productmatch", service)
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewProvider_RatioZeroDropsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := NewProvider(exporter, "productmatch", 0)

	_, span := tp.Tracer("test").Start(context.Background(), "work")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	assert.Empty(t, exporter.GetSpans())
	require.NoError(t, tp.Shutdown(context.Background()))
}
