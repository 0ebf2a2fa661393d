package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// globalRecorder installs a recording provider for the duration of the test.
func globalRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestNormalizeOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		hostport string
		urlPath  string
		insecure bool
		wantErr  bool
	}{
		{"collector base", "http://localhost:4318", "localhost:4318", "/v1/traces", true, false},
		{"trailing slash", "http://otel:4318/", "otel:4318", "/v1/traces", true, false},
		{"traces path kept", "http://otel:4318/v1/traces", "otel:4318", "/v1/traces", true, false},
		{"tls with prefix", "https://collector.tanya.health/otlp", "collector.tanya.health", "/otlp/v1/traces", false, false},
		{"missing scheme", "otel:4318", "", "", false, true},
		{"grpc scheme", "grpc://otel:4317", "", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hostport, path, insecure, resolved, err := normalizeOTLPEndpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostport, hostport)
			assert.Equal(t, tt.urlPath, path)
			assert.Equal(t, tt.insecure, insecure)
			assert.Contains(t, resolved, tt.hostport+tt.urlPath)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "otlp", cfg.Exporter)
	assert.Equal(t, ServiceName, cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
}

func TestInitTelemetryWithProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TelemetryConfig
		wantErr string
	}{
		{"disabled is a no-op", &TelemetryConfig{Enabled: false}, ""},
		{"stdout exporter", &TelemetryConfig{Enabled: true, Exporter: "stdout", ServiceName: "tanya-test", Environment: "test"}, ""},
		{"bad endpoint", &TelemetryConfig{Enabled: true, OTLPEndpoint: "invalid-url://[invalid"}, "invalid OTLPEndpoint"},
	}

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := InitTelemetryWithProvider(context.Background(), tt.cfg, slog.Default())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Nil(t, provider)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, provider.Shutdown)
			assert.NoError(t, provider.Shutdown(context.Background()))
		})
	}
}

func TestStartExternalSpan(t *testing.T) {
	sr := globalRecorder(t)

	_, span := StartExternalSpan(context.Background(), "ultravox", "create_call", attribute.String("ultravox.model", "fixie-ai/ultravox"))
	EndSpan(span, nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "ultravox.create_call", got.Name())
	assert.Equal(t, trace.SpanKindClient, got.SpanKind())
	assert.Equal(t, ServiceName+"/external", got.InstrumentationScope().Name)
	assert.Equal(t, codes.Unset, got.Status().Code)

	attrs := map[attribute.Key]string{}
	for _, kv := range got.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "ultravox", attrs["peer.service"])
	assert.Equal(t, "create_call", attrs["external.operation"])
	assert.Equal(t, "fixie-ai/ultravox", attrs["ultravox.model"])
}

func TestEndSpanRecordsError(t *testing.T) {
	sr := globalRecorder(t)

	_, span := StartExternalSpan(context.Background(), "livekit", "list_rooms")
	EndSpan(span, errors.New("ListRooms returned 401"))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "ListRooms returned 401", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestRecordErrorIgnoresNil(t *testing.T) {
	sr := globalRecorder(t)

	_, span := GetDatabaseTracer().Start(context.Background(), "db.query")
	RecordError(span, nil)
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, codes.Unset, sr.Ended()[0].Status().Code)
	assert.Empty(t, sr.Ended()[0].Events())
}
