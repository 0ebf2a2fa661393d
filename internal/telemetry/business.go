package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessTracer wraps spans for domain operations: PPG analyses, assistant
// messages and clinic tool calls.
type BusinessTracer struct {
	tracer trace.Tracer
}

// NewBusinessTracer creates a tracer bound to the global provider.
func NewBusinessTracer() *BusinessTracer {
	return &BusinessTracer{tracer: GetBusinessTracer()}
}

// PPGAnalysisSummary is what gets attached to a finished analysis span.
type PPGAnalysisSummary struct {
	WebcamHeartRate    float64
	ReferenceHeartRate float64
	WebcamQuality      float64
	Warnings           int
	Duration           time.Duration
}

// TracePPGAnalysis starts a span around one /analyze_ppg request.
func (bt *BusinessTracer) TracePPGAnalysis(ctx context.Context, samples, samplingRate int) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "ppg.analyze",
		trace.WithAttributes(
			attribute.Int("ppg.samples", samples),
			attribute.Int("ppg.sampling_rate", samplingRate),
		),
	)
}

// RecordPPGResult annotates span with the analysis outcome.
func (bt *BusinessTracer) RecordPPGResult(span trace.Span, summary PPGAnalysisSummary) {
	span.SetAttributes(
		attribute.Float64("ppg.webcam.heart_rate", summary.WebcamHeartRate),
		attribute.Float64("ppg.reference.heart_rate", summary.ReferenceHeartRate),
		attribute.Float64("ppg.webcam.quality", summary.WebcamQuality),
		attribute.Int("ppg.warnings", summary.Warnings),
		attribute.Int64("ppg.duration_ms", summary.Duration.Milliseconds()),
	)
	span.SetStatus(codes.Ok, "analysis completed")
}

// TraceAssistantMessage starts a span for one inbound chat message.
func (bt *BusinessTracer) TraceAssistantMessage(ctx context.Context, channel string, hasMedia bool) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "assistant.message",
		trace.WithAttributes(
			attribute.String("assistant.channel", channel),
			attribute.Bool("assistant.has_media", hasMedia),
		),
	)
}

// TraceToolCall starts a span for a clinic tool invocation.
func (bt *BusinessTracer) TraceToolCall(ctx context.Context, tool string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "clinic.tool",
		trace.WithAttributes(attribute.String("clinic.tool", tool)),
	)
}

// RecordFailure marks span as failed.
func (bt *BusinessTracer) RecordFailure(span trace.Span, err error) {
	RecordError(span, err)
}
