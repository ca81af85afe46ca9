package observe

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTracing installs an in-memory exporter as the global tracer provider
// and returns it for span inspection.
func setupTracing(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	return exp
}

func TestTraceID_EmptyWithoutSpan(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}
}

func TestTraceID_MatchesActiveSpan(t *testing.T) {
	setupTracing(t)

	ctx, span := StartSpan(context.Background(), "capture.recognize")
	defer span.End()

	id := TraceID(ctx)
	if len(id) != 32 {
		t.Fatalf("trace ID length = %d, want 32", len(id))
	}
	if want := span.SpanContext().TraceID().String(); id != want {
		t.Errorf("TraceID = %q, want %q", id, want)
	}
}

func TestStartSpan_RecordsPipelineSpan(t *testing.T) {
	exp := setupTracing(t)

	_, span := StartSpan(context.Background(), "capture.recognize",
		trace.WithAttributes(attribute.Int("samples", 48000)))
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "capture.recognize" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "capture.recognize")
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "samples" && a.Value.AsInt64() == 48000 {
			found = true
		}
	}
	if !found {
		t.Error("span missing samples attribute")
	}
}

func TestLogger_TiesLogLineToSpan(t *testing.T) {
	setupTracing(t)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, span := StartSpan(context.Background(), "capture.recognize")
	defer span.End()

	Logger(ctx).Error("recognition failed", "offset_ticks", 300)

	logged := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte("trace_id="+TraceID(ctx))) {
		t.Errorf("log line missing trace_id, got: %s", logged)
	}
	if !bytes.Contains(buf.Bytes(), []byte("span_id=")) {
		t.Errorf("log line missing span_id, got: %s", logged)
	}
}

func TestLogger_PlainWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Logger(context.Background()).Info("session stopped")

	if bytes.Contains(buf.Bytes(), []byte("trace_id")) {
		t.Errorf("log line should have no trace_id without a span, got: %s", buf.String())
	}
}
