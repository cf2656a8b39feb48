package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/jeongseonghan/ntn-linksim/internal/logging"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("NTNLS_TRACING_ENABLED", "TRUE")
	t.Setenv("NTNLS_TRACING_EXPORTER", "OTLP")
	t.Setenv("NTNLS_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("NTNLS_TRACING_SAMPLE_RATIO", "0.25")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != ExporterOTLP || cfg.Endpoint != "collector:4317" || cfg.SampleRatio != 0.25 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ServiceName != "ntnls" {
		t.Errorf("service name = %q, want default ntnls", cfg.ServiceName)
	}

	t.Setenv("NTNLS_TRACING_SAMPLE_RATIO", "7")
	if got := TracingConfigFromEnv().SampleRatio; got != 1 {
		t.Errorf("out-of-range ratio should fall back to 1, got %v", got)
	}
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg.Enabled {
		t.Error("tracing should be off by default")
	}
	if cfg.Exporter != ExporterStdout || cfg.Endpoint != "localhost:4317" || cfg.SampleRatio != 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), DefaultTracingConfig(), nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "sim.sweep")
	if span.SpanContext().IsValid() {
		t.Error("noop provider should produce invalid span contexts")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.ServiceName = "ntnls-test"
	cfg.Writer = &buf

	shutdown, err := InitTracing(context.Background(), cfg, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), DefaultTracingConfig(), nil)
	})

	_, span := Tracer().Start(context.Background(), "sim.run")
	if !span.SpanContext().IsValid() {
		t.Error("sdk provider should produce valid span contexts")
	}
	span.End()
	FlushTracing(context.Background(), shutdown, nil)

	out := buf.String()
	for _, want := range []string{"sim.run", "ntnls-test", "ntn-linksim", TracerName} {
		if !strings.Contains(out, want) {
			t.Errorf("exported span missing %q:\n%s", want, out)
		}
	}
}

func TestInitTracingRunsFollowSweep(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.SampleRatio = 0
	cfg.Writer = &buf

	shutdown, err := InitTracing(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), DefaultTracingConfig(), nil)
	})

	_, root := Tracer().Start(context.Background(), "sim.sweep")
	if root.SpanContext().IsSampled() {
		t.Error("root sweep span should be dropped at ratio 0")
	}
	root.End()

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), parent)
	_, run := Tracer().Start(ctx, "sim.run")
	if !run.SpanContext().IsSampled() {
		t.Error("run span should follow its sampled sweep")
	}
	run.End()
	FlushTracing(context.Background(), shutdown, nil)
}

func TestInitTracingUnsupportedExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Exporter = "zipkin"
	if _, err := InitTracing(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestFlushTracingNil(t *testing.T) {
	FlushTracing(context.Background(), nil, nil)
}
