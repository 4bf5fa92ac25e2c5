package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// spanContext returns a context carrying an active recorded span.
func spanContext(t *testing.T) context.Context {
	t.Helper()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(tracetest.NewInMemoryExporter()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "practice-request")
	t.Cleanup(func() { span.End() })
	return ctx
}

func TestCorrelationID(t *testing.T) {
	t.Run("no span", func(t *testing.T) {
		if got := CorrelationID(context.Background()); got != "" {
			t.Errorf("CorrelationID = %q, want empty", got)
		}
	})

	t.Run("active span", func(t *testing.T) {
		cid := CorrelationID(spanContext(t))
		if len(cid) != 32 {
			t.Fatalf("CorrelationID length = %d, want 32", len(cid))
		}
		if strings.Trim(cid, "0123456789abcdef") != "" {
			t.Errorf("CorrelationID %q is not lowercase hex", cid)
		}
	})

	t.Run("distinct per trace", func(t *testing.T) {
		a := CorrelationID(spanContext(t))
		b := CorrelationID(spanContext(t))
		if a == b {
			t.Errorf("two traces share correlation ID %q", a)
		}
	})
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		ctx       func(t *testing.T) context.Context
		wantTrace bool
	}{
		{"without span", func(*testing.T) context.Context { return context.Background() }, false},
		{"with span", spanContext, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			orig := slog.Default()
			slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
			t.Cleanup(func() { slog.SetDefault(orig) })

			Logger(tc.ctx(t)).Info("segment checked", "outcome", "correct")

			line := buf.String()
			if !strings.Contains(line, "segment checked") {
				t.Fatalf("log line missing message: %s", line)
			}
			hasTrace := strings.Contains(line, "trace_id=") && strings.Contains(line, "span_id=")
			if hasTrace != tc.wantTrace {
				t.Errorf("trace fields present = %v, want %v; line: %s", hasTrace, tc.wantTrace, line)
			}
		})
	}
}
