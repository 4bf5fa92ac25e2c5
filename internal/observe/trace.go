package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope under which [Middleware] opens
// spans for practice API requests.
const tracerName = "github.com/manhtienmai/dailyfluent"

// CorrelationID returns the trace ID of the span in ctx, or "" when there is
// none. The practice API exposes it to the browser as the X-Correlation-ID
// response header, so a reported session can be matched to server logs.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns the default [slog.Logger] enriched with the trace_id and
// span_id of the span in ctx. Handlers use it so per-request log lines line
// up with the correlation ID handed to the browser. Without an active span
// it returns the plain default logger.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
