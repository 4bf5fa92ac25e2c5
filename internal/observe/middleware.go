package observe

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// responseCapture wraps [http.ResponseWriter] to remember the status code
// written by the practice API handler.
type responseCapture struct {
	http.ResponseWriter
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

// RouteLabel collapses the variable path segments of the practice API so
// histogram and span cardinality stays bounded: session IDs become {id} and
// exercise slugs become {slug}. Paths outside /api/ pass through unchanged.
func RouteLabel(path string) string {
	seg := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(seg) < 3 || seg[0] != "api" {
		return path
	}
	switch seg[1] {
	case "practice":
		seg[2] = "{id}"
	case "exercises":
		seg[2] = "{slug}"
	default:
		return path
	}
	return "/" + strings.Join(seg, "/")
}

// Middleware instruments the practice API mux. Per request it:
//
//  1. Continues the W3C trace context from the caller, or starts a new trace.
//  2. Opens a server span named after the normalized route
//     (e.g. "HTTP POST /api/practice/{id}/check").
//  3. Echoes the trace ID back as the X-Correlation-ID response header so a
//     browser session can be matched to server logs.
//  4. Records [Metrics.HTTPRequestDuration] tagged with method, route, and
//     response status.
//  5. Logs the served request through [Logger], carrying trace and span IDs.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := RouteLabel(r.URL.Path)

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := otel.Tracer(tracerName).Start(ctx,
				"HTTP "+r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRoute(route),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r.WithContext(ctx))

			elapsed := time.Since(start)
			span.SetAttributes(semconv.HTTPResponseStatusCode(capture.status))
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("route", route),
					attribute.Int("status", capture.status),
				),
			)

			Logger(ctx).Info("observe: api request",
				"method", r.Method,
				"route", route,
				"status", capture.status,
				"duration", elapsed,
			)
		})
	}
}
