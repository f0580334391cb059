package observability

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries a per-request identifier to the task service.
const RequestIDHeader = "X-Request-ID"

// Transport is an http.RoundTripper for outgoing calls. It tags each request
// with a request ID and the current trace context and logs its outcome.
// Headers and bodies are never logged.
type Transport struct {
	Base http.RoundTripper
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	out := req.Clone(ctx)

	requestID := out.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		out.Header.Set(RequestIDHeader, requestID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	attrs := []any{
		slog.String("method", out.Method),
		slog.String("path", out.URL.Path),
		slog.String("request_id", requestID),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
	}

	start := time.Now()
	resp, err := base.RoundTrip(out)
	attrs = append(attrs, slog.Duration("duration", time.Since(start)))

	if err != nil {
		slog.WarnContext(ctx, "outgoing request failed", append(attrs, slog.Any("error", err))...)
		return nil, err
	}

	slog.DebugContext(ctx, "outgoing request", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}
