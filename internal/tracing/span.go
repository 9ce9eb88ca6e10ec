package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on request spans.
const (
	AttrMethod      = attribute.Key("http.request.method")
	AttrStatusCode  = attribute.Key("http.response.status_code")
	AttrURL         = attribute.Key("url.full")
	AttrOperation   = attribute.Key("geoload.operation")
	AttrCacheStatus = attribute.Key("geoload.cache_status")
)

// StartRequestSpan starts a client span named "{method} {operation}".
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, method, operation string) (context.Context, trace.Span) {
	spanName := method + " request"
	if operation != "" {
		spanName = method + " " + operation
	}
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(AttrMethod.String(method))
	if operation != "" {
		span.SetAttributes(AttrOperation.String(operation))
	}
	return ctx, span
}

// ResponseAttributes describes a captured response. An empty cache status is omitted.
func ResponseAttributes(statusCode int, cacheStatus string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{AttrStatusCode.Int(statusCode)}
	if cacheStatus != "" {
		attrs = append(attrs, AttrCacheStatus.String(cacheStatus))
	}
	return attrs
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
