// Package tracing records an OpenTelemetry client span per load request and
// propagates W3C trace context to the server under test.
package tracing

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/geoload/internal/config"
)

const (
	defaultServiceName  = "geoload"
	defaultProtocol     = "grpc"
	instrumentationName = "github.com/torosent/geoload"
)

// Resource attributes describing the load run that produced the spans.
const (
	AttrTargetHost = attribute.Key("geoload.target.host")
	AttrUsers      = attribute.Key("geoload.users")
)

// exportTarget is where spans go once the config and environment are merged.
type exportTarget struct {
	endpoint string
	protocol string
	insecure bool
}

type exporterFunc func(context.Context, exportTarget) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFunc{
	"grpc": grpcExporter,
	"http": httpExporter,
}

// Provider owns the span pipeline for one load run. A Provider without an
// exporter still reports whether trace headers should be injected.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// RunAttributes describes the load run on the exported resource.
func RunAttributes(targetURL string, users int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{AttrUsers.Int(users)}
	if u, err := url.Parse(targetURL); err == nil && u.Host != "" {
		attrs = append(attrs, AttrTargetHost.String(u.Host))
	}
	return attrs
}

// Init builds the span pipeline described by cfg. Disabled tracing and
// enabled tracing without any OTLP endpoint both yield a Provider that hands
// out no-op tracers.
func Init(ctx context.Context, cfg config.TracingConfig, attrs ...attribute.KeyValue) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{}, nil
	}

	target := exportTarget{
		endpoint: firstNonEmpty(cfg.Endpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		protocol: strings.ToLower(firstNonEmpty(cfg.Protocol, defaultProtocol)),
		insecure: cfg.Insecure,
	}
	if target.endpoint == "" {
		return &Provider{propagate: cfg.ShouldPropagate()}, nil
	}

	newExporter, ok := exporters[target.protocol]
	if !ok {
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use one of %s", target.protocol, supportedProtocols())
	}
	sampler, err := samplerFor(cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	serviceName := firstNonEmpty(cfg.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), defaultServiceName)
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	exporter, err := newExporter(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter (%s %s): %w", target.protocol, target.endpoint, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:        tp,
		tracer:    tp.Tracer(instrumentationName),
		propagate: cfg.ShouldPropagate(),
	}, nil
}

// Tracer returns the run's tracer, or a no-op tracer when nothing is exported.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// samplerFor maps sample_rate onto a root sampler: 0 drops every span, 1
// keeps every span, anything between samples by trace ID.
func samplerFor(rate float64) (sdktrace.Sampler, error) {
	switch {
	case rate < 0 || rate > 1:
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", rate)
	case rate == 0:
		return sdktrace.NeverSample(), nil
	case rate == 1:
		return sdktrace.AlwaysSample(), nil
	default:
		return sdktrace.TraceIDRatioBased(rate), nil
	}
}

func grpcExporter(ctx context.Context, t exportTarget) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.endpoint)}
	if t.insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return otlptracegrpc.New(ctx, opts...)
}

func httpExporter(ctx context.Context, t exportTarget) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.endpoint)}
	if t.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func supportedProtocols() string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, fmt.Sprintf("%q", name))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
