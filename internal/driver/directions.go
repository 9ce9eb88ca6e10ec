// Package driver implements the load task: one randomized directions request per call.
package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/geoload/internal/classify"
	"github.com/torosent/geoload/internal/config"
	"github.com/torosent/geoload/internal/geo"
	"github.com/torosent/geoload/internal/httpclient"
	"github.com/torosent/geoload/internal/metrics"
	"github.com/torosent/geoload/internal/tracing"
)

const spanOperation = "directions"

// Options configure a Directions task.
type Options struct {
	TargetURL     string
	APIKey        string
	Client        *http.Client
	Picker        *geo.Picker
	Observer      metrics.Observer
	SlowThreshold time.Duration
	Tracer        trace.Tracer
	Propagate     bool
}

// Directions issues GET /maps/api/directions/json with a random route, travel mode and
// alternatives flag and reports every outcome to its observer.
type Directions struct {
	apiKey    string
	client    *http.Client
	builder   *httpclient.RequestBuilder
	picker    *geo.Picker
	observer  metrics.Observer
	slow      time.Duration
	tracer    trace.Tracer
	propagate bool
}

// NewDirections validates opts. A missing API key yields a *config.MissingEnvError.
func NewDirections(opts Options) (*Directions, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, &config.MissingEnvError{Name: config.APIKeyEnv}
	}
	if opts.Picker == nil {
		return nil, errors.New("route picker is required")
	}
	if len(opts.Picker.Routes()) == 0 {
		return nil, geo.ErrNoRoutes
	}

	builder, err := httpclient.NewRequestBuilder(opts.TargetURL, geo.DirectionsPath, nil)
	if err != nil {
		return nil, err
	}

	client := opts.Client
	if client == nil {
		client = httpclient.NewClient(0)
	}
	observer := opts.Observer
	if observer == nil {
		observer = metrics.Observers(nil)
	}
	slow := opts.SlowThreshold
	if slow <= 0 {
		slow = classify.DefaultSlowThreshold
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	return &Directions{
		apiKey:    key,
		client:    client,
		builder:   builder,
		picker:    opts.Picker,
		observer:  observer,
		slow:      slow,
		tracer:    tracer,
		propagate: opts.Propagate,
	}, nil
}

// Endpoint returns the URL the task requests.
func (d *Directions) Endpoint() string {
	return d.builder.Endpoint()
}

// Do runs one request. Transport errors and classified failures are returned after
// being reported; neither stops the caller's loop. A request aborted because ctx
// ended is not reported.
func (d *Directions) Do(ctx context.Context) error {
	params := d.picker.Next(d.apiKey)

	ctx, span := tracing.StartRequestSpan(ctx, d.tracer, http.MethodGet, spanOperation)

	req, err := d.builder.Build(ctx, params.Values())
	if err != nil {
		tracing.EndSpan(span, err)
		return fmt.Errorf("build directions request: %w", err)
	}
	if d.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	start := time.Now()
	resp, err := httpclient.Capture(d.client, req)
	if err != nil {
		if ctx.Err() != nil {
			tracing.EndSpan(span, ctx.Err())
			return ctx.Err()
		}
		d.observer.OnRequestComplete(metrics.Outcome{
			Latency:      time.Since(start),
			TransportErr: err,
		})
		tracing.EndSpan(span, err)
		return fmt.Errorf("directions request: %w", err)
	}

	result := classify.Classify(classify.Response{
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Elapsed:    resp.Elapsed,
	}, d.slow)

	d.observer.OnRequestComplete(metrics.Outcome{
		StatusCode:  resp.StatusCode,
		Latency:     resp.Elapsed,
		Reasons:     result.Reasons,
		CacheStatus: resp.CacheStatus(),
		Body:        resp.Body,
	})

	failure := result.Err()
	tracing.EndSpan(span, failure, tracing.ResponseAttributes(resp.StatusCode, resp.CacheStatus())...)
	return failure
}
