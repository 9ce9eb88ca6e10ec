package driver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/torosent/geoload/internal/classify"
	"github.com/torosent/geoload/internal/config"
	"github.com/torosent/geoload/internal/geo"
	"github.com/torosent/geoload/internal/geotest"
	"github.com/torosent/geoload/internal/metrics"
)

type recorder struct {
	mu       sync.Mutex
	outcomes []metrics.Outcome
}

func (r *recorder) OnRequestComplete(o metrics.Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

func newTask(t *testing.T, target string, obs metrics.Observer, mutate func(*Options)) *Directions {
	t.Helper()
	picker, err := geo.NewPicker(7, geo.SampleRoutes)
	if err != nil {
		t.Fatalf("NewPicker: %v", err)
	}
	opts := Options{
		TargetURL: target,
		APIKey:    "test-key",
		Picker:    picker,
		Observer:  obs,
	}
	if mutate != nil {
		mutate(&opts)
	}
	task, err := NewDirections(opts)
	if err != nil {
		t.Fatalf("NewDirections: %v", err)
	}
	return task
}

func TestNewDirectionsRequiresKey(t *testing.T) {
	picker, _ := geo.NewPicker(1, geo.SampleRoutes)
	_, err := NewDirections(Options{TargetURL: "http://localhost:8081", APIKey: " ", Picker: picker})
	var missing *config.MissingEnvError
	if !errors.As(err, &missing) || missing.Name != config.APIKeyEnv {
		t.Fatalf("expected MissingEnvError for %s, got %v", config.APIKeyEnv, err)
	}
	if _, err := NewDirections(Options{TargetURL: "http://localhost:8081", APIKey: "k"}); err == nil {
		t.Fatal("expected error without picker")
	}
}

func TestDoSendsRandomizedQuery(t *testing.T) {
	server := geotest.NewServer(nil)
	defer server.Close()

	rec := &recorder{}
	task := newTask(t, server.URL, rec, nil)
	for i := 0; i < 40; i++ {
		if err := task.Do(context.Background()); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}

	modes := map[string]bool{}
	alternatives := map[string]bool{}
	routes := map[string]bool{}
	for _, q := range server.Queries() {
		if q.Get("key") != "test-key" {
			t.Fatalf("key = %q", q.Get("key"))
		}
		modes[q.Get("mode")] = true
		alternatives[q.Get("alternatives")] = true
		routes[q.Get("origin")+"->"+q.Get("destination")] = true
	}
	for m := range modes {
		valid := false
		for _, want := range geo.TravelModes {
			if m == string(want) {
				valid = true
			}
		}
		if !valid {
			t.Fatalf("unexpected mode %q", m)
		}
	}
	if len(alternatives) != 2 || !alternatives["true"] || !alternatives["false"] {
		t.Fatalf("alternatives values = %v", alternatives)
	}
	if len(routes) < 2 {
		t.Fatalf("expected several routes, got %v", routes)
	}
	if len(rec.outcomes) != 40 {
		t.Fatalf("expected 40 outcomes, got %d", len(rec.outcomes))
	}
	for _, o := range rec.outcomes {
		if o.StatusCode != http.StatusOK || o.Failed() {
			t.Fatalf("unexpected outcome %+v", o)
		}
		if o.CacheStatus != "MISS" && o.CacheStatus != "HIT" {
			t.Fatalf("cache status = %q", o.CacheStatus)
		}
	}
}

func TestDoClassifiesFailures(t *testing.T) {
	tests := []struct {
		name    string
		reply   geotest.Reply
		slow    time.Duration
		reasons []string
	}{
		{"bad gateway", geotest.Reply{Status: http.StatusBadGateway, Body: "upstream down"}, 0, []string{classify.ReasonBadGateway}},
		{"not found", geotest.Reply{Status: http.StatusNotFound, Body: "nope"}, 0, []string{"HTTP Error: 404"}},
		{"api error", geotest.APIError("bad key"), 0, []string{`API Error: {"status":"REQUEST_DENIED","error_message":"bad key"}...`}},
		{"slow", geotest.Reply{Delay: 30 * time.Millisecond}, 10 * time.Millisecond, []string{classify.ReasonTooSlow}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := geotest.NewServer(func(int, *http.Request) geotest.Reply { return tt.reply })
			defer server.Close()

			tally := metrics.NewTally(50, nil)
			task := newTask(t, server.URL, tally, func(o *Options) { o.SlowThreshold = tt.slow })

			err := task.Do(context.Background())
			var failure *classify.FailureError
			if !errors.As(err, &failure) {
				t.Fatalf("expected FailureError, got %v", err)
			}
			if len(failure.Reasons) != len(tt.reasons) || failure.Reasons[0] != tt.reasons[0] {
				t.Fatalf("reasons = %v, want %v", failure.Reasons, tt.reasons)
			}
			snap := tally.Snapshot()
			if snap.Requests != 1 || snap.Failures != 1 {
				t.Fatalf("tally = %+v", snap)
			}
		})
	}
}

func TestDoTransportErrorContinues(t *testing.T) {
	server := geotest.NewServer(nil)
	target := server.URL
	server.Close()

	tally := metrics.NewTally(50, nil)
	collector := metrics.NewCollector()
	task := newTask(t, target, metrics.Observers{tally, collector}, nil)
	for i := 0; i < 3; i++ {
		if err := task.Do(context.Background()); err == nil {
			t.Fatal("expected transport error")
		}
	}
	snap := tally.Snapshot()
	if snap.Requests != 3 || snap.Failures != 3 || snap.Status502 != 0 {
		t.Fatalf("tally = %+v", snap)
	}
	stats := collector.Stats(time.Second)
	if stats.Errors[metrics.LabelConnectionRefused] != 3 || len(stats.Errors) != 1 {
		t.Fatalf("errors = %v, want 3 %q", stats.Errors, metrics.LabelConnectionRefused)
	}
}

func TestDoCancelledRequestNotReported(t *testing.T) {
	server := geotest.NewServer(func(int, *http.Request) geotest.Reply {
		return geotest.Reply{Delay: time.Second}
	})
	defer server.Close()

	rec := &recorder{}
	task := newTask(t, server.URL, rec, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := task.Do(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if len(rec.outcomes) != 0 {
		t.Fatalf("cancelled request should not be reported, got %d", len(rec.outcomes))
	}
}

func TestDoRecordsSpanAndPropagates(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var (
		mu          sync.Mutex
		traceparent string
	)
	server := geotest.NewServer(func(n int, r *http.Request) geotest.Reply {
		mu.Lock()
		traceparent = r.Header.Get("Traceparent")
		mu.Unlock()
		if n == 2 {
			return geotest.Reply{Status: http.StatusBadGateway}
		}
		return geotest.Reply{}
	})
	defer server.Close()

	task := newTask(t, server.URL, nil, func(o *Options) {
		o.Tracer = tp.Tracer("test")
		o.Propagate = true
	})

	if err := task.Do(context.Background()); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	_ = task.Do(context.Background())

	mu.Lock()
	gotHeader := traceparent
	mu.Unlock()
	if gotHeader == "" {
		t.Fatal("expected traceparent header on request")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name != "GET directions" {
		t.Fatalf("span name = %q", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Ok || spans[1].Status.Code != codes.Error {
		t.Fatalf("span statuses = %v, %v", spans[0].Status.Code, spans[1].Status.Code)
	}
}

func TestEndpoint(t *testing.T) {
	task := newTask(t, "http://localhost:8081", nil, nil)
	if got := task.Endpoint(); got != "http://localhost:8081/maps/api/directions/json" {
		t.Fatalf("Endpoint() = %q", got)
	}
}
