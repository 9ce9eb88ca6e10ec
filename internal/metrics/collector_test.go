package metrics_test

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/torosent/geoload/internal/metrics"
)

func ok(latency time.Duration) metrics.Outcome {
	return metrics.Outcome{StatusCode: 200, Latency: latency, CacheStatus: "HIT", Body: []byte(`{"status":"OK"}`)}
}

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	// Record deterministic latencies.
	for _, ms := range []int{10, 20, 30, 40, 50} {
		c.OnRequestComplete(ok(time.Duration(ms) * time.Millisecond))
	}

	stats := c.Stats(0)

	if stats.Total != 5 {
		t.Errorf("expected total 5, got %d", stats.Total)
	}
	if stats.Successes != 5 {
		t.Errorf("expected successes 5, got %d", stats.Successes)
	}
	if stats.Failures != 0 {
		t.Errorf("expected failures 0, got %d", stats.Failures)
	}
	if stats.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", stats.MinLatency)
	}
	if stats.MaxLatency != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", stats.MaxLatency)
	}
	if stats.MeanLatency != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", stats.MeanLatency)
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.OnRequestComplete(ok(time.Duration(i) * time.Millisecond))
	}

	stats := c.Stats(0)

	if stats.P50Latency < 49*time.Millisecond || stats.P50Latency > 51*time.Millisecond {
		t.Errorf("expected P50 ~50ms, got %s", stats.P50Latency)
	}
	if stats.P90Latency < 89*time.Millisecond || stats.P90Latency > 91*time.Millisecond {
		t.Errorf("expected P90 ~90ms, got %s", stats.P90Latency)
	}
	if stats.P99Latency < 98*time.Millisecond || stats.P99Latency > 100*time.Millisecond {
		t.Errorf("expected P99 ~99ms, got %s", stats.P99Latency)
	}
}

func TestCollectorBuckets(t *testing.T) {
	c := metrics.NewCollector()
	c.OnRequestComplete(ok(time.Millisecond))
	c.OnRequestComplete(metrics.Outcome{StatusCode: 200, Latency: time.Millisecond, CacheStatus: "MISS", Body: []byte(`{"status":"OK"}`)})
	c.OnRequestComplete(metrics.Outcome{
		StatusCode: 200,
		Latency:    time.Millisecond,
		Body:       []byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`),
		Reasons:    []string{`API Error: {"status":"REQUEST_DENIED","error_message":"bad key"}...`},
	})
	c.OnRequestComplete(metrics.Outcome{StatusCode: 502, Latency: time.Millisecond, Reasons: []string{"502 Bad Gateway Error"}})
	c.OnRequestComplete(metrics.Outcome{TransportErr: &net.OpError{Op: "dial", Err: errors.New("refused")}})

	stats := c.Stats(time.Second)
	if stats.Total != 5 || stats.Failures != 3 || stats.Successes != 2 {
		t.Fatalf("totals = %d/%d/%d", stats.Total, stats.Successes, stats.Failures)
	}

	checks := []struct {
		dim, key string
		want     int
	}{
		{metrics.DimensionStatus, "200", 3},
		{metrics.DimensionStatus, "502", 1},
		{metrics.DimensionStatus, "no response", 1},
		{metrics.DimensionCache, "HIT", 1},
		{metrics.DimensionCache, "MISS", 1},
		{metrics.DimensionCache, "None", 2},
		{metrics.DimensionAPIStatus, "OK", 2},
		{metrics.DimensionAPIStatus, "REQUEST_DENIED", 1},
		{metrics.DimensionReason, "API Error", 1},
		{metrics.DimensionReason, "502 Bad Gateway Error", 1},
	}
	for _, tc := range checks {
		if got := stats.Bucket(tc.dim, tc.key); got != tc.want {
			t.Errorf("bucket %s/%s = %d, want %d", tc.dim, tc.key, got, tc.want)
		}
	}
	if stats.Errors["Connection error"] != 1 {
		t.Errorf("errors = %v", stats.Errors)
	}
	if got := stats.CacheHitRatio(); got != 0.25 {
		t.Errorf("CacheHitRatio() = %v, want 0.25", got)
	}
}

func TestCollectorNamesRefusedConnection(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	resp, err := http.Get(target)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected dial to a closed server to fail")
	}

	c := metrics.NewCollector()
	c.OnRequestComplete(metrics.Outcome{Latency: time.Millisecond, TransportErr: err})
	stats := c.Stats(time.Second)
	if stats.Errors[metrics.LabelConnectionRefused] != 1 || len(stats.Errors) != 1 {
		t.Errorf("errors = %v, want only %q", stats.Errors, metrics.LabelConnectionRefused)
	}
	if stats.Failures != 1 {
		t.Errorf("failures = %d, want 1", stats.Failures)
	}
}

func TestJSONReportSchema(t *testing.T) {
	c := metrics.NewCollector()
	c.OnRequestComplete(ok(15 * time.Millisecond))
	c.OnRequestComplete(ok(25 * time.Millisecond))

	stats := c.Stats(100 * time.Millisecond)

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("failed to unmarshal stats: %v", err)
	}
	for _, field := range []string{"total", "successes", "failures", "requests_per_sec", "p99_latency_ms", "duration_ms", "buckets"} {
		if _, ok := payload[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	workers := 10
	recordsPerWorker := 100

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerWorker; j++ {
				c.OnRequestComplete(ok(time.Millisecond))
			}
		}()
	}
	wg.Wait()

	stats := c.Stats(0)
	expected := workers * recordsPerWorker
	if stats.Total != int64(expected) {
		t.Errorf("expected total %d, got %d", expected, stats.Total)
	}
}
