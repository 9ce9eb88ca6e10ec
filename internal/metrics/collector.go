package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/tidwall/gjson"

	"github.com/torosent/geoload/internal/classify"
)

// Bucket dimensions reported in Stats.Buckets.
const (
	DimensionStatus    = "status"
	DimensionCache     = "cache"
	DimensionAPIStatus = "api_status"
	DimensionReason    = "reason"
)

const (
	noResponseKey = "no response"
	noCacheKey    = "None"
)

// Collector records per-request metrics in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByType map[string]int64
	buckets      map[string]map[string]int64
}

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64         `json:"total" yaml:"total"`
	Successes      int64         `json:"successes" yaml:"successes"`
	Failures       int64         `json:"failures" yaml:"failures"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P95Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs    float64 `json:"duration_ms" yaml:"duration_ms"`

	Errors  map[string]int            `json:"errors,omitempty" yaml:"errors,omitempty"`
	Buckets map[string]map[string]int `json:"buckets,omitempty" yaml:"buckets,omitempty"`
}

// Bucket returns the count for key in dimension.
func (s Stats) Bucket(dimension, key string) int {
	return s.Buckets[dimension][key]
}

// CacheHitRatio returns the share of responses whose X-Cache value was HIT.
func (s Stats) CacheHitRatio() float64 {
	cache := s.Buckets[DimensionCache]
	var total int
	for _, n := range cache {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(cache["HIT"]) / float64(total)
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:         h,
		errorsByType: make(map[string]int64),
		buckets:      make(map[string]map[string]int64),
	}
}

// OnRequestComplete records latency, success state and the outcome's buckets.
func (c *Collector) OnRequestComplete(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordLatencyLocked(o.Latency)
	if o.Failed() {
		c.failures++
	} else {
		c.successes++
	}

	if !o.HasResponse() {
		c.bumpLocked(DimensionStatus, noResponseKey)
		if o.TransportErr != nil {
			c.errorsByType[TransportErrorName(o.TransportErr)]++
		}
		return
	}

	c.bumpLocked(DimensionStatus, strconv.Itoa(o.StatusCode))
	cache := o.CacheStatus
	if cache == "" {
		cache = noCacheKey
	}
	c.bumpLocked(DimensionCache, cache)
	if status := gjson.GetBytes(o.Body, "status"); status.Exists() && status.Type == gjson.String {
		c.bumpLocked(DimensionAPIStatus, status.String())
	}
	for _, reason := range o.Reasons {
		c.bumpLocked(DimensionReason, classify.Category(reason))
	}
}

func (c *Collector) recordLatencyLocked(latency time.Duration) {
	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency

	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
}

func (c *Collector) bumpLocked(dimension, key string) {
	m, ok := c.buckets[dimension]
	if !ok {
		m = make(map[string]int64)
		c.buckets[dimension] = m
	}
	m[key]++
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}

	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P95Latency = time.Duration(c.hist.ValueAtQuantile(95)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = toMillis(stats.MinLatency)
	stats.MaxLatencyMs = toMillis(stats.MaxLatency)
	stats.MeanLatencyMs = toMillis(stats.MeanLatency)
	stats.P50LatencyMs = toMillis(stats.P50Latency)
	stats.P90LatencyMs = toMillis(stats.P90Latency)
	stats.P95LatencyMs = toMillis(stats.P95Latency)
	stats.P99LatencyMs = toMillis(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = toMillis(elapsed)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	if len(c.buckets) > 0 {
		stats.Buckets = make(map[string]map[string]int, len(c.buckets))
		for dim, keys := range c.buckets {
			m := make(map[string]int, len(keys))
			for k, v := range keys {
				m[k] = int(v)
			}
			stats.Buckets[dim] = m
		}
	}

	return stats
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
