package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/geoload/internal/metrics"
	"github.com/torosent/geoload/internal/threshold"
)

// Report is the final summary of a load run.
type Report struct {
	RunID      string                `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time             `json:"started_at" yaml:"started_at"`
	Target     string                `json:"target" yaml:"target"`
	Users      int                   `json:"users" yaml:"users"`
	Tally      metrics.TallySnapshot `json:"tally" yaml:"tally"`
	Stats      metrics.Stats         `json:"stats" yaml:"stats"`
	Thresholds []threshold.Result    `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

var bucketTitles = []struct {
	dimension string
	title     string
}{
	{metrics.DimensionStatus, "Status Codes"},
	{metrics.DimensionCache, "X-Cache"},
	{metrics.DimensionAPIStatus, "API Status"},
	{metrics.DimensionReason, "Failure Reasons"},
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	if r.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	}
	if r.Target != "" {
		fmt.Fprintf(w, "Target:            %s\n", r.Target)
	}
	fmt.Fprintf(w, "Users:             %d\n", r.Users)
	fmt.Fprintf(w, "Total Requests:    %d\n", r.Tally.Requests)
	fmt.Fprintf(w, "Failures:          %d (%.1f%%)\n", r.Tally.Failures, r.Tally.FailureRate())
	fmt.Fprintf(w, "502s:              %d\n", r.Tally.Status502)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	fmt.Fprintf(w, "Cache Hit Ratio:   %.1f%%\n", stats.CacheHitRatio()*100)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	for _, section := range bucketTitles {
		rows := metrics.FlattenBuckets(stats.Buckets, section.dimension)
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", section.title)
		for _, row := range rows {
			fmt.Fprintf(w, "  %s: %d\n", row.Key, row.Count)
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nTransport Errors:")
		names := make([]string, 0, len(stats.Errors))
		for name := range stats.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, stats.Errors[name])
		}
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, result := range r.Thresholds {
			fmt.Fprintf(w, "  %s\n", strings.TrimSpace(result.Message))
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
