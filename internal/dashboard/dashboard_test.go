package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/geoload/internal/metrics"
)

func TestFormatBucketRows(t *testing.T) {
	stats := metrics.Stats{
		Total: 10,
		Buckets: map[string]map[string]int{
			metrics.DimensionCache: {"HIT": 7, "MISS": 2, "None": 1},
		},
	}

	rows := formatBucketRows(stats, metrics.DimensionCache, "empty")
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0] != "HIT: 7 (70.0%)" {
		t.Errorf("rows[0] = %q", rows[0])
	}

	empty := formatBucketRows(stats, metrics.DimensionReason, "[No failures](fg:green)")
	if len(empty) != 1 || !strings.Contains(empty[0], "No failures") {
		t.Errorf("empty rows = %v", empty)
	}
}

func TestFormatBucketRowsLimit(t *testing.T) {
	keys := map[string]int{}
	for i := 0; i < 15; i++ {
		keys[string(rune('a'+i))] = i + 1
	}
	stats := metrics.Stats{Total: 120, Buckets: map[string]map[string]int{metrics.DimensionStatus: keys}}

	rows := formatBucketRows(stats, metrics.DimensionStatus, "")
	if len(rows) != maxBucketRows {
		t.Fatalf("expected %d rows, got %d", maxBucketRows, len(rows))
	}
}

func TestUpdate(t *testing.T) {
	collector := metrics.NewCollector()
	tally := metrics.NewTally(0, nil)
	observer := metrics.Observers{collector, tally}
	observer.OnRequestComplete(metrics.Outcome{StatusCode: 200, Latency: 20 * time.Millisecond, CacheStatus: "HIT"})
	observer.OnRequestComplete(metrics.Outcome{StatusCode: 502, Latency: 30 * time.Millisecond, CacheStatus: "MISS", Reasons: []string{"502 Bad Gateway Error"}})

	d := &Dashboard{
		collector:      collector,
		tally:          tally,
		latencySparkle: widgets.NewSparklineGroup(widgets.NewSparkline()),
		latencyPara:    widgets.NewParagraph(),
		rpsGauge:       widgets.NewGauge(),
		summaryPara:    widgets.NewParagraph(),
		tallyPara:      widgets.NewParagraph(),
		statusList:     widgets.NewList(),
		cacheList:      widgets.NewList(),
		reasonList:     widgets.NewList(),
		testConfig:     TestConfig{TargetURL: "http://localhost:8081/maps/api/directions/json", Users: 2},
	}

	d.update(time.Second)

	if !strings.Contains(d.tallyPara.Text, "502s:             1") {
		t.Errorf("tally text = %q", d.tallyPara.Text)
	}
	if !strings.Contains(d.tallyPara.Text, "Cache Hit Ratio:  50.0%") {
		t.Errorf("tally text = %q", d.tallyPara.Text)
	}
	if !strings.Contains(d.summaryPara.Text, "directions/json") {
		t.Errorf("summary text = %q", d.summaryPara.Text)
	}
	if len(d.reasonList.Rows) != 1 || !strings.HasPrefix(d.reasonList.Rows[0], "502 Bad Gateway Error: 1") {
		t.Errorf("reason rows = %v", d.reasonList.Rows)
	}
	if len(d.latencyHistory) != 1 {
		t.Errorf("expected one latency sample, got %d", len(d.latencyHistory))
	}
}

func TestGetFinalStatsUsesDisplayedDuration(t *testing.T) {
	collector := metrics.NewCollector()
	for i := 0; i < 4; i++ {
		collector.OnRequestComplete(metrics.Outcome{StatusCode: 200, Latency: 10 * time.Millisecond})
	}
	d := &Dashboard{collector: collector, testDuration: 2 * time.Second}

	stats := d.GetFinalStats()
	if stats.Total != 4 || stats.Successes != 4 {
		t.Fatalf("totals = %d/%d", stats.Total, stats.Successes)
	}
	if stats.Duration != 2*time.Second || stats.RequestsPerSec != 2 {
		t.Errorf("duration/rps = %s/%v, want 2s/2", stats.Duration, stats.RequestsPerSec)
	}
}

func TestFormatTestParams(t *testing.T) {
	tests := []struct {
		name     string
		config   TestConfig
		contains []string
		excludes []string
	}{
		{
			name:     "basic config",
			config:   TestConfig{Users: 10, Rate: 100, Duration: 30 * time.Second},
			contains: []string{"Users: 10", "Rate: 100/s", "Duration: 30s"},
			excludes: []string{"Spawn:", "Think:"},
		},
		{
			name:     "unlimited rate",
			config:   TestConfig{Users: 5},
			contains: []string{"Users: 5", "Rate: unlimited"},
		},
		{
			name:     "spawn and think",
			config:   TestConfig{Users: 3, SpawnRate: 2, ThinkMin: 500 * time.Millisecond, ThinkMax: 2 * time.Second},
			contains: []string{"Spawn: 2/s", "Think: 500ms-2s"},
		},
		{
			name:     "with config file",
			config:   TestConfig{Users: 5, ConfigFile: "load.yml"},
			contains: []string{"Config: load.yml"},
		},
		{
			name:     "with total and timeout",
			config:   TestConfig{Users: 5, Total: 1000, Timeout: 10 * time.Second},
			contains: []string{"Total: 1000", "Timeout: 10s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Dashboard{testConfig: tt.config}
			result := d.formatTestParams()

			for _, s := range tt.contains {
				if !strings.Contains(result, s) {
					t.Errorf("expected result to contain %q, got %q", s, result)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(result, s) {
					t.Errorf("expected result NOT to contain %q, got %q", s, result)
				}
			}
		})
	}
}
