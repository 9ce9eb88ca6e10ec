package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/geoload/internal/metrics"
)

// TestConfig holds load test configuration parameters for display.
type TestConfig struct {
	TargetURL  string        // Directions endpoint
	Users      int           // Number of simulated users
	SpawnRate  float64       // Users started per second (0 = all at once)
	Duration   time.Duration // Test duration (0 = unlimited)
	Total      int           // Total requests to execute (0 = unlimited)
	Rate       int           // Requests per second (0 = unlimited)
	ThinkMin   time.Duration
	ThinkMax   time.Duration
	Timeout    time.Duration
	ConfigFile string
}

// Dashboard renders a live terminal UI for load test metrics.
type Dashboard struct {
	collector    *metrics.Collector
	tally        *metrics.Tally
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	rpsGauge       *widgets.Gauge
	summaryPara    *widgets.Paragraph
	tallyPara      *widgets.Paragraph
	statusList     *widgets.List
	cacheList      *widgets.List
	reasonList     *widgets.List
	latencyHistory []float64
	startTime      time.Time
	testDuration   time.Duration
	testConfig     TestConfig
}

// New initializes the terminal and builds the dashboard layout.
func New(collector *metrics.Collector, tally *metrics.Tally, cfg TestConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:      collector,
		tally:          tally,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, 100),
		startTime:      time.Now(),
		testConfig:     cfg,
	}
	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Real-time Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP95: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.rpsGauge = widgets.NewGauge()
	d.rpsGauge.Title = "Requests Per Second"
	d.rpsGauge.BarColor = ui.ColorBlue
	d.rpsGauge.BorderStyle.Fg = ui.ColorCyan
	d.rpsGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Test Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.tallyPara = widgets.NewParagraph()
	d.tallyPara.Title = "Tally"
	d.tallyPara.Text = "Waiting for data..."
	d.tallyPara.BorderStyle.Fg = ui.ColorCyan

	d.statusList = newBucketList("Status Codes", ui.ColorYellow)
	d.cacheList = newBucketList("X-Cache", ui.ColorGreen)
	d.reasonList = newBucketList("Failure Reasons", ui.ColorRed)
}

func newBucketList(title string, color ui.Color) *widgets.List {
	l := widgets.NewList()
	l.Title = title
	l.Rows = []string{"Awaiting data"}
	l.TextStyle = ui.NewStyle(color)
	l.BorderStyle.Fg = ui.ColorCyan
	return l
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.2,
			ui.NewCol(0.5, d.rpsGauge),
			ui.NewCol(0.5, d.tallyPara),
		),
		ui.NewRow(0.3,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.36,
			ui.NewCol(0.33, d.statusList),
			ui.NewCol(0.33, d.cacheList),
			ui.NewCol(0.34, d.reasonList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	d.testDuration = time.Since(d.startTime)
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// GetFinalStats returns the final statistics after the dashboard has stopped,
// measured over the time the dashboard was on screen.
func (d *Dashboard) GetFinalStats() metrics.Stats {
	return d.collector.Stats(d.testDuration)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the runner drains.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update(time.Since(d.startTime))
			d.render()
		}
	}
}

func (d *Dashboard) update(elapsed time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.collector.Stats(elapsed)
	snap := d.tally.Snapshot()

	if stats.MeanLatency > 0 {
		d.latencyHistory = append(d.latencyHistory, stats.MeanLatencyMs)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Real-time Latency | Current: %.2fms | Min: %.2fms | Max: %.2fms",
			stats.MeanLatencyMs, stats.MinLatencyMs, stats.MaxLatencyMs,
		)
	}

	currentRPS := stats.RequestsPerSec
	maxRPS := 100.0
	if currentRPS > maxRPS {
		maxRPS = currentRPS
	}
	d.rpsGauge.Percent = int((currentRPS / maxRPS) * 100)
	d.rpsGauge.Label = fmt.Sprintf("%.1f RPS", currentRPS)

	d.summaryPara.Text = fmt.Sprintf("Target: %s\n%s\nElapsed: %s",
		d.testConfig.TargetURL, d.formatTestParams(), elapsed.Round(time.Second))

	d.tallyPara.Text = fmt.Sprintf(
		"Requests:         %d\nFailures:         %d (%.1f%%)\n502s:             %d\nCache Hit Ratio:  %.1f%%",
		snap.Requests, snap.Failures, snap.FailureRate(), snap.Status502, stats.CacheHitRatio()*100,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP95:  %.2fms\nP99:  %.2fms",
		stats.MinLatencyMs, stats.MeanLatencyMs, stats.P50LatencyMs, stats.P95LatencyMs, stats.P99LatencyMs,
	)

	d.statusList.Rows = formatBucketRows(stats, metrics.DimensionStatus, "No responses")
	d.cacheList.Rows = formatBucketRows(stats, metrics.DimensionCache, "No responses")
	d.reasonList.Rows = formatBucketRows(stats, metrics.DimensionReason, "[No failures](fg:green)")
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

const maxBucketRows = 10

func formatBucketRows(stats metrics.Stats, dimension, empty string) []string {
	rows := metrics.FlattenBuckets(stats.Buckets, dimension)
	if len(rows) == 0 {
		return []string{empty}
	}
	if len(rows) > maxBucketRows {
		rows = rows[:maxBucketRows]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		share := 0.0
		if stats.Total > 0 {
			share = float64(row.Count) / float64(stats.Total) * 100
		}
		formatted = append(formatted, fmt.Sprintf("%s: %d (%.1f%%)", row.Key, row.Count, share))
	}
	return formatted
}

func (d *Dashboard) formatTestParams() string {
	cfg := d.testConfig
	var parts []string

	if cfg.Users > 0 {
		parts = append(parts, fmt.Sprintf("Users: %d", cfg.Users))
	}
	if cfg.SpawnRate > 0 {
		parts = append(parts, fmt.Sprintf("Spawn: %g/s", cfg.SpawnRate))
	}
	if cfg.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", cfg.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if cfg.ThinkMax > 0 {
		parts = append(parts, fmt.Sprintf("Think: %s-%s", cfg.ThinkMin, cfg.ThinkMax))
	}
	if cfg.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", cfg.Duration))
	}
	if cfg.Total > 0 {
		parts = append(parts, fmt.Sprintf("Total: %d", cfg.Total))
	}
	if cfg.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", cfg.Timeout))
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}
	return strings.Join(parts, " | ")
}
