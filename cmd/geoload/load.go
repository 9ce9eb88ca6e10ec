package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/torosent/geoload/internal/classify"
	"github.com/torosent/geoload/internal/config"
	"github.com/torosent/geoload/internal/dashboard"
	"github.com/torosent/geoload/internal/driver"
	"github.com/torosent/geoload/internal/geo"
	"github.com/torosent/geoload/internal/httpclient"
	"github.com/torosent/geoload/internal/metrics"
	"github.com/torosent/geoload/internal/output"
	"github.com/torosent/geoload/internal/runner"
	"github.com/torosent/geoload/internal/threshold"
	"github.com/torosent/geoload/internal/tracing"
)

const progressInterval = time.Second

var errThresholdsFailed = errors.New("one or more thresholds failed")

func runLoad(parent context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, warning := range cfg.Warnings() {
		log.Warn().Msg(warning)
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	routes := geo.SampleRoutes
	if cfg.RoutesFile != "" {
		if routes, err = geo.LoadRoutes(cfg.RoutesFile, cfg.RoutesType); err != nil {
			return err
		}
	}
	picker, err := geo.NewPicker(time.Now().UnixNano(), routes)
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing, tracing.RunAttributes(cfg.TargetURL, cfg.Users)...)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	// Structured reports own stdout; the dashboard owns the terminal.
	info := stdout
	if cfg.Output != config.OutputText {
		info = stderr
	}
	tallyOut := info
	if cfg.Dashboard {
		tallyOut = nil
	}

	tally := metrics.NewTally(cfg.ReportEvery, tallyOut)
	collector := metrics.NewCollector()

	directions, err := driver.NewDirections(driver.Options{
		TargetURL:     cfg.TargetURL,
		APIKey:        cfg.APIKey,
		Client:        httpclient.NewClient(cfg.Timeout),
		Picker:        picker,
		Observer:      metrics.Observers{tally, collector},
		SlowThreshold: cfg.SlowThreshold,
		Tracer:        tp.Tracer(),
		Propagate:     tp.ShouldPropagate(),
	})
	if err != nil {
		return err
	}

	var requester runner.Requester = directions
	if cfg.LogErrors {
		requester = runner.WithLogging(requester, failureLogger{})
	}

	r := runner.New(runner.Options{
		Users:         cfg.Users,
		SpawnRate:     cfg.SpawnRate,
		TotalRequests: cfg.Total,
		Duration:      cfg.Duration,
		RatePerSecond: cfg.Rate,
		ThinkMin:      cfg.ThinkMin,
		ThinkMax:      cfg.ThinkMax,
		Requester:     requester,
		OnUserStarted: func(active int) {
			log.Debug().Int("active", active).Msg("user started")
		},
	})

	startedAt := time.Now()
	runID := output.NewRunID(startedAt)
	log.Info().
		Str("run_id", runID).
		Str("target", directions.Endpoint()).
		Int("users", cfg.Users).
		Msg("starting load test")

	var dash *dashboard.Dashboard
	var progress *output.ProgressReporter
	switch {
	case cfg.Dashboard:
		dash, err = dashboard.New(collector, tally, dashboard.TestConfig{
			TargetURL:  directions.Endpoint(),
			Users:      cfg.Users,
			SpawnRate:  cfg.SpawnRate,
			Duration:   cfg.Duration,
			Total:      cfg.Total,
			Rate:       cfg.Rate,
			ThinkMin:   cfg.ThinkMin,
			ThinkMax:   cfg.ThinkMax,
			Timeout:    cfg.Timeout,
			ConfigFile: cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
	case cfg.Progress:
		progress = output.NewProgressReporter(collector, tally, progressInterval, info)
		progress.Start()
	}

	result := r.Run(ctx)

	stats := collector.Stats(result.Duration)
	if dash != nil {
		dash.Stop()
		stats = dash.GetFinalStats()
	}
	if progress != nil {
		progress.Stop()
	}

	results := threshold.NewEvaluator(thresholds).Evaluate(stats)
	passed := threshold.AllPassed(results)

	report := output.Report{
		RunID:      runID,
		StartedAt:  startedAt.UTC(),
		Target:     directions.Endpoint(),
		Users:      result.Users,
		Tally:      tally.Snapshot(),
		Stats:      stats,
		Thresholds: results,
	}
	if err := writeReport(stdout, cfg.Output, report); err != nil {
		return err
	}

	if cfg.HistoryFile != "" {
		recordHistory(cfg.HistoryFile, output.HistoryEntryFromReport(report, passed), info)
	}

	if !passed {
		return errThresholdsFailed
	}
	return nil
}

func writeReport(w io.Writer, format config.OutputFormat, report output.Report) error {
	switch format {
	case config.OutputJSON:
		return output.PrintJSONReport(w, report)
	case config.OutputYAML:
		return output.PrintYAMLReport(w, report)
	default:
		output.PrintReport(w, report)
		return nil
	}
}

// recordHistory compares against the previous run before appending, so the line
// reflects the file as it was when this run started reporting.
func recordHistory(path string, entry output.HistoryEntry, w io.Writer) {
	prev, ok, err := output.LastHistoryEntry(path)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("path", path).Msg("could not read run history")
	case ok:
		fmt.Fprintln(w, output.CompareLine(prev, entry))
	}
	if err := output.AppendHistory(path, entry); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not append run history")
	}
}

// failureLogger logs failed requests through the global zerolog logger.
type failureLogger struct{}

func (failureLogger) LogFailure(err error) {
	event := log.Warn()
	var failure *classify.FailureError
	if errors.As(err, &failure) {
		event = event.Int("status", failure.StatusCode).Strs("reasons", failure.Reasons)
	} else {
		event = event.Err(err)
	}
	event.Msg("request failed")
}
