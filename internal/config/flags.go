package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterLoadFlags registers the load command flags on cmd.
func RegisterLoadFlags(cmd *cobra.Command) {
	configureLoadFlags(cmd.Flags())
}

// RegisterSmokeFlags registers the smoke probe flags on cmd.
func RegisterSmokeFlags(cmd *cobra.Command) {
	configureSmokeFlags(cmd.Flags())
}

func configureLoadFlags(flags *pflag.FlagSet) {
	// Target
	flags.String("target", DefaultTargetURL, "Base URL of the geo server under test")
	flags.String("api-key", "", "Maps API key (overrides "+APIKeyEnv+")")
	flags.String("routes-file", "", "CSV or JSON file of origin/destination routes replacing the built-in set")
	flags.String("routes-type", "", "Type of routes file: 'csv' or 'json' (default from extension)")

	// Load shape
	flags.IntP("users", "u", 1, "Number of simulated users")
	flags.Float64("spawn-rate", 0, "Users started per second (0 starts all users at once)")
	flags.IntP("rate", "r", 0, "Global requests per second cap (0 means unlimited)")
	flags.DurationP("duration", "d", 0, "How long to run the test (e.g. 30s, 1m)")
	flags.IntP("total", "t", 0, "Total number of requests to send (0 means unlimited)")
	flags.Duration("timeout", 0, "Per-request client timeout (0 disables it)")
	flags.Duration("think-min", DefaultThinkMin, "Minimum wait between requests of one user")
	flags.Duration("think-max", DefaultThinkMax, "Maximum wait between requests of one user")
	flags.Duration("slow-threshold", DefaultSlowThreshold, "Responses slower than this are recorded as failures")

	// Output
	flags.Int("report-every", DefaultReportEvery, "Print a summary line every N requests")
	flags.StringP("output", "o", string(OutputText), "Final report format: text, json or yaml")
	flags.Bool("progress", false, "Show a live progress line")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'http_req_failed:rate < 0.05')")
	flags.String("history-file", "", "Append a JSON summary line of each run to this file")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")
	flags.String("env-file", "", "Path to a dotenv file (default .env when present)")

	// Tracing
	flags.Bool("tracing", false, "Record an OpenTelemetry span per request")
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (defaults to OTEL_EXPORTER_OTLP_ENDPOINT)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests traced (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS to the OTLP collector")
	flags.Bool("tracing-propagate", true, "Inject W3C trace context headers into requests")
}

func configureSmokeFlags(flags *pflag.FlagSet) {
	flags.String("url", "", "Endpoint URL (overrides "+SmokeURLEnv+")")
	flags.String("api-key", "", "Maps API key (overrides "+SmokeKeyEnv+")")
	flags.Int("requests", DefaultSmokeRequests, "Number of sequential requests")
	flags.Duration("timeout", 0, "Per-request client timeout (0 disables it)")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.String("env-file", "", "Path to a dotenv file (default .env when present)")
}

// applyLoadFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and environment.
func applyLoadFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err != nil || !fs.Changed(name) {
			return
		}
		if applyErr := apply(); applyErr != nil {
			err = fmt.Errorf("%s: %w", name, applyErr)
		}
	}

	set("target", func() error {
		val, e := fs.GetString("target")
		cfg.TargetURL = strings.TrimSpace(val)
		return e
	})
	set("api-key", func() error {
		val, e := fs.GetString("api-key")
		cfg.APIKey = strings.TrimSpace(val)
		return e
	})
	set("routes-file", func() error {
		val, e := fs.GetString("routes-file")
		cfg.RoutesFile = strings.TrimSpace(val)
		return e
	})
	set("routes-type", func() error {
		val, e := fs.GetString("routes-type")
		cfg.RoutesType = strings.ToLower(strings.TrimSpace(val))
		return e
	})
	set("users", func() error {
		val, e := fs.GetInt("users")
		cfg.Users = val
		return e
	})
	set("spawn-rate", func() error {
		val, e := fs.GetFloat64("spawn-rate")
		cfg.SpawnRate = val
		return e
	})
	set("rate", func() error {
		val, e := fs.GetInt("rate")
		cfg.Rate = val
		return e
	})
	set("duration", func() error {
		val, e := fs.GetDuration("duration")
		cfg.Duration = val
		return e
	})
	set("total", func() error {
		val, e := fs.GetInt("total")
		cfg.Total = val
		return e
	})
	set("timeout", func() error {
		val, e := fs.GetDuration("timeout")
		cfg.Timeout = val
		return e
	})
	set("think-min", func() error {
		val, e := fs.GetDuration("think-min")
		cfg.ThinkMin = val
		return e
	})
	set("think-max", func() error {
		val, e := fs.GetDuration("think-max")
		cfg.ThinkMax = val
		return e
	})
	set("slow-threshold", func() error {
		val, e := fs.GetDuration("slow-threshold")
		cfg.SlowThreshold = val
		return e
	})
	set("report-every", func() error {
		val, e := fs.GetInt("report-every")
		cfg.ReportEvery = val
		return e
	})
	set("output", func() error {
		val, e := fs.GetString("output")
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
		return e
	})
	set("progress", func() error {
		val, e := fs.GetBool("progress")
		cfg.Progress = val
		return e
	})
	set("dashboard", func() error {
		val, e := fs.GetBool("dashboard")
		cfg.Dashboard = val
		return e
	})
	set("log-errors", func() error {
		val, e := fs.GetBool("log-errors")
		cfg.LogErrors = val
		return e
	})
	set("verbose", func() error {
		val, e := fs.GetBool("verbose")
		cfg.Verbose = val
		return e
	})
	set("threshold", func() error {
		val, e := fs.GetStringSlice("threshold")
		cfg.Thresholds = append(cfg.Thresholds, val...)
		return e
	})
	set("history-file", func() error {
		val, e := fs.GetString("history-file")
		cfg.HistoryFile = strings.TrimSpace(val)
		return e
	})
	set("tracing", func() error {
		val, e := fs.GetBool("tracing")
		cfg.Tracing.Enable = val
		return e
	})
	set("tracing-endpoint", func() error {
		val, e := fs.GetString("tracing-endpoint")
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
		return e
	})
	set("tracing-protocol", func() error {
		val, e := fs.GetString("tracing-protocol")
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
		return e
	})
	set("tracing-service-name", func() error {
		val, e := fs.GetString("tracing-service-name")
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
		return e
	})
	set("tracing-sample-rate", func() error {
		val, e := fs.GetFloat64("tracing-sample-rate")
		cfg.Tracing.SampleRate = val
		return e
	})
	set("tracing-insecure", func() error {
		val, e := fs.GetBool("tracing-insecure")
		cfg.Tracing.Insecure = val
		return e
	})
	set("tracing-propagate", func() error {
		val, e := fs.GetBool("tracing-propagate")
		cfg.Tracing.Propagate = &val
		return e
	})
	return err
}

func applySmokeFlagOverrides(cfg *SmokeConfig, fs *pflag.FlagSet) error {
	if fs.Changed("url") {
		val, err := fs.GetString("url")
		if err != nil {
			return err
		}
		cfg.URL = strings.TrimSpace(val)
	}
	if fs.Changed("api-key") {
		val, err := fs.GetString("api-key")
		if err != nil {
			return err
		}
		cfg.APIKey = strings.TrimSpace(val)
	}
	if fs.Changed("requests") {
		val, err := fs.GetInt("requests")
		if err != nil {
			return err
		}
		cfg.Requests = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("verbose") {
		val, err := fs.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = val
	}
	return nil
}
