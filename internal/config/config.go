package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// APIKeyEnv names the variable the load driver reads its API key from.
	APIKeyEnv = "MAPS_API_KEY"
	// SmokeKeyEnv and SmokeURLEnv configure the smoke probes.
	SmokeKeyEnv = "GOOGLE_MAPS_KEY"
	SmokeURLEnv = "GOOGLE_MAPS_URL"

	DefaultTargetURL          = "http://localhost:8081"
	DefaultSmokeKey           = "test-key"
	DefaultDirectionsURL      = "http://localhost:8081/maps/api/directions/json"
	DefaultDistanceMatrixURL  = "http://localhost:8081/maps/api/distancematrix/json"
	DefaultSmokeRequests      = 3
	DefaultReportEvery        = 50
	DefaultThinkMin           = 500 * time.Millisecond
	DefaultThinkMax           = 2 * time.Second
	DefaultSlowThreshold      = 5 * time.Second
	defaultEnvFile            = ".env"
	highUsersWarningThreshold = 500
)

// ErrMissingAPIKey is wrapped by MissingEnvError.
var ErrMissingAPIKey = errors.New("API key is not configured")

// MissingEnvError reports a required environment variable that is not set.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("%s environment variable is not set. Please export %s='your_key_here'", e.Name, e.Name)
}

func (e *MissingEnvError) Unwrap() error {
	return ErrMissingAPIKey
}

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

// Config drives the directions load test.
type Config struct {
	TargetURL     string        `mapstructure:"target"`
	APIKey        string        `mapstructure:"api_key"`
	Users         int           `mapstructure:"users"`
	SpawnRate     float64       `mapstructure:"spawn_rate"`
	Rate          int           `mapstructure:"rate"`
	Duration      time.Duration `mapstructure:"duration"`
	Total         int           `mapstructure:"total"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ThinkMin      time.Duration `mapstructure:"think_min"`
	ThinkMax      time.Duration `mapstructure:"think_max"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	ReportEvery   int           `mapstructure:"report_every"`
	RoutesFile    string        `mapstructure:"routes_file"`
	RoutesType    string        `mapstructure:"routes_type"` // "csv" or "json"
	Output        OutputFormat  `mapstructure:"output"`
	Progress      bool          `mapstructure:"progress"`
	Dashboard     bool          `mapstructure:"dashboard"`
	LogErrors     bool          `mapstructure:"log_errors"`
	Verbose       bool          `mapstructure:"verbose"`
	Thresholds    []string      `mapstructure:"thresholds"`
	HistoryFile   string        `mapstructure:"history_file"`
	Tracing       TracingConfig `mapstructure:"tracing"`
	ConfigFile    string        `mapstructure:"-"`
	EnvFile       string        `mapstructure:"-"`
}

// TracingConfig configures OpenTelemetry export of per-request spans.
type TracingConfig struct {
	Enable      bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`     // OTLP collector host:port
	Protocol    string  `mapstructure:"protocol"`     // "grpc" (default) or "http"
	ServiceName string  `mapstructure:"service_name"` // defaults to OTEL_SERVICE_NAME or geoload
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"` // nil follows Enabled()
}

// Enabled reports whether spans should be recorded at all.
func (t TracingConfig) Enabled() bool {
	return t.Enable || strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type SmokeKind string

const (
	SmokeDirections     SmokeKind = "directions"
	SmokeDistanceMatrix SmokeKind = "distancematrix"
)

// DefaultURL is the endpoint probed when GOOGLE_MAPS_URL is not set.
func (k SmokeKind) DefaultURL() string {
	if k == SmokeDistanceMatrix {
		return DefaultDistanceMatrixURL
	}
	return DefaultDirectionsURL
}

// SmokeConfig drives one sequential smoke probe.
type SmokeConfig struct {
	Kind     SmokeKind
	URL      string
	APIKey   string
	Requests int
	Timeout  time.Duration
	Verbose  bool
	EnvFile  string
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if err := validateHTTPURL(c.TargetURL); err != nil {
		issues = append(issues, fmt.Sprintf("target %v", err))
	}
	if strings.TrimSpace(c.APIKey) == "" {
		issues = append(issues, "api key is required")
	}
	if c.Users < 1 {
		issues = append(issues, "users must be at least 1")
	}
	if c.SpawnRate < 0 {
		issues = append(issues, "spawn-rate must be non-negative")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be non-negative")
	}
	if c.Total < 0 {
		issues = append(issues, "total must be non-negative")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be non-negative")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be non-negative")
	}
	if c.ThinkMin < 0 {
		issues = append(issues, "think-min must be non-negative")
	}
	if c.ThinkMax < c.ThinkMin {
		issues = append(issues, "think-max must be greater than or equal to think-min")
	}
	if c.SlowThreshold <= 0 {
		issues = append(issues, "slow-threshold must be positive")
	}
	if c.ReportEvery < 1 {
		issues = append(issues, "report-every must be at least 1")
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be text, json or yaml (got %q)", c.Output))
	}
	if c.Dashboard && c.Output != OutputText {
		issues = append(issues, "dashboard cannot be combined with json or yaml output")
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol must be grpc or http (got %q)", c.Tracing.Protocol))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing sample-rate must be between 0.0 and 1.0")
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings returns non-fatal observations about the configuration.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Users > highUsersWarningThreshold {
		warnings = append(warnings, fmt.Sprintf("High user count configured (%d users). Ensure you have authorization to test the target system.", c.Users))
	}
	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("High rate limit configured (%d RPS). Ensure you have authorization to test the target system.", c.Rate))
	}
	if c.Duration == 0 && c.Total == 0 {
		warnings = append(warnings, "Neither duration nor total is set; the run continues until interrupted.")
	}
	return warnings
}

func (c SmokeConfig) Validate() error {
	var issues []string
	if err := validateHTTPURL(c.URL); err != nil {
		issues = append(issues, fmt.Sprintf("url %v", err))
	}
	if c.Requests < 1 {
		issues = append(issues, "requests must be at least 1")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be non-negative")
	}
	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https (got %q)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host (got %q)", raw)
	}
	return nil
}
