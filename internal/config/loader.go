package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader builds configurations from flags, an optional config file, the process
// environment and an optional dotenv file.
type Loader struct {
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a Loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{lookupEnv: os.LookupEnv}
}

// NewLoaderWithEnv creates a Loader that sees only env as its environment.
func NewLoaderWithEnv(env map[string]string) *Loader {
	return &Loader{lookupEnv: func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}}
}

// LoadFlags builds a Config from an already parsed flag set. The API key check
// happens here so a missing key fails before any traffic is generated.
func (l *Loader) LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	env, envFile, err := l.environment(fs)
	if err != nil {
		return nil, err
	}

	configPath, _ := fs.GetString("config")
	cfg := &Config{
		TargetURL:     DefaultTargetURL,
		Users:         1,
		ThinkMin:      DefaultThinkMin,
		ThinkMax:      DefaultThinkMax,
		SlowThreshold: DefaultSlowThreshold,
		ReportEvery:   DefaultReportEvery,
		Output:        OutputText,
		ConfigFile:    configPath,
		EnvFile:       envFile,
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := applyConfigFile(cfg, fileSettings{v: v}); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
	}

	if key, ok := env(APIKeyEnv); ok && strings.TrimSpace(key) != "" {
		cfg.APIKey = strings.TrimSpace(key)
	}

	if err := applyLoadFlagOverrides(cfg, fs); err != nil {
		return nil, err
	}

	if cfg.APIKey == "" {
		return nil, &MissingEnvError{Name: APIKeyEnv}
	}
	return cfg, nil
}

// LoadSmokeFlags builds a SmokeConfig from an already parsed flag set. Empty
// environment values fall back to the defaults.
func (l *Loader) LoadSmokeFlags(kind SmokeKind, fs *pflag.FlagSet) (*SmokeConfig, error) {
	env, envFile, err := l.environment(fs)
	if err != nil {
		return nil, err
	}

	cfg := &SmokeConfig{
		Kind:     kind,
		URL:      kind.DefaultURL(),
		APIKey:   DefaultSmokeKey,
		Requests: DefaultSmokeRequests,
		EnvFile:  envFile,
	}
	if val, ok := env(SmokeURLEnv); ok && strings.TrimSpace(val) != "" {
		cfg.URL = strings.TrimSpace(val)
	}
	if val, ok := env(SmokeKeyEnv); ok && strings.TrimSpace(val) != "" {
		cfg.APIKey = strings.TrimSpace(val)
	}

	if err := applySmokeFlagOverrides(cfg, fs); err != nil {
		return nil, err
	}
	return cfg, nil
}

// environment returns a lookup that prefers the real environment and falls back to
// the dotenv file, mirroring dotenv loaders that never override set variables.
func (l *Loader) environment(fs *pflag.FlagSet) (func(string) (string, bool), string, error) {
	lookup := l.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	path, _ := fs.GetString("env-file")
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultEnvFile
		if _, err := os.Stat(path); err != nil {
			return lookup, "", nil
		}
	}

	values, err := readDotEnv(path)
	if err != nil {
		return nil, "", err
	}
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, path, nil
}

func readDotEnv(path string) (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	// viper lower-cases keys; environment variable names are upper case.
	values := make(map[string]string)
	for _, key := range v.AllKeys() {
		values[strings.ToUpper(key)] = v.GetString(key)
	}
	return values, nil
}

// applyConfigFile copies every setting present in the file onto cfg. Flags applied
// afterwards still win.
func applyConfigFile(cfg *Config, s fileSettings) error {
	output := string(cfg.Output)
	err := errors.Join(
		s.str("target", &cfg.TargetURL),
		s.str("api_key", &cfg.APIKey),
		s.str("routes_file", &cfg.RoutesFile),
		s.str("routes_type", &cfg.RoutesType),
		s.integer("users", &cfg.Users),
		s.float("spawn_rate", &cfg.SpawnRate),
		s.integer("rate", &cfg.Rate),
		s.integer("total", &cfg.Total),
		s.integer("report_every", &cfg.ReportEvery),
		s.duration("duration", &cfg.Duration),
		s.duration("timeout", &cfg.Timeout),
		s.duration("think_min", &cfg.ThinkMin),
		s.duration("think_max", &cfg.ThinkMax),
		s.duration("slow_threshold", &cfg.SlowThreshold),
		s.str("output", &output),
		s.boolean("progress", &cfg.Progress),
		s.boolean("dashboard", &cfg.Dashboard),
		s.boolean("log_errors", &cfg.LogErrors),
		s.boolean("verbose", &cfg.Verbose),
		s.list("thresholds", &cfg.Thresholds),
		s.str("history_file", &cfg.HistoryFile),
		applyTracingSection(&cfg.Tracing, s.section("tracing")),
	)
	if err != nil {
		return err
	}
	cfg.RoutesType = strings.ToLower(cfg.RoutesType)
	if output != "" {
		cfg.Output = OutputFormat(strings.ToLower(output))
	}
	return nil
}

func applyTracingSection(t *TracingConfig, s fileSettings) error {
	var propagate *bool
	if _, ok := s.lookup("propagate"); ok {
		propagate = new(bool)
	}
	err := errors.Join(
		s.boolean("enabled", &t.Enable),
		s.str("endpoint", &t.Endpoint),
		s.str("protocol", &t.Protocol),
		s.str("service_name", &t.ServiceName),
		s.float("sample_rate", &t.SampleRate),
		s.boolean("insecure", &t.Insecure),
	)
	if propagate != nil {
		err = errors.Join(err, s.boolean("propagate", propagate))
		t.Propagate = propagate
	}
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	t.Protocol = strings.ToLower(t.Protocol)
	return nil
}
