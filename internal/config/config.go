// Package config layers command-line flags, SHAKEOUT_* environment variables,
// an optional YAML file and built-in defaults into one Settings value.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SHAKEOUT_MAX_USERS.
const EnvPrefix = "SHAKEOUT"

// Settings is the resolved configuration of one invocation.
type Settings struct {
	URL      string `mapstructure:"url"`
	Endpoint string `mapstructure:"endpoint"`

	Users    int  `mapstructure:"users"`
	Requests int  `mapstructure:"requests"`
	Stress   bool `mapstructure:"stress"`
	MaxUsers int  `mapstructure:"max-users"`
	Step     int  `mapstructure:"step"`

	Endurance bool          `mapstructure:"endurance"`
	Duration  time.Duration `mapstructure:"duration"`
	RPS       float64       `mapstructure:"rps"`
	Operation string        `mapstructure:"operation"`

	Output     string `mapstructure:"output"`
	SamplesCSV string `mapstructure:"samples-csv"`

	Catalog        string        `mapstructure:"catalog"`
	Weighted       bool          `mapstructure:"weighted"`
	Seed           int64         `mapstructure:"seed"`
	ThinkMin       time.Duration `mapstructure:"think-min"`
	ThinkMax       time.Duration `mapstructure:"think-max"`
	MinOps         int           `mapstructure:"min-ops"`
	MaxOps         int           `mapstructure:"max-ops"`
	StressRequests int           `mapstructure:"stress-requests"`
	Settle         time.Duration `mapstructure:"settle"`

	Retry      bool    `mapstructure:"retry"`
	RetryScale float64 `mapstructure:"retry-scale"`
	Scenarios  bool    `mapstructure:"scenarios"`

	ProbeTimeout time.Duration `mapstructure:"probe-timeout"`
	TUI          bool          `mapstructure:"tui"`
	MetricsAddr  string        `mapstructure:"metrics-addr"`
	LogLevel     string        `mapstructure:"log-level"`
	LogFormat    string        `mapstructure:"log-format"`
}

// Defaults mirrors the flag defaults.
func Defaults() Settings {
	return Settings{
		Endpoint:       "/health",
		Users:          10,
		Requests:       5,
		MaxUsers:       50,
		Step:           10,
		Duration:       5 * time.Minute,
		RPS:            10,
		ThinkMin:       100 * time.Millisecond,
		ThinkMax:       500 * time.Millisecond,
		MinOps:         10,
		MaxOps:         50,
		StressRequests: 5,
		Settle:         2 * time.Second,
		Retry:          true,
		RetryScale:     1,
		ProbeTimeout:   5 * time.Second,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// RegisterFlags declares every setting on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()

	fs.StringP("url", "u", d.URL, "Target base URL; http(s) targets are probed before the run")
	fs.String("endpoint", d.Endpoint, "Path probed on the target")
	fs.IntP("users", "U", d.Users, "Concurrent virtual users (load mode)")
	fs.IntP("requests", "n", d.Requests, "Requests per user; 0 draws a random count per user")
	fs.Bool("stress", d.Stress, "Run a stress test ramping users in steps")
	fs.Int("max-users", d.MaxUsers, "Maximum users for the stress test")
	fs.Int("step", d.Step, "User increment between stress steps")
	fs.Bool("endurance", d.Endurance, "Run an endurance test at a fixed rate")
	fs.DurationP("duration", "d", d.Duration, "Endurance test duration")
	fs.Float64("rps", d.RPS, "Requests per second for the endurance test")
	fs.String("operation", d.Operation, "Catalog operation used by the endurance test (default first entry)")
	fs.StringP("output", "o", d.Output, "Write the JSON report to this file")
	fs.String("samples-csv", d.SamplesCSV, "Write raw samples to this CSV file")
	fs.String("catalog", d.Catalog, "YAML operation catalog (default built-in)")
	fs.Bool("weighted", d.Weighted, "Select operations by catalog weight instead of uniformly")
	fs.Int64("seed", d.Seed, "Random seed; 0 picks one from the clock")
	fs.Duration("think-min", d.ThinkMin, "Minimum think time between operations")
	fs.Duration("think-max", d.ThinkMax, "Maximum think time between operations")
	fs.Int("min-ops", d.MinOps, "Minimum operations per user when --requests is 0")
	fs.Int("max-ops", d.MaxOps, "Maximum operations per user when --requests is 0")
	fs.Int("stress-requests", d.StressRequests, "Requests per user in every stress step")
	fs.Duration("settle", d.Settle, "Pause between stress steps")
	fs.Bool("retry", d.Retry, "Wrap operations in their retry policy")
	fs.Float64("retry-scale", d.RetryScale, "Multiply every retry delay by this factor")
	fs.Bool("scenarios", d.Scenarios, "Also run the failure scenario simulator")
	fs.Duration("probe-timeout", d.ProbeTimeout, "Timeout of the target reachability probe")
	fs.Bool("tui", d.TUI, "Show the live dashboard instead of the progress line")
	fs.String("metrics-addr", d.MetricsAddr, "Serve Prometheus metrics on this address during the run")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")
	fs.String("log-format", d.LogFormat, "Log format: console or json")
}

// Load resolves settings from fs, the environment and the config file, in
// that order of precedence. An explicit cfgFile must exist; the default
// $HOME/.shakeout.yaml is optional.
func Load(v *viper.Viper, fs *pflag.FlagSet, cfgFile string) (Settings, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".shakeout")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Settings{}, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	s := Defaults()
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return s, s.Validate()
}

// Mode reports which run mode the settings select.
func (s Settings) Mode() string {
	switch {
	case s.Stress:
		return "stress"
	case s.Endurance:
		return "endurance"
	default:
		return "load"
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.Stress && s.Endurance {
		return fmt.Errorf("--stress and --endurance are mutually exclusive")
	}
	if s.Users <= 0 {
		return fmt.Errorf("users must be greater than 0")
	}
	if s.Requests < 0 {
		return fmt.Errorf("requests cannot be negative")
	}
	if s.Step <= 0 {
		return fmt.Errorf("step must be greater than 0")
	}
	if s.Stress && s.MaxUsers < s.Step {
		return fmt.Errorf("max users (%d) must be at least the step (%d)", s.MaxUsers, s.Step)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("duration must be greater than 0")
	}
	if s.RPS <= 0 {
		return fmt.Errorf("rps must be greater than 0")
	}
	if s.MinOps <= 0 || s.MaxOps < s.MinOps {
		return fmt.Errorf("operations per user must satisfy 0 < min-ops <= max-ops")
	}
	if s.ThinkMin < 0 || s.ThinkMax < s.ThinkMin {
		return fmt.Errorf("think time must satisfy 0 <= think-min <= think-max")
	}
	if s.StressRequests <= 0 {
		return fmt.Errorf("stress requests must be greater than 0")
	}
	if s.Settle < 0 {
		return fmt.Errorf("settle time cannot be negative")
	}
	if s.RetryScale < 0 {
		return fmt.Errorf("retry scale cannot be negative")
	}
	if s.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be greater than 0")
	}
	if s.LogFormat != "console" && s.LogFormat != "json" {
		return fmt.Errorf("log format must be console or json, got %q", s.LogFormat)
	}
	return nil
}
