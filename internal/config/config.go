// Package config handles YAML configuration loading for the demo driver.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// Step actions.
const (
	ActionPush  = "push"
	ActionClear = "clear"
	ActionSleep = "sleep"
)

// Config is the top-level demo configuration.
type Config struct {
	Queue           QueueConfig   `yaml:"queue"`
	Log             LogConfig     `yaml:"log"`
	Metrics         MetricsConfig `yaml:"metrics"`
	Tracing         TracingConfig `yaml:"tracing"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Script          []Step        `yaml:"script"`
}

// QueueConfig holds queue settings.
type QueueConfig struct {
	Name string `yaml:"name"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// Step is one scripted action against the queue.
type Step struct {
	Action   string        `yaml:"action"`
	Name     string        `yaml:"name"`     // push: task label
	Duration time.Duration `yaml:"duration"` // push: simulated work; sleep: pause
	Message  string        `yaml:"message"`  // push: logged when the task finishes
}

// SlogLevel maps the configured level onto slog. Unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when no file is given. Its script
// replays the classic demo: a few greetings, a clear, then more greetings.
func Default() *Config {
	cfg := defaults()
	cfg.Script = DefaultScript()
	return cfg
}

func defaults() *Config {
	return &Config{
		Queue: QueueConfig{Name: "demo"},
		Log:   LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{
			Addr:      ":9100",
			Namespace: "work",
		},
		Tracing: TracingConfig{
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// DefaultScript returns the built-in demo sequence.
func DefaultScript() []Step {
	greet := func(name string) Step {
		return Step{
			Action:   ActionPush,
			Name:     "greet " + name,
			Duration: 4 * time.Second,
			Message:  "Hello, " + name,
		}
	}
	sleep := Step{Action: ActionSleep, Duration: time.Second}

	return []Step{
		{Action: ActionPush, Name: "greet", Duration: 3 * time.Second, Message: "Hello (no arg)"},
		sleep,
		{Action: ActionPush, Name: "lambda", Message: "Lambda (no arg)"},
		sleep, greet("Alice"),
		sleep, greet("Bob"),
		sleep, greet("Charlie"),
		{Action: ActionClear},
		{Action: ActionPush, Name: "work", Duration: 6 * time.Second, Message: "Completed the work"},
		sleep, greet("David"),
		sleep, greet("Edward"),
		sleep, greet("Frank"),
		{Action: ActionSleep, Duration: 10 * time.Second},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// An empty path returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Script == nil {
		cfg.Script = DefaultScript()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the demo cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Queue.Name == "" {
		errs = append(errs, errors.New("queue.name is required"))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate %v out of range [0, 1]", c.Tracing.SampleRate))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("shutdown_timeout must not be negative"))
	}
	for i, s := range c.Script {
		switch s.Action {
		case ActionPush, ActionClear, ActionSleep:
		default:
			errs = append(errs, fmt.Errorf("script[%d]: unknown action %q", i, s.Action))
		}
		if s.Duration < 0 {
			errs = append(errs, fmt.Errorf("script[%d]: duration must not be negative", i))
		}
	}
	return errors.Join(errs...)
}
