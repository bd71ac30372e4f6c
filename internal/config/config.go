// Package config loads the autopaused TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/younsl/autopaused/internal/autopause"
	"github.com/younsl/autopaused/pkg/orchestrator"
	"github.com/younsl/autopaused/pkg/provider"
)

// Config holds all daemon configuration.
type Config struct {
	AutoPause  AutoPauseConfig  `toml:"autopause"`
	Deployment DeploymentConfig `toml:"deployment"`
	AWS        AWSConfig        `toml:"aws"`
	Mock       MockConfig       `toml:"mock"`
	Pricing    PricingConfig    `toml:"pricing"`
	Store      StoreConfig      `toml:"store"`
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
	Instances  []InstanceConfig `toml:"instances"`
}

// AutoPauseConfig controls the monitoring loop.
type AutoPauseConfig struct {
	CheckInterval     Duration `toml:"check_interval"`
	IdleThreshold     Duration `toml:"idle_threshold"`
	GPUUsageThreshold float64  `toml:"gpu_usage_threshold"` // percent
	HistoryRetention  Duration `toml:"history_retention"`
	ProviderTimeout   Duration `toml:"provider_timeout"`
}

// DeploymentConfig selects the provider preference order.
type DeploymentConfig struct {
	Context     string              `toml:"context"`
	Preferences map[string][]string `toml:"preferences"` // overrides per deployment context
}

// AWSConfig controls the AWS-backed providers.
type AWSConfig struct {
	Region string       `toml:"region"` // "auto" detects from env or IMDS
	EC2    EC2Config    `toml:"ec2"`
	Lambda LambdaConfig `toml:"lambda"`
}

type EC2Config struct {
	Enabled         bool     `toml:"enabled"`
	GPUTypes        []string `toml:"gpu_types"`
	MetricNamespace string   `toml:"metric_namespace"`
	MetricName      string   `toml:"metric_name"`
	Hibernate       bool     `toml:"hibernate"`
}

type LambdaConfig struct {
	Enabled     bool     `toml:"enabled"`
	GPUTypes    []string `toml:"gpu_types"`
	Concurrency int      `toml:"concurrency"`
}

// MockConfig enables the in-memory provider, for on-premise trials and demos.
type MockConfig struct {
	Enabled  bool     `toml:"enabled"`
	Name     string   `toml:"name"`
	Kind     string   `toml:"kind"` // "vm" or "self_suspending"
	GPUTypes []string `toml:"gpu_types"`
}

// PricingConfig controls hourly rate resolution.
type PricingConfig struct {
	UseAPI bool               `toml:"use_api"`
	Rates  map[string]float64 `toml:"rates"` // GPU type -> USD/hour override
}

type StoreConfig struct {
	Dir string `toml:"dir"`
}

// ServerConfig controls the ops HTTP endpoint.
type ServerConfig struct {
	Listen string `toml:"listen"` // empty disables the server
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// InstanceConfig binds and registers one instance at startup.
type InstanceConfig struct {
	ID           string  `toml:"id"`
	Owner        string  `toml:"owner"`
	Provider     string  `toml:"provider"`
	GPUType      string  `toml:"gpu_type"`
	InstanceType string  `toml:"instance_type"`
	Region       string  `toml:"region"`
	HourlyRate   float64 `toml:"hourly_rate"`
}

// Duration is a time.Duration written as a string ("30s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the default configuration.
func Default() Config {
	engine := autopause.DefaultConfig()
	return Config{
		AutoPause: AutoPauseConfig{
			CheckInterval:     Duration{engine.CheckInterval},
			IdleThreshold:     Duration{engine.IdleThreshold},
			GPUUsageThreshold: engine.GPUUsageThreshold,
			HistoryRetention:  Duration{engine.HistoryRetention},
			ProviderTimeout:   Duration{orchestrator.DefaultTimeout},
		},
		Deployment: DeploymentConfig{
			Context: string(orchestrator.DeploymentSaaS),
		},
		AWS: AWSConfig{
			Region: "auto",
			EC2: EC2Config{
				Enabled:         true,
				MetricNamespace: "CWAgent",
				MetricName:      "nvidia_smi_utilization_gpu",
			},
			Lambda: LambdaConfig{
				Enabled:     true,
				Concurrency: 1,
			},
		},
		Mock: MockConfig{
			Name: "mock",
			Kind: string(provider.KindVM),
		},
		Pricing: PricingConfig{
			UseAPI: true,
		},
		Store: StoreConfig{
			Dir: Home(),
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:9187",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads config from path, or from Home()/config.toml when path is
// empty. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = filepath.Join(Home(), "config.toml")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parse config: unknown keys %v", undecoded)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	var errs []error

	ap := c.AutoPause
	if ap.CheckInterval.Duration <= 0 {
		errs = append(errs, errors.New("autopause.check_interval must be positive"))
	}
	if ap.IdleThreshold.Duration <= 0 {
		errs = append(errs, errors.New("autopause.idle_threshold must be positive"))
	}
	if ap.GPUUsageThreshold <= 0 || ap.GPUUsageThreshold > 100 {
		errs = append(errs, fmt.Errorf("autopause.gpu_usage_threshold %v must be in (0, 100]", ap.GPUUsageThreshold))
	}
	if ap.HistoryRetention.Duration <= 0 {
		errs = append(errs, errors.New("autopause.history_retention must be positive"))
	}
	if ap.ProviderTimeout.Duration <= 0 {
		errs = append(errs, errors.New("autopause.provider_timeout must be positive"))
	}

	if _, err := orchestrator.ParseDeployment(c.Deployment.Context); err != nil {
		errs = append(errs, fmt.Errorf("deployment.context: %w", err))
	}
	for name := range c.Deployment.Preferences {
		if _, err := orchestrator.ParseDeployment(name); err != nil {
			errs = append(errs, fmt.Errorf("deployment.preferences: %w", err))
		}
	}

	if c.Mock.Enabled {
		switch provider.Kind(c.Mock.Kind) {
		case provider.KindVM, provider.KindSelfSuspending:
		default:
			errs = append(errs, fmt.Errorf("mock.kind %q must be vm or self_suspending", c.Mock.Kind))
		}
	}

	for gpu, rate := range c.Pricing.Rates {
		if rate < 0 {
			errs = append(errs, fmt.Errorf("pricing.rates.%s must not be negative", gpu))
		}
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be console or json", c.Logging.Format))
	}

	seen := make(map[string]bool, len(c.Instances))
	for i, inst := range c.Instances {
		if inst.ID == "" || inst.Owner == "" || inst.Provider == "" {
			errs = append(errs, fmt.Errorf("instances[%d]: id, owner and provider are required", i))
			continue
		}
		if seen[inst.ID] {
			errs = append(errs, fmt.Errorf("instances[%d]: duplicate id %s", i, inst.ID))
		}
		seen[inst.ID] = true
	}

	return errors.Join(errs...)
}

// Engine returns the AutoPause engine configuration.
func (c Config) Engine() autopause.Config {
	return autopause.Config{
		CheckInterval:     c.AutoPause.CheckInterval.Duration,
		IdleThreshold:     c.AutoPause.IdleThreshold.Duration,
		GPUUsageThreshold: c.AutoPause.GPUUsageThreshold,
		HistoryRetention:  c.AutoPause.HistoryRetention.Duration,
	}
}

// DeploymentContext returns the configured deployment. Validate first.
func (c Config) DeploymentContext() orchestrator.Deployment {
	d, _ := orchestrator.ParseDeployment(c.Deployment.Context)
	return d
}

// Policy returns the default policy with configured overrides applied.
func (c Config) Policy() orchestrator.Policy {
	policy := orchestrator.DefaultPolicy()
	for name, prefs := range c.Deployment.Preferences {
		if d, err := orchestrator.ParseDeployment(name); err == nil {
			policy = policy.With(d, prefs)
		}
	}
	return policy
}

// Home returns the autopaused data directory.
func Home() string {
	if env := os.Getenv("AUTOPAUSED_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".autopaused")
}
