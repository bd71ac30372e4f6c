package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/younsl/autopaused/pkg/orchestrator"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.AutoPause.CheckInterval.Duration != 30*time.Second {
		t.Errorf("check_interval = %v, want 30s", cfg.AutoPause.CheckInterval)
	}
	if cfg.AutoPause.IdleThreshold.Duration != 120*time.Second {
		t.Errorf("idle_threshold = %v, want 120s", cfg.AutoPause.IdleThreshold)
	}
	if cfg.AutoPause.GPUUsageThreshold != 5 {
		t.Errorf("gpu_usage_threshold = %v, want 5", cfg.AutoPause.GPUUsageThreshold)
	}
	if cfg.AutoPause.HistoryRetention.Duration != 10*time.Minute {
		t.Errorf("history_retention = %v, want 10m", cfg.AutoPause.HistoryRetention)
	}
	if cfg.DeploymentContext() != orchestrator.DeploymentSaaS {
		t.Errorf("deployment = %s, want saas", cfg.DeploymentContext())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Listen != Default().Server.Listen {
		t.Errorf("Listen = %q, want default", cfg.Server.Listen)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[autopause]
check_interval = "15s"
idle_threshold = "5m"
gpu_usage_threshold = 10.5

[deployment]
context = "byoc"

[deployment.preferences]
byoc = ["mock", "ec2"]

[aws]
region = "ap-northeast-2"

[aws.ec2]
enabled = true
hibernate = true
gpu_types = ["A10G"]

[aws.lambda]
enabled = false

[mock]
enabled = true
kind = "self_suspending"

[pricing]
use_api = false

[pricing.rates]
A10G = 1.5

[logging]
level = "debug"
format = "json"

[[instances]]
id = "i-0123"
owner = "alice"
provider = "ec2"
instance_type = "g5.xlarge"

[[instances]]
id = "fn-embed"
owner = "bob"
provider = "mock"
gpu_type = "T4"
hourly_rate = 0.59
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	engine := cfg.Engine()
	if engine.CheckInterval != 15*time.Second || engine.IdleThreshold != 5*time.Minute || engine.GPUUsageThreshold != 10.5 {
		t.Errorf("engine config = %+v", engine)
	}
	if engine.HistoryRetention != 10*time.Minute {
		t.Errorf("unset history_retention = %v, want default", engine.HistoryRetention)
	}
	if cfg.DeploymentContext() != orchestrator.DeploymentBYOC {
		t.Errorf("deployment = %s", cfg.DeploymentContext())
	}
	if got := cfg.Policy()[orchestrator.DeploymentBYOC]; len(got) != 2 || got[0] != "mock" {
		t.Errorf("byoc preferences = %v", got)
	}
	if got := cfg.Policy()[orchestrator.DeploymentSaaS]; len(got) != 3 {
		t.Errorf("saas preferences should keep defaults, got %v", got)
	}
	if !cfg.AWS.EC2.Hibernate || cfg.AWS.Lambda.Enabled || !cfg.Mock.Enabled {
		t.Errorf("provider toggles = %+v %+v", cfg.AWS, cfg.Mock)
	}
	if cfg.Pricing.Rates["A10G"] != 1.5 || cfg.Pricing.UseAPI {
		t.Errorf("pricing = %+v", cfg.Pricing)
	}
	if len(cfg.Instances) != 2 || cfg.Instances[1].HourlyRate != 0.59 {
		t.Errorf("instances = %+v", cfg.Instances)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", "[autopause]\ncheck_interval = \"soon\"\n", "invalid duration"},
		{"unknown key", "[autopause]\ncheck_every = \"30s\"\n", "unknown keys"},
		{"bad threshold", "[autopause]\ngpu_usage_threshold = 120.0\n", "gpu_usage_threshold"},
		{"bad deployment", "[deployment]\ncontext = \"cloud\"\n", "deployment.context"},
		{"bad preference key", "[deployment.preferences]\nedge = [\"ec2\"]\n", "deployment.preferences"},
		{"bad log level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"bad log format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"bad mock kind", "[mock]\nenabled = true\nkind = \"container\"\n", "mock.kind"},
		{"instance missing owner", "[[instances]]\nid = \"i-1\"\nprovider = \"ec2\"\n", "required"},
		{"duplicate instance", "[[instances]]\nid = \"i-1\"\nowner = \"a\"\nprovider = \"ec2\"\n[[instances]]\nid = \"i-1\"\nowner = \"a\"\nprovider = \"ec2\"\n", "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestHome(t *testing.T) {
	t.Setenv("AUTOPAUSED_HOME", "/var/lib/autopaused")
	if got := Home(); got != "/var/lib/autopaused" {
		t.Errorf("Home() = %q", got)
	}
	if got := Default().Store.Dir; got != "/var/lib/autopaused" {
		t.Errorf("store dir = %q, want AUTOPAUSED_HOME", got)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("Duration = %v", d.Duration)
	}
	text, _ := d.MarshalText()
	if string(text) != "1m30s" {
		t.Errorf("MarshalText = %q", text)
	}
}
