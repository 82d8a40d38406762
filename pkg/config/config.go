package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rangeworks/drover/pkg/capabilities"
)

// Duration accepts Go duration strings ("30s", "1m") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AmountCapability is an operator-declared numeric capability.
type AmountCapability struct {
	Name  string  `yaml:"name"`
	Value float64 `yaml:"value"`
}

// AttributeCapability is an operator-declared string-set capability.
type AttributeCapability struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// Capabilities is the operator capability block. Declared order is kept
// so the control plane sees a stable serialization.
type Capabilities struct {
	Amounts    []AmountCapability    `yaml:"amounts"`
	Attributes []AttributeCapability `yaml:"attributes"`
}

// Build converts the declared block into the merge-ready form.
func (c Capabilities) Build() *capabilities.Capabilities {
	amounts := make([]capabilities.AmountCapability, 0, len(c.Amounts))
	for _, a := range c.Amounts {
		amounts = append(amounts, capabilities.AmountCapability{Name: a.Name, Value: a.Value})
	}
	attributes := make([]capabilities.AttributeCapability, 0, len(c.Attributes))
	for _, a := range c.Attributes {
		attributes = append(attributes, capabilities.AttributeCapability{Name: a.Name, Values: a.Values})
	}
	return capabilities.New(amounts, attributes)
}

// Config is the agent configuration: defaults, overlaid by the YAML
// file, overlaid by command-line flags.
type Config struct {
	FleetID  string `yaml:"fleet_id"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	WorkerDir string `yaml:"worker_dir"`
	LogDir    string `yaml:"log_dir"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	MetricsAddr string `yaml:"metrics_addr"`

	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	SessionWorkers    int      `yaml:"session_workers"`
	JournalKeep       int      `yaml:"journal_keep"`

	Capabilities Capabilities `yaml:"capabilities"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		WorkerDir:         "/var/lib/drover",
		LogLevel:          "info",
		MetricsAddr:       ":9465",
		HeartbeatInterval: Duration(5 * time.Second),
		SessionWorkers:    1,
		JournalKeep:       100,
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration after all overlays are applied.
func (c *Config) Validate() error {
	if c.FleetID == "" {
		return fmt.Errorf("fleet_id is required")
	}
	if c.WorkerDir == "" {
		return fmt.Errorf("worker_dir is required")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if c.Endpoint != "" && c.Region == "" {
		return fmt.Errorf("region is required when endpoint is set")
	}
	return nil
}

// ResolvedLogDir returns the session log directory, defaulting to a
// subdirectory of the worker directory.
func (c *Config) ResolvedLogDir() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(c.WorkerDir, "logs")
}
