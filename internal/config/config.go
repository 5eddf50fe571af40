package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP report server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	Interval Duration `yaml:"interval"`
}

// WebhookConfig holds alert webhook settings.
type WebhookConfig struct {
	URL      string   `yaml:"url"`
	Cooldown Duration `yaml:"cooldown"`
}

// AlertsConfig holds all alert configuration.
type AlertsConfig struct {
	Webhook       WebhookConfig `yaml:"webhook"`
	SlowThreshold Duration      `yaml:"slow_threshold"`
}

// BenchConfig describes the query the bench command repeats.
type BenchConfig struct {
	Path       string            `yaml:"path"`
	Params     map[string]string `yaml:"params"`
	Iterations int               `yaml:"iterations"`
}

// LoadConfig describes the simulated traffic the load command drives.
type LoadConfig struct {
	Users     int      `yaml:"users"`
	SpawnRate int      `yaml:"spawn_rate"`
	Duration  Duration `yaml:"duration"`
	WaitMin   Duration `yaml:"wait_min"`
	WaitMax   Duration `yaml:"wait_max"`
	Networks  []string `yaml:"networks"`
	Stations  []string `yaml:"stations"`
	Formats   []string `yaml:"formats"`
}

// Config is the root application configuration.
type Config struct {
	Target      string        `yaml:"target"`
	Timeout     Duration      `yaml:"timeout"`
	ResultsFile string        `yaml:"results_file"`
	Storage     StorageConfig `yaml:"storage"`
	Server      ServerConfig  `yaml:"server"`
	Watch       WatchConfig   `yaml:"watch"`
	Alerts      AlertsConfig  `yaml:"alerts"`
	Bench       BenchConfig   `yaml:"bench"`
	Load        LoadConfig    `yaml:"load"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Target:      "http://localhost:9001",
		Timeout:     Duration{30 * time.Second},
		ResultsFile: "quick_results.txt",
		Storage:     StorageConfig{Path: "availprobe.db"},
		Server:      ServerConfig{Address: ":8080"},
		Watch:       WatchConfig{Interval: Duration{5 * time.Minute}},
		Alerts: AlertsConfig{
			Webhook:       WebhookConfig{Cooldown: Duration{10 * time.Minute}},
			SlowThreshold: Duration{2 * time.Second},
		},
		Bench: BenchConfig{
			Path:       "/query",
			Params:     map[string]string{"net": "NL", "sta": "HGN", "start": "2023-01-01"},
			Iterations: 10,
		},
		Load: LoadConfig{
			Users:     10,
			SpawnRate: 2,
			Duration:  Duration{time.Minute},
			WaitMin:   Duration{time.Second},
			WaitMax:   Duration{3 * time.Second},
			Networks:  []string{"NL", "NA", "GR", "FR", "IT"},
			Stations:  []string{"HGN", "SABA", "DBN", "G014"},
			Formats:   []string{"text", "json", "geocsv"},
		},
	}
}

// Load reads, parses, and validates the config file at path. A missing file
// is not an error: a probe tool must work against a local service with zero
// setup, so the defaults describe a service on localhost:9001.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Target == "" {
		return fmt.Errorf("target is required")
	}
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ResultsFile == "" {
		return fmt.Errorf("results_file is required")
	}
	if c.Bench.Iterations <= 0 {
		return fmt.Errorf("bench.iterations must be positive")
	}
	if c.Bench.Path == "" {
		return fmt.Errorf("bench.path is required")
	}
	if c.Load.Users <= 0 {
		return fmt.Errorf("load.users must be positive")
	}
	if c.Load.SpawnRate <= 0 {
		return fmt.Errorf("load.spawn_rate must be positive")
	}
	if c.Load.Duration.Duration <= 0 {
		return fmt.Errorf("load.duration must be positive")
	}
	if c.Load.WaitMin.Duration < 0 || c.Load.WaitMax.Duration < c.Load.WaitMin.Duration {
		return fmt.Errorf("load.wait_min must be >= 0 and <= load.wait_max")
	}
	if c.Watch.Interval.Duration <= 0 {
		return fmt.Errorf("watch.interval must be positive")
	}
	return nil
}
