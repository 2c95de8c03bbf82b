package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Kade-Heyborne/port-manager/internal/terminate"
)

// Duration is a time.Duration that unmarshals from YAML strings in
// time.ParseDuration syntax ("5s", "250ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds all portman configuration.
type Config struct {
	GracefulWait         Duration `yaml:"graceful_wait"`
	ForcefulWait         Duration `yaml:"forceful_wait"`
	PortReleaseWait      Duration `yaml:"port_release_wait"`
	PollInterval         Duration `yaml:"poll_interval"`
	ProcessExitIsSuccess bool     `yaml:"process_exit_is_success"`
	ColorEnabled         bool     `yaml:"color_enabled"`
}

// Default returns a Config with the stock values.
func Default() *Config {
	t := terminate.DefaultConfig()
	return &Config{
		GracefulWait:    Duration(t.GracefulWait),
		ForcefulWait:    Duration(t.ForcefulWait),
		PortReleaseWait: Duration(t.PortReleaseWait),
		PollInterval:    Duration(t.PollInterval),
		ColorEnabled:    true,
	}
}

// Timeouts converts the configured durations into the terminator's
// config. Out-of-range values are clamped there, not here.
func (c *Config) Timeouts() terminate.Config {
	return terminate.Config{
		GracefulWait:         time.Duration(c.GracefulWait),
		ForcefulWait:         time.Duration(c.ForcefulWait),
		PortReleaseWait:      time.Duration(c.PortReleaseWait),
		PollInterval:         time.Duration(c.PollInterval),
		ProcessExitIsSuccess: c.ProcessExitIsSuccess,
	}
}

// Load loads config from the given path. If path is empty, it uses the
// default location (~/.config/portman/config.yaml). If the file does
// not exist, it returns defaults without creating the file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
		if path == "" {
			return Default(), nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return LoadFrom(path)
}

// LoadFrom loads and parses config from the given path. Missing fields
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save marshals the config to YAML and writes it to the given path,
// creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "portman", "config.yaml")
}
