package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mattthias/cfacter/pkg/telemetry"
)

// Config is the on-disk configuration for a fact collection run.
type Config struct {
	// Logging configures the diagnostics sink.
	Logging LoggingConfig `yaml:"logging"`

	// ExternalDirs lists directories scanned for custom fact scripts, in
	// order. Missing directories are skipped.
	ExternalDirs []string `yaml:"external_dirs" validate:"dive,required"`

	// Blocklist names facts that must never resolve.
	Blocklist []string `yaml:"blocklist" validate:"dive,required"`

	// Facts seeds static facts by name. Seeded facts still lose to
	// environment overrides.
	Facts map[string]string `yaml:"facts" validate:"dive,keys,required,endkeys"`
}

// LoggingConfig selects log verbosity and rendering.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads and validates a YAML configuration file. Unknown keys are
// rejected so typos fail loudly instead of being silently ignored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Telemetry translates the logging section into a telemetry configuration,
// starting from the telemetry defaults.
func (c *Config) Telemetry() telemetry.Config {
	tc := telemetry.DefaultConfig()
	if c.Logging.Level != "" {
		tc.Logging.Level = c.Logging.Level
	}
	if c.Logging.Format != "" {
		tc.Logging.Format = c.Logging.Format
	}
	return tc
}
