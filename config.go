package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// Config is the engine's file-backed configuration, decoded from TOML:
//
//	max_workers = 8
//	default_task_timeout = "30s"
//	log_level = "info"
//
// Zero values leave the corresponding engine default untouched.
type Config struct {
	MaxWorkers         int      `toml:"max_workers"`
	DefaultTaskTimeout Duration `toml:"default_task_timeout"`
	LogLevel           string   `toml:"log_level"`
}

// Duration is a time.Duration that decodes from TOML strings like "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfig reads and decodes a TOML config file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}

// ParseConfig decodes TOML config data.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Options expands the config into engine options. A non-empty log level
// builds a timestamped stderr logger at that level.
func (c *Config) Options() ([]Option, error) {
	var opts []Option
	if c.MaxWorkers > 0 {
		opts = append(opts, WithMaxWorkers(c.MaxWorkers))
	}
	if c.DefaultTaskTimeout > 0 {
		opts = append(opts, WithDefaultTimeout(time.Duration(c.DefaultTaskTimeout)))
	}
	if c.LogLevel != "" {
		level, err := zerolog.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("config: log_level: %w", err)
		}
		logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
		opts = append(opts, WithLogger(logger))
	}
	return opts, nil
}
