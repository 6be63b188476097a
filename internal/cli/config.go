package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/derive/internal/watch"
)

// DefaultConfigFile is read from the working directory when --config is not
// given. A missing default file is not an error.
const DefaultConfigFile = "derive.yaml"

// Config holds settings that may come from derive.yaml. Command-line flags
// override them.
type Config struct {
	TraceDB        string        `yaml:"trace_db"`
	Debounce       time.Duration `yaml:"debounce"`
	CycleDetection *bool         `yaml:"cycle_detection"`
	MaxDepth       int           `yaml:"max_depth"`
	Metrics        bool          `yaml:"metrics"`
	Spans          bool          `yaml:"spans"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() *Config {
	return &Config{Debounce: watch.DefaultDebounce}
}

// LoadConfig reads a config file. When explicit is false a missing file
// yields the defaults.
func LoadConfig(path string, explicit bool) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = watch.DefaultDebounce
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("parse config %s: max_depth must not be negative", path)
	}
	return cfg, nil
}

// CycleDetectionEnabled reports the configured cycle detection, on by default.
func (c *Config) CycleDetectionEnabled() bool {
	return c.CycleDetection == nil || *c.CycleDetection
}
