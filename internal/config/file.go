// Package config loads domquery YAML configuration files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level file layout.
type Config struct {
	Query   QueryConfig   `yaml:"query"`
	Browser BrowserConfig `yaml:"browser"`
	Trace   TraceConfig   `yaml:"trace"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// QueryConfig holds query defaults. Timeout is a pointer because 0 is a
// meaningful value (a single attempt); a negative timeout disables it.
type QueryConfig struct {
	Timeout       *time.Duration `yaml:"timeout"`
	PollInterval  time.Duration  `yaml:"poll_interval"`
	IncludeHidden bool           `yaml:"include_hidden"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Bin              string        `yaml:"bin"`
	Headful          bool          `yaml:"headful"`
	Stealth          bool          `yaml:"stealth"`
	NoSandbox        bool          `yaml:"no_sandbox"`
	Args             []string      `yaml:"args"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
}

// TraceConfig selects where poll attempts are journaled. Both empty means
// no journal.
type TraceConfig struct {
	DB        string `yaml:"db"`
	RemoteURL string `yaml:"remote_url"`
}

// HTTPConfig configures the HTTP surface.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration of an empty file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Query.Timeout == nil {
		d := 3 * time.Second
		c.Query.Timeout = &d
	}
	if c.Query.PollInterval <= 0 {
		c.Query.PollInterval = 50 * time.Millisecond
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8088"
	}
}
