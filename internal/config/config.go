package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Values come from an optional YAML
// file, then environment variables override, then defaults fill the gaps.
type Config struct {
	HTTPAddr    string  `yaml:"http_addr"`
	LogLevel    string  `yaml:"log_level"`
	DatabaseURL string  `yaml:"database_url"`
	SessionID   string  `yaml:"session_id"`
	Capture     Capture `yaml:"capture"`
}

// Capture configures the replay scan source.
type Capture struct {
	Path     string   `yaml:"path"`
	Interval Duration `yaml:"interval"`
	Loop     bool     `yaml:"loop"`
}

// Duration accepts Go duration strings ("250ms") in YAML, where yaml.v3
// would otherwise only take raw nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("duration must be a string or nanoseconds")
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and applies environment overrides and defaults.
func Load(path string) (Config, error) {
	var cfg Config

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("SCAN_SESSION_ID"); v != "" {
		c.SessionID = v
	}
	if v := os.Getenv("CAPTURE_PATH"); v != "" {
		c.Capture.Path = v
	}
	if v := os.Getenv("CAPTURE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Capture.Interval = Duration(d)
		}
	}
	if v := os.Getenv("CAPTURE_LOOP"); v != "" {
		c.Capture.Loop = v == "1" || strings.EqualFold(v, "true")
	}
}

func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8081"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Capture.Interval < 0 {
		c.Capture.Interval = 0
	}
}
