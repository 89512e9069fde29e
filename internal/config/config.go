package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// HuntConfig is the root configuration loaded from hunt.yaml.
type HuntConfig struct {
	Version int `yaml:"version"`
	Hunt    struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"hunt"`
	Search struct {
		Workers             int    `yaml:"workers"`
		TickMS              int    `yaml:"tick_ms"`
		StatusIntervalSec   int    `yaml:"status_interval_sec"`
		SelfTestMargin      int    `yaml:"self_test_margin"`
		ClearHistoryOnStart bool   `yaml:"clear_history_on_start"`
		ShutdownTimeoutSec  int    `yaml:"shutdown_timeout_sec"`
		PayloadBase         string `yaml:"payload_base"`
		PayloadLength       int    `yaml:"payload_length"`
	} `yaml:"search"`
	QR struct {
		ModuleScale int    `yaml:"module_scale"`
		QuietZone   int    `yaml:"quiet_zone"`
		ECLevel     string `yaml:"ec_level"`
	} `yaml:"qr"`
	Patterns struct {
		Dir     string `yaml:"dir"`
		Default string `yaml:"default"`
	} `yaml:"patterns"`
	Artifacts struct {
		Dir   string `yaml:"dir"`
		Scale int    `yaml:"scale"`
	} `yaml:"artifacts"`
	Network struct {
		UIPort int `yaml:"ui_port"`
	} `yaml:"network"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Storage struct {
		Postgres bool `yaml:"postgres"`
	} `yaml:"storage"`
}

// Workers returns the configured pool size. Zero means one worker per CPU;
// the result is never below 1.
func (c *HuntConfig) Workers() int {
	n := c.Search.Workers
	if n == 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	return n
}

// TickInterval returns the scheduler tick period, defaulting to 250ms.
func (c *HuntConfig) TickInterval() time.Duration {
	if c.Search.TickMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.Search.TickMS) * time.Millisecond
}

// StatusInterval returns how often a status event is emitted while running,
// defaulting to 2s.
func (c *HuntConfig) StatusInterval() time.Duration {
	if c.Search.StatusIntervalSec <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Search.StatusIntervalSec) * time.Second
}

// ShutdownTimeout returns how long to wait for worker exits during engine
// teardown, defaulting to 5s.
func (c *HuntConfig) ShutdownTimeout() time.Duration {
	if c.Search.ShutdownTimeoutSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Search.ShutdownTimeoutSec) * time.Second
}

// SelfTestMargin returns the margin (in cells) around the pattern in the
// synthesized self-test candidate, defaulting to 8.
func (c *HuntConfig) SelfTestMargin() int {
	if c.Search.SelfTestMargin <= 0 {
		return 8
	}
	return c.Search.SelfTestMargin
}

// UIPort returns the configured UI port, defaulting to 8080 if not set.
func (c *HuntConfig) UIPort() int {
	if c.Network.UIPort == 0 {
		return 8080
	}
	return c.Network.UIPort
}

// PatternDir returns the pattern directory, defaulting to "patterns".
func (c *HuntConfig) PatternDir() string {
	if c.Patterns.Dir == "" {
		return "patterns"
	}
	return c.Patterns.Dir
}

// ArtifactDir returns the artifact directory, defaulting to "artifacts".
func (c *HuntConfig) ArtifactDir() string {
	if c.Artifacts.Dir == "" {
		return "artifacts"
	}
	return c.Artifacts.Dir
}

// ArtifactScale returns the PNG render scale for artifacts, defaulting to 8.
func (c *HuntConfig) ArtifactScale() int {
	if c.Artifacts.Scale <= 0 {
		return 8
	}
	return c.Artifacts.Scale
}

// TopicPrefix returns the MQTT topic prefix, defaulting to "patternhunt".
func (c *HuntConfig) TopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "patternhunt"
	}
	return c.MQTT.TopicPrefix
}

// LoadHuntConfig reads and validates hunt.yaml from path.
func LoadHuntConfig(path string) (*HuntConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg HuntConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported hunt.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}
