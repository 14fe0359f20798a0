package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/agent-racer/streamtext/internal/activity"
	"github.com/agent-racer/streamtext/internal/reveal"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Mock      MockConfig      `yaml:"mock"`
	Viewer    ViewerConfig    `yaml:"viewer"`
	Log       LogConfig       `yaml:"log"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type BroadcastConfig struct {
	Throttle         time.Duration `yaml:"throttle"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	MaxClients       int           `yaml:"max_clients"`
}

// MockConfig shapes the bursty token delivery of the mock generator.
type MockConfig struct {
	TokenRate float64       `yaml:"token_rate"` // tokens per second inside a burst
	Burst     int           `yaml:"burst"`      // tokens per burst
	Pause     time.Duration `yaml:"pause"`      // silence between bursts
	IdleAfter time.Duration `yaml:"idle_after"` // finished streams are dropped after this
}

type ViewerConfig struct {
	URL              string        `yaml:"url"`
	Token            string        `yaml:"token"`
	ThrottleInterval time.Duration `yaml:"throttle_interval"`
	MaxChunkChars    int           `yaml:"max_chunk_chars"`
	Grace            time.Duration `yaml:"grace"`
	Markdown         bool          `yaml:"markdown"`
	LogFile          string        `yaml:"log_file"`
}

// RevealOptions returns the pacing options for the viewer's revealers.
func (v ViewerConfig) RevealOptions() reveal.Options {
	return reveal.Options{
		ThrottleInterval: v.ThrottleInterval,
		MaxChunkChars:    v.MaxChunkChars,
	}
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Broadcast: BroadcastConfig{
			Throttle:         100 * time.Millisecond,
			SnapshotInterval: 5 * time.Second,
			MaxClients:       32,
		},
		Mock: MockConfig{
			TokenRate: 30,
			Burst:     8,
			Pause:     250 * time.Millisecond,
			IdleAfter: 2 * time.Minute,
		},
		Viewer: ViewerConfig{
			URL:              "ws://127.0.0.1:8080/ws",
			ThrottleInterval: reveal.DefaultThrottleInterval,
			MaxChunkChars:    reveal.DefaultMaxChunkChars,
			Grace:            activity.DefaultGrace,
			Markdown:         true,
			LogFile:          "streamtext-view.log",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Validate rejects values the server or viewer cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	case c.Broadcast.Throttle < 0:
		return fmt.Errorf("%w: broadcast.throttle must not be negative", ErrInvalid)
	case c.Broadcast.SnapshotInterval <= 0:
		return fmt.Errorf("%w: broadcast.snapshot_interval must be positive", ErrInvalid)
	case c.Broadcast.MaxClients < 0:
		return fmt.Errorf("%w: broadcast.max_clients must not be negative", ErrInvalid)
	case c.Mock.TokenRate <= 0:
		return fmt.Errorf("%w: mock.token_rate must be positive", ErrInvalid)
	case c.Mock.Burst < 1:
		return fmt.Errorf("%w: mock.burst must be at least 1", ErrInvalid)
	case c.Mock.Pause < 0 || c.Mock.IdleAfter < 0:
		return fmt.Errorf("%w: mock durations must not be negative", ErrInvalid)
	case c.Viewer.ThrottleInterval < 0:
		return fmt.Errorf("%w: viewer.throttle_interval must not be negative", ErrInvalid)
	case c.Viewer.MaxChunkChars < 1:
		return fmt.Errorf("%w: viewer.max_chunk_chars must be at least 1", ErrInvalid)
	case c.Viewer.Grace < 0:
		return fmt.Errorf("%w: viewer.grace must not be negative", ErrInvalid)
	}
	return nil
}
