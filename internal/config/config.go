package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ClickHouseConfig holds the connection parameters of the sample datastore.
type ClickHouseConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Database    string `yaml:"database"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DialTimeout string `yaml:"dial_timeout"`
}

// StorageConfig selects the StorageGateway implementation. Type is
// "clickhouse" or "memory"; the memory store is filled from Fixture.
type StorageConfig struct {
	Type       string           `yaml:"type"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Fixture    string           `yaml:"fixture"`
}

// EngineConfig tunes the query engine.
type EngineConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	ExportChunk     string `yaml:"export_chunk"`
	TimeZone        string `yaml:"time_zone"`
	Percentile      int    `yaml:"percentile"`
	// KeepFencepost keeps the first sample of the next month in billing
	// calculations over closed months.
	KeepFencepost bool `yaml:"keep_fencepost"`
}

// APIConfig holds the configuration for the HTTP API server.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// PublishConfig holds the configuration for publishing reports to NATS.
type PublishConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Engine  EngineConfig  `yaml:"engine"`
	API     APIConfig     `yaml:"api"`
	Publish PublishConfig `yaml:"publish"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filePath, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when every key is left out.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Storage.Type == "" {
		c.Storage.Type = "clickhouse"
	}
	ch := &c.Storage.ClickHouse
	if ch.Host == "" {
		ch.Host = "localhost"
	}
	if ch.Port == 0 {
		ch.Port = 9000
	}
	if ch.Database == "" {
		ch.Database = "lightcount"
	}
	if ch.Username == "" {
		ch.Username = "default"
	}
	if ch.DialTimeout == "" {
		ch.DialTimeout = "10s"
	}

	if c.Engine.IntervalSeconds == 0 {
		c.Engine.IntervalSeconds = 300
	}
	if c.Engine.ExportChunk == "" {
		c.Engine.ExportChunk = "3h"
	}
	if c.Engine.Percentile == 0 {
		c.Engine.Percentile = 95
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.Publish.NATSURL == "" {
		c.Publish.NATSURL = "nats://127.0.0.1:4222"
	}
	if c.Publish.Subject == "" {
		c.Publish.Subject = "lightcount.reports"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case "clickhouse":
	case "memory":
		if c.Storage.Fixture == "" {
			return fmt.Errorf("storage type memory needs storage.fixture")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if _, err := time.ParseDuration(c.Storage.ClickHouse.DialTimeout); err != nil {
		return fmt.Errorf("storage.clickhouse.dial_timeout: %w", err)
	}

	interval := c.Engine.Interval()
	if interval < time.Minute || interval%time.Minute != 0 || time.Hour%interval != 0 {
		return fmt.Errorf("engine.interval_seconds %d must be a whole number of minutes dividing one hour", c.Engine.IntervalSeconds)
	}
	chunk, err := time.ParseDuration(c.Engine.ExportChunk)
	if err != nil {
		return fmt.Errorf("engine.export_chunk: %w", err)
	}
	if chunk < interval || chunk%interval != 0 {
		return fmt.Errorf("engine.export_chunk %v must be a multiple of the sample interval", chunk)
	}
	if c.Engine.Percentile < 1 || c.Engine.Percentile > 99 {
		return fmt.Errorf("engine.percentile %d must be between 1 and 99", c.Engine.Percentile)
	}
	if c.Engine.TimeZone != "" {
		if _, err := time.LoadLocation(c.Engine.TimeZone); err != nil {
			return fmt.Errorf("engine.time_zone: %w", err)
		}
	}
	return nil
}

// Interval is the native sample interval.
func (e EngineConfig) Interval() time.Duration {
	return time.Duration(e.IntervalSeconds) * time.Second
}

// ChunkDuration is the time span fetched per export query.
func (e EngineConfig) ChunkDuration() time.Duration {
	d, err := time.ParseDuration(e.ExportChunk)
	if err != nil {
		return 3 * time.Hour
	}
	return d
}

// Timeout is the parsed dial timeout.
func (c ClickHouseConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.DialTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
