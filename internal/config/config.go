// Package config loads the daemon configuration file. All fields are
// pointers so partial configs are safe: anything omitted falls back to the
// Get* defaults, and command-line flags override file values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oakfield-data/motion.report/internal/units"
)

// Defaults for every recognised option.
const (
	DefaultUDPListen       = ":5005"
	DefaultHTTPListen      = ":8080"
	DefaultDBPath          = "sensor_data.db"
	DefaultHistoryCapacity = 200
	DefaultReadTimeout     = 500 * time.Millisecond
	DefaultStaleAfter      = 3 * time.Second
	DefaultAngleUnits      = units.Degrees
)

// Config represents the daemon configuration file.
type Config struct {
	UDPListen       *string `json:"udp_listen,omitempty"`
	HTTPListen      *string `json:"http_listen,omitempty"`
	DBPath          *string `json:"db_path,omitempty"`
	HistoryCapacity *int    `json:"history_capacity,omitempty"`
	ReadTimeout     *string `json:"read_timeout,omitempty"` // duration string like "500ms"
	StaleAfter      *string `json:"stale_after,omitempty"`  // duration string like "3s"
	AngleUnits      *string `json:"angle_units,omitempty"`  // "rad" or "deg"
	RcvBuf          *int    `json:"rcv_buf,omitempty"`
	ForwardTo       *string `json:"forward_to,omitempty"`
	MQTTBroker      *string `json:"mqtt_broker,omitempty"`
}

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. Fields omitted from the file retain
// their defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.HistoryCapacity != nil && *c.HistoryCapacity < 1 {
		return fmt.Errorf("history_capacity must be at least 1, got %d", *c.HistoryCapacity)
	}

	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		d, err := time.ParseDuration(*c.ReadTimeout)
		if err != nil {
			return fmt.Errorf("invalid read_timeout '%s': %w", *c.ReadTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("read_timeout must be positive, got %s", d)
		}
	}

	if c.StaleAfter != nil && *c.StaleAfter != "" {
		if _, err := time.ParseDuration(*c.StaleAfter); err != nil {
			return fmt.Errorf("invalid stale_after '%s': %w", *c.StaleAfter, err)
		}
	}

	if c.AngleUnits != nil && !units.IsValidAngleUnit(*c.AngleUnits) {
		return fmt.Errorf("angle_units must be one of %s, got %q", units.GetValidAngleUnitsString(), *c.AngleUnits)
	}

	if c.RcvBuf != nil && *c.RcvBuf < 0 {
		return fmt.Errorf("rcv_buf must be non-negative, got %d", *c.RcvBuf)
	}

	return nil
}

// GetUDPListen returns the UDP listen address or its default.
func (c *Config) GetUDPListen() string {
	if c.UDPListen != nil {
		return *c.UDPListen
	}
	return DefaultUDPListen
}

// GetHTTPListen returns the HTTP listen address or its default.
func (c *Config) GetHTTPListen() string {
	if c.HTTPListen != nil {
		return *c.HTTPListen
	}
	return DefaultHTTPListen
}

// GetDBPath returns the sqlite database path or its default.
func (c *Config) GetDBPath() string {
	if c.DBPath != nil {
		return *c.DBPath
	}
	return DefaultDBPath
}

// GetHistoryCapacity returns the per-sensor history ring capacity or its default.
func (c *Config) GetHistoryCapacity() int {
	if c.HistoryCapacity != nil {
		return *c.HistoryCapacity
	}
	return DefaultHistoryCapacity
}

// GetReadTimeout returns the UDP receive deadline or its default. Validate
// is expected to have run, so parse failures fall back to the default.
func (c *Config) GetReadTimeout() time.Duration {
	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		if d, err := time.ParseDuration(*c.ReadTimeout); err == nil {
			return d
		}
	}
	return DefaultReadTimeout
}

// GetStaleAfter returns the staleness window or its default.
func (c *Config) GetStaleAfter() time.Duration {
	if c.StaleAfter != nil && *c.StaleAfter != "" {
		if d, err := time.ParseDuration(*c.StaleAfter); err == nil {
			return d
		}
	}
	return DefaultStaleAfter
}

// GetAngleUnits returns the presentation angle units or their default.
func (c *Config) GetAngleUnits() string {
	if c.AngleUnits != nil {
		return *c.AngleUnits
	}
	return DefaultAngleUnits
}

// GetRcvBuf returns the socket receive buffer size; zero keeps the OS default.
func (c *Config) GetRcvBuf() int {
	if c.RcvBuf != nil {
		return *c.RcvBuf
	}
	return 0
}

// GetForwardTo returns the raw-datagram forward address; empty disables forwarding.
func (c *Config) GetForwardTo() string {
	if c.ForwardTo != nil {
		return *c.ForwardTo
	}
	return ""
}

// GetMQTTBroker returns the MQTT broker URL; empty disables the republisher.
func (c *Config) GetMQTTBroker() string {
	if c.MQTTBroker != nil {
		return *c.MQTTBroker
	}
	return ""
}
