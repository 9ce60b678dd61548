package serial

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration parameters for opening a serial device.
// Timeouts are in milliseconds; zero or negative means wait indefinitely.
type Config struct {
	Device         string `yaml:"device"`
	BaudRate       int    `yaml:"baud_rate"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms"`
}

// ReadTimeout converts the configured read timeout for use with Port and
// BufferedReader calls.
func (c Config) ReadTimeout() time.Duration {
	return msTimeout(c.ReadTimeoutMs)
}

// WriteTimeout converts the configured write timeout.
func (c Config) WriteTimeout() time.Duration {
	return msTimeout(c.WriteTimeoutMs)
}

func msTimeout(ms int) time.Duration {
	if ms <= 0 {
		return NoTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
