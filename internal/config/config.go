package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config holds persistent user settings
type Config struct {
	BrokerURL        string `json:"broker_url,omitempty"`
	ListenAddr       string `json:"listen_addr,omitempty"`
	DialTimeoutSec   int    `json:"dial_timeout_sec,omitempty"`
	DiscoveryTimeout int    `json:"discovery_timeout_sec,omitempty"`
	Debug            bool   `json:"debug,omitempty"`
}

// Defaults applied when the config file is absent or leaves fields empty
const (
	DefaultBrokerURL        = "tcp://broker.emqx.io:1883"
	DefaultListenAddr       = ":0"
	DefaultDialTimeoutSec   = 15
	DefaultDiscoverySeconds = 3
)

// DialTimeout returns the effective connect deadline
func (c *Config) DialTimeout() time.Duration {
	if c.DialTimeoutSec <= 0 {
		return DefaultDialTimeoutSec * time.Second
	}
	return time.Duration(c.DialTimeoutSec) * time.Second
}

// DiscoveryWindow returns the effective LAN browse deadline
func (c *Config) DiscoveryWindow() time.Duration {
	if c.DiscoveryTimeout <= 0 {
		return DefaultDiscoverySeconds * time.Second
	}
	return time.Duration(c.DiscoveryTimeout) * time.Second
}

// Broker returns the effective broker URL
func (c *Config) Broker() string {
	if c.BrokerURL == "" {
		return DefaultBrokerURL
	}
	return c.BrokerURL
}

// Listen returns the effective QUIC listen address
func (c *Config) Listen() string {
	if c.ListenAddr == "" {
		return DefaultListenAddr
	}
	return c.ListenAddr
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".jumpgame")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the config file
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil // Default empty config
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config file
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
