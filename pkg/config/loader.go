package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/storekit/config-hub/pkg/auth"
	"github.com/storekit/config-hub/pkg/store"
)

type Config struct {
	Hub        HubConfig         `yaml:"hub"`
	Transports []TransportConfig `yaml:"transports"`
	Admin      AdminConfig       `yaml:"admin"`
	Store      store.Config      `yaml:"store"`
	Auth       auth.Config       `yaml:"auth"`
	Publishers []PublisherConfig `yaml:"publishers"`
}

type HubConfig struct {
	DefaultShop         string `yaml:"default_shop"`
	PingIntervalSeconds int    `yaml:"ping_interval_seconds"`
}

type TransportConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Port int    `yaml:"port"`
}

type AdminConfig struct {
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

type PublisherConfig struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Config map[string]string `yaml:"config"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is provided: one
// websocket transport on 8080, admin API on 8090, in-memory store, allow-all
// auth.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Hub.DefaultShop == "" {
		c.Hub.DefaultShop = "default"
	}
	if c.Hub.PingIntervalSeconds <= 0 {
		c.Hub.PingIntervalSeconds = 30
	}
	if len(c.Transports) == 0 {
		c.Transports = []TransportConfig{{Name: "ws", Type: "websocket", Port: 8080}}
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 8090
	}
}
