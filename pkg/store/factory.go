package store

import (
	"fmt"

	"github.com/storekit/config-hub/pkg/core"
)

// Config selects and configures the persistence backend.
type Config struct {
	Type     string         `yaml:"type"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// New builds a ConfigStore from configuration. The zero value selects the
// in-memory backend.
func New(cfg Config) (core.ConfigStore, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.Redis)
	case "postgres":
		return NewPostgresStore(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
