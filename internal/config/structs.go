package config

import (
	"time"

	"github.com/libreviews/revdal/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode bool       `mapstructure:"devMode" toml:"devMode"` // console logging and sql trace
	DB      DB         `mapstructure:"db" toml:"db"`
	Log     logger.Log `mapstructure:"log" toml:"log"`
	Cache   Cache      `mapstructure:"cache" toml:"cache"`
}

// Cache backends.
const (
	CacheRedis  = "redis"
	CacheMemory = "memory" // per process; for single-instance deployments and tools
)

// Cache configures the head-row cache. Heads are read from the database when disabled.
type Cache struct {
	Enabled  bool          `mapstructure:"enabled" toml:"enabled"`
	Backend  string        `mapstructure:"backend" toml:"backend" validate:"omitempty,oneof=redis memory"`
	Addr     string        `mapstructure:"addr" toml:"addr" validate:"required_if=Enabled true Backend redis"`
	Password string        `mapstructure:"password" toml:"password"`
	DB       int           `mapstructure:"db" toml:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl" toml:"ttl" validate:"gte=0"`
}
