package config

import "time"

// Supported storage engines.
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
)

// DB holds the database configuration settings.
type DB struct {
	Engine   string `mapstructure:"engine" toml:"engine" validate:"oneof=sqlite postgres mysql"`
	Extras   string `mapstructure:"extras" toml:"extras"`
	Host     string `mapstructure:"host" toml:"host"`
	Port     int    `mapstructure:"port" toml:"port" validate:"gte=0,lte=65535"`
	User     string `mapstructure:"user" toml:"user"`
	Password string `mapstructure:"password" toml:"password"`

	// Name is the database name, or the file path for sqlite.
	Name string `mapstructure:"name" toml:"name" validate:"required"`

	MaxOpenConns    int           `mapstructure:"maxOpenConns" toml:"maxOpenConns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns" toml:"maxIdleConns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime" toml:"connMaxLifetime"`
	SlowThreshold   time.Duration `mapstructure:"slowThreshold" toml:"slowThreshold"`
}
