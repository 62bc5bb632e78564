// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvConfigJSON names the environment variable whose JSON document overrides main.toml.
const EnvConfigJSON = "REVDAL_CONFIG_JSON"

const redacted = "********"

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.engine", EngineSQLite)
	v.SetDefault("db.name", "revdal.db")
	v.SetDefault("db.maxOpenConns", 10)
	v.SetDefault("db.maxIdleConns", 5)
	v.SetDefault("db.connMaxLifetime", time.Hour)
	v.SetDefault("db.slowThreshold", 200*time.Millisecond)
	v.SetDefault("log.logLevel", "info")
	v.SetDefault("log.appName", "revdal")
	v.SetDefault("log.serviceName", "revdal")
	v.SetDefault("log.console.enabled", true)
	v.SetDefault("cache.backend", CacheRedis)
	v.SetDefault("cache.ttl", 5*time.Minute)
}

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c   Config
		v   = viper.New()
		err error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	setDefaults(v)
	v.SetConfigFile(filepath.Join(path, "main.toml"))
	v.SetConfigType("toml")

	if err = v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	if JSONConfigEnv := os.Getenv(EnvConfigJSON); JSONConfigEnv != "" {
		if err = decodeAndMergeConfig(v, JSONConfigEnv); err != nil {
			return Config{}, err
		}
	}

	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	return c, validate(&c)
}

func decodeAndMergeConfig(v *viper.Viper, configAsJSON string) error {
	v.SetConfigType("json")

	if err := v.MergeConfig(strings.NewReader(configAsJSON)); err != nil {
		return errors.Wrap(err, "failed to read config override from "+EnvConfigJSON)
	}

	return nil
}

// Redacted returns a copy of c with secrets masked.
func (c Config) Redacted() Config {
	if c.DB.Password != "" {
		c.DB.Password = redacted
	}

	if c.Cache.Password != "" {
		c.Cache.Password = redacted
	}

	return c
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer

	enc := toml.NewEncoder(&buffer)
	enc.SetIndentTables(true)

	if err := enc.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate checks the struct tags and the rules spanning several fields.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, invalidErrMessage)
	}

	if c.DB.Engine != EngineSQLite && c.DB.Host == "" {
		return errors.Wrap(ErrHostRequired, invalidErrMessage)
	}

	if c.DB.MaxOpenConns > 0 && c.DB.MaxIdleConns > c.DB.MaxOpenConns {
		return errors.Wrap(ErrIdleAboveOpen, invalidErrMessage)
	}

	return nil
}
