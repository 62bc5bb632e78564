// Package connect opens the pooled gorm connection for the configured engine.
package connect

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/libreviews/revdal/internal/config"
	"github.com/libreviews/revdal/internal/db/dsn"
	"github.com/libreviews/revdal/internal/logger/adapter/gormlogger"
)

// Dialector returns the gorm dialector for cfg.DB.
func Dialector(cfg *config.DB) (gorm.Dialector, error) {
	source, err := dsn.Create(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Engine {
	case config.EnginePostgres:
		return postgres.Open(source), nil
	case config.EngineMySQL:
		return gormmysql.Open(source), nil
	default:
		return sqlite.Open(source), nil
	}
}

// isMemory reports whether the sqlite database lives in memory, where every pooled
// connection would see its own empty database.
func isMemory(cfg *config.DB) bool {
	return (cfg.Engine == config.EngineSQLite || cfg.Engine == "") &&
		(cfg.Name == ":memory:" || strings.Contains(cfg.Extras, "mode=memory"))
}

// Open connects to the database and applies the pool settings.
func Open(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(&cfg.DB)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(gormlogger.Config{
			SlowThreshold:        cfg.DB.SlowThreshold,
			LogSQL:               cfg.Log.LogSQL || cfg.DevMode,
			IgnoreRecordNotFound: true,
		}),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}

	switch {
	case isMemory(&cfg.DB):
		sqlDB.SetMaxOpenConns(1)
	case cfg.DB.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}

	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}

	if cfg.DB.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	log.Info().
		Str("engine", db.Dialector.Name()).
		Str("name", cfg.DB.Name).
		Int("maxOpenConns", sqlDB.Stats().MaxOpenConnections).
		Msg("database connected")

	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err //nolint:wrapcheck
	}

	return sqlDB.Close() //nolint:wrapcheck
}
