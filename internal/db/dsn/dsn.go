// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/libreviews/revdal/internal/config"
)

// mysqlDefaultExtras makes the driver return DATETIME columns as time.Time.
const mysqlDefaultExtras = "charset=utf8mb4&parseTime=True&loc=UTC"

// ErrUnknownEngine is returned for an engine without a DSN format.
var ErrUnknownEngine = errors.New("unknown database engine")

// Create builds the Data Source Name for the configured engine.
func Create(dbCfg *config.DB) (string, error) {
	switch dbCfg.Engine {
	case config.EngineSQLite, "":
		return SQLite(dbCfg), nil
	case config.EnginePostgres:
		return Postgres(dbCfg), nil
	case config.EngineMySQL:
		return MySQL(dbCfg), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, dbCfg.Engine)
	}
}

// SQLite returns the file name with Extras as its query string.
func SQLite(dbCfg *config.DB) string {
	if dbCfg.Extras == "" {
		return dbCfg.Name
	}

	return dbCfg.Name + "?" + dbCfg.Extras
}

// Postgres returns a key/value DSN. Extras are appended as further key=value pairs.
func Postgres(dbCfg *config.DB) string {
	parts := []string{
		"host=" + dbCfg.Host,
		"user=" + dbCfg.User,
		"password=" + dbCfg.Password,
		"dbname=" + dbCfg.Name,
	}

	if dbCfg.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", dbCfg.Port))
	}

	if dbCfg.Extras != "" {
		parts = append(parts, dbCfg.Extras)
	}

	return strings.Join(parts, " ")
}

// MySQL returns a go-sql-driver DSN.
func MySQL(dbCfg *config.DB) string {
	extras := dbCfg.Extras
	if extras == "" {
		extras = mysqlDefaultExtras
	}

	port := dbCfg.Port
	if port == 0 {
		port = 3306
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		port,
		dbCfg.Name,
		extras,
	)
}
