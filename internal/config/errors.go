package config

import (
	"errors"
)

var (
	// ErrHostRequired error if a network engine is configured without db.host.
	ErrHostRequired = errors.New("toml config db.host can not be empty for a network engine")

	// ErrIdleAboveOpen error if db.maxIdleConns exceeds a non-zero db.maxOpenConns.
	ErrIdleAboveOpen = errors.New("toml config db.maxIdleConns can not exceed db.maxOpenConns")
)
