package model

import "errors"

var (
	// ErrInvalidDefinition is returned when a Definition cannot be compiled into a Model.
	ErrInvalidDefinition = errors.New("invalid model definition")

	// ErrUnknownField is returned when a query names a field the model does not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownRelation is returned by Load for relation names that were never declared.
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrDBNil is returned by New when no connection is supplied.
	ErrDBNil = errors.New("db is nil")
)
