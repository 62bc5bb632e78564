package model

import (
	"fmt"
)

// FieldMap translates application field names to storage column names and back.
// Names without an entry map to themselves.
type FieldMap struct {
	toColumn map[string]string
	toField  map[string]string
}

// NewFieldMap builds a FieldMap from field → column pairs. Two fields claiming one column
// is an error.
func NewFieldMap(columns map[string]string) (*FieldMap, error) {
	fm := &FieldMap{
		toColumn: make(map[string]string, len(columns)),
		toField:  make(map[string]string, len(columns)),
	}

	for field, column := range columns {
		if other, ok := fm.toField[column]; ok {
			return nil, fmt.Errorf("%w: fields %q and %q both map to column %q",
				ErrInvalidDefinition, other, field, column)
		}

		fm.toColumn[field] = column
		fm.toField[column] = field
	}

	return fm, nil
}

// Column returns the storage column for field.
func (fm *FieldMap) Column(field string) string {
	if c, ok := fm.toColumn[field]; ok {
		return c
	}

	return field
}

// Field returns the application field for column.
func (fm *FieldMap) Field(column string) string {
	if f, ok := fm.toField[column]; ok {
		return f
	}

	return column
}
