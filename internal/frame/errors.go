package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema is the sentinel wrapped by every SchemaError.
	ErrSchema = errors.New("schema mismatch")

	// ErrUnsupportedType is the sentinel wrapped by every UnsupportedTypeError.
	ErrUnsupportedType = errors.New("unsupported table type")

	// ErrUnsortable is returned when a key column holds nulls.
	ErrUnsortable = errors.New("key column is not sortable")
)

// SchemaError reports a required column that is absent or has the wrong kind.
type SchemaError struct {
	Table  string // Logical table name ("candidates", "state", ...), may be empty
	Column string
	Want   Kind // KindInvalid when only presence was checked
	Got    Kind
}

func (e *SchemaError) Error() string {
	table := e.Table
	if table == "" {
		table = "table"
	}
	if e.Got == KindInvalid {
		return fmt.Sprintf("%s: missing required column %q", table, e.Column)
	}
	return fmt.Sprintf("%s: column %q is %s, want %s", table, e.Column, e.Got, e.Want)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// UnsupportedTypeError reports an input value that cannot be adapted into a Frame.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported table type %s", e.Type)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}
