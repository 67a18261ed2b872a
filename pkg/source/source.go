// Package source reads tabular data sources (CSV, Parquet, spreadsheets, in-memory
// tables) behind one interface, dispatching file formats by extension.
package source

import (
	"context"
	"errors"
)

var (
	// ErrFileNotFound is returned when a path does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnsupportedFileType is returned when no format is registered for an extension.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrSchema is returned when a source lacks usable or expected columns.
	ErrSchema = errors.New("schema error")
	// ErrDataRead is returned when a file exists but cannot be parsed.
	ErrDataRead = errors.New("data read error")
)

// Column types, expressed as SQLite type names.
const (
	TypeText    = "TEXT"
	TypeInteger = "INTEGER"
	TypeReal    = "REAL"
	TypeBlob    = "BLOB"
)

// Column is a named, typed column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is the ordered list of columns of a source.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Has reports whether a column with the given name exists.
func (s Schema) Has(name string) bool {
	return s.Index(name) >= 0
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Source is a readable table.
//
// Schema must be cheap: implementations read headers or metadata only, never
// the data rows. Scan calls fn once per row with one value per schema column;
// values are nil, int64, float64, string or []byte.
type Source interface {
	Schema(ctx context.Context) (Schema, error)
	Scan(ctx context.Context, fn func(row []any) error) error
}
