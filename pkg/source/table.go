package source

import (
	"context"
	"fmt"
)

// Table is an in-memory Source.
type Table struct {
	columns Schema
	rows    [][]any
}

// NewTable builds a table. Every row must have exactly one value per column.
func NewTable(columns Schema, rows [][]any) *Table {
	return &Table{columns: columns, rows: rows}
}

// TextTable builds a table of TEXT columns from string rows.
func TextTable(names []string, rows ...[]string) *Table {
	cols := make(Schema, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: TypeText}
	}
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = make([]any, len(r))
		for j, v := range r {
			vals[i][j] = v
		}
	}
	return NewTable(cols, vals)
}

func (t *Table) Schema(context.Context) (Schema, error) {
	return t.columns, nil
}

func (t *Table) Scan(ctx context.Context, fn func(row []any) error) error {
	for i, r := range t.rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(r) != len(t.columns) {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrDataRead, i, len(r), len(t.columns))
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
