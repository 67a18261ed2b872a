package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	excelize "github.com/xuri/excelize/v2"
)

func init() {
	Register(Format{Ext: ".xlsx", Open: func(path string) Source { return &XLSX{Path: path} }})
}

// XLSX reads the first sheet of a workbook; its first row is the header.
type XLSX struct {
	Path string
}

func (x *XLSX) Schema(ctx context.Context) (Schema, error) {
	var schema Schema
	err := x.rows(ctx, func(rows *excelize.Rows) error {
		hdr, err := xlsxHeader(rows)
		if err != nil {
			return err
		}
		schema = headerSchema(hdr, TypeText)
		return nil
	})
	return schema, err
}

func (x *XLSX) Scan(ctx context.Context, fn func(row []any) error) error {
	return x.rows(ctx, func(rows *excelize.Rows) error {
		hdr, err := xlsxHeader(rows)
		if err != nil {
			return err
		}
		for rows.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			cells, err := rows.Columns()
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrDataRead, x.Path, err)
			}
			if isBlank(cells) {
				continue
			}
			if err := fn(fitRow(cells, len(hdr))); err != nil {
				return err
			}
		}
		if err := rows.Error(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrDataRead, x.Path, err)
		}
		return nil
	})
}

func (x *XLSX) rows(ctx context.Context, fn func(*excelize.Rows) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := excelize.OpenFile(x.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, x.Path)
		}
		return fmt.Errorf("%w: %s: %w", ErrDataRead, x.Path, err)
	}
	defer f.Close()

	rows, err := f.Rows(f.GetSheetName(0))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDataRead, x.Path, err)
	}
	defer rows.Close()
	return fn(rows)
}

func xlsxHeader(rows *excelize.Rows) ([]string, error) {
	if !rows.Next() {
		if err := rows.Error(); err != nil {
			return nil, fmt.Errorf("%w: read header: %w", ErrDataRead, err)
		}
		return nil, fmt.Errorf("%w: empty sheet, no header row", ErrSchema)
	}
	hdr, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrDataRead, err)
	}
	return hdr, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
