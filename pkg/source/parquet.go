package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

func init() {
	Register(Format{Ext: ".parquet", Open: func(path string) Source { return &Parquet{Path: path} }})
}

const parquetBatch = 256

// Parquet is a flat Parquet file. Schema reads the footer only.
type Parquet struct {
	Path string
}

func (p *Parquet) Schema(ctx context.Context) (Schema, error) {
	f, size, err := p.file(ctx)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	schema, err := ReadParquetSchema(f, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	return schema, nil
}

// footerOnly opens a file from its magic bytes and footer, skipping page
// indexes and bloom filters.
var footerOnly = []parquet.FileOption{parquet.SkipPageIndex(true), parquet.SkipBloomFilters(true)}

// ReadParquetSchema returns the schema of the Parquet file r of length size,
// reading the footer only.
func ReadParquetSchema(r io.ReaderAt, size int64) (Schema, error) {
	pf, err := parquet.OpenFile(r, size, footerOnly...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataRead, err)
	}
	return parquetSchema(pf.Schema())
}

func (p *Parquet) Scan(ctx context.Context, fn func(row []any) error) error {
	return p.open(ctx, func(pf *parquet.File) error {
		schema, err := parquetSchema(pf.Schema())
		if err != nil {
			return err
		}
		width := len(schema)
		buf := make([]parquet.Row, parquetBatch)
		for _, rg := range pf.RowGroups() {
			if err := scanRowGroup(ctx, rg, buf, width, fn); err != nil {
				return fmt.Errorf("%s: %w", p.Path, err)
			}
		}
		return nil
	})
}

func (p *Parquet) open(ctx context.Context, fn func(*parquet.File) error) error {
	f, size, err := p.file(ctx)
	if err != nil {
		return err
	}
	defer f.Close()

	pf, err := parquet.OpenFile(f, size)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDataRead, p.Path, err)
	}
	return fn(pf)
}

func (p *Parquet) file(ctx context.Context) (*os.File, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrFileNotFound, p.Path)
		}
		return nil, 0, fmt.Errorf("%w: open %s: %w", ErrDataRead, p.Path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("%w: stat %s: %w", ErrDataRead, p.Path, err)
	}
	return f, st.Size(), nil
}

func scanRowGroup(ctx context.Context, rg parquet.RowGroup, buf []parquet.Row, width int, fn func([]any) error) error {
	rows := rg.Rows()
	defer rows.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := rows.ReadRows(buf)
		for _, r := range buf[:n] {
			vals := make([]any, width)
			for _, v := range r {
				if c := v.Column(); c >= 0 && c < width {
					vals[c] = parquetValue(v)
				}
			}
			if ferr := fn(vals); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read rows: %w", ErrDataRead, err)
		}
		if n == 0 {
			return nil
		}
	}
}

// parquetSchema maps top-level leaf fields to columns. Nested and repeated
// fields cannot be flattened into a single value per row.
func parquetSchema(s *parquet.Schema) (Schema, error) {
	fields := s.Fields()
	out := make(Schema, 0, len(fields))
	for _, f := range fields {
		if !f.Leaf() {
			return nil, fmt.Errorf("%w: nested column %q is not supported", ErrSchema, f.Name())
		}
		if f.Repeated() {
			return nil, fmt.Errorf("%w: repeated column %q is not supported", ErrSchema, f.Name())
		}
		out = append(out, Column{Name: f.Name(), Type: parquetType(f.Type().Kind())})
	}
	return out, nil
}

func parquetType(k parquet.Kind) string {
	switch k {
	case parquet.Boolean, parquet.Int32, parquet.Int64:
		return TypeInteger
	case parquet.Float, parquet.Double:
		return TypeReal
	default:
		return TypeText
	}
}

func parquetValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return int64(1)
		}
		return int64(0)
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
