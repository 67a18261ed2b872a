package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	xls "github.com/extrame/xls"
)

func init() {
	Register(Format{Ext: ".xls", Open: func(path string) Source { return &XLS{Path: path} }})
}

// XLS reads the first sheet of a BIFF workbook; its first row is the header.
// The format is binary, so schema reads parse the whole sheet.
type XLS struct {
	Path string
	// Charset used for non-Unicode strings. Defaults to windows-1252.
	Charset string
}

func (x *XLS) Schema(ctx context.Context) (Schema, error) {
	sheet, err := x.sheet(ctx)
	if err != nil {
		return nil, err
	}
	hdr, width := xlsHeader(sheet)
	if width == 0 {
		return nil, fmt.Errorf("%w: empty sheet, no header row", ErrSchema)
	}
	return headerSchema(hdr, TypeText), nil
}

func (x *XLS) Scan(ctx context.Context, fn func(row []any) error) error {
	sheet, err := x.sheet(ctx)
	if err != nil {
		return err
	}
	_, width := xlsHeader(sheet)
	if width == 0 {
		return fmt.Errorf("%w: empty sheet, no header row", ErrSchema)
	}
	for i := 1; i <= int(sheet.MaxRow); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cells := xlsCells(xlsRow(sheet, i), width)
		if isBlank(cells) {
			continue
		}
		if err := fn(fitRow(cells, width)); err != nil {
			return err
		}
	}
	return nil
}

func (x *XLS) sheet(ctx context.Context) (*xls.WorkSheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(x.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, x.Path)
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrDataRead, x.Path, err)
	}
	// The first sheet is parsed eagerly by GetSheet, so the file can be
	// closed once it returns.
	defer f.Close()

	cs := x.Charset
	if cs == "" {
		cs = "windows-1252"
	}
	wb, sheet, err := firstSheet(f, cs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataRead, x.Path, err)
	}
	if wb == nil {
		return nil, fmt.Errorf("%w: %s: no workbook stream", ErrDataRead, x.Path)
	}
	if sheet == nil {
		return nil, fmt.Errorf("%w: %s has no sheet", ErrSchema, x.Path)
	}
	return sheet, nil
}

// firstSheet opens the workbook in r and parses its first sheet. The decoder
// panics on some truncated streams; that is reported as an error.
func firstSheet(r io.ReadSeeker, charset string) (wb *xls.WorkBook, sheet *xls.WorkSheet, err error) {
	defer func() {
		if p := recover(); p != nil {
			wb, sheet, err = nil, nil, fmt.Errorf("corrupt workbook: %v", p)
		}
	}()
	wb, err = xls.OpenReader(r, charset)
	if err != nil || wb == nil {
		return wb, nil, err
	}
	return wb, wb.GetSheet(0), nil
}

// xlsRow returns row i, or nil when the sheet holds no record for it.
// WorkSheet.Row dereferences missing rows.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// xlsMaxCols bounds the header scan; Row.LastCol is unreliable on files
// written by some exporters.
const xlsMaxCols = 512

// xlsHeader returns the header cells and the table width, which is the
// position of the last non-empty header cell.
func xlsHeader(sheet *xls.WorkSheet) ([]string, int) {
	row := xlsRow(sheet, 0)
	if row == nil {
		return nil, 0
	}
	cells := xlsCells(row, xlsMaxCols)
	width := len(cells)
	for width > 0 && cells[width-1] == "" {
		width--
	}
	return cells[:width], width
}

func xlsCells(row *xls.Row, width int) []string {
	cells := make([]string, width)
	if row == nil {
		return cells
	}
	for j := 0; j < width; j++ {
		cells[j] = strings.TrimSpace(row.Col(j))
	}
	return cells
}
