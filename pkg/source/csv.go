// CLAUDE:SUMMARY CSV format: header-only schema reads, charset detection (chardet) and UTF-8 transcoding.
package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

func init() {
	Register(Format{Ext: ".csv", Open: func(path string) Source { return &CSV{Path: path} }})
}

const sniffSize = 4096

// CSV is a comma-delimited file with a header row.
type CSV struct {
	Path string
}

// Schema reads the header row only.
func (c *CSV) Schema(ctx context.Context) (Schema, error) {
	var schema Schema
	err := c.read(ctx, func(r *csv.Reader) error {
		var err error
		schema, err = csvSchema(r)
		return err
	})
	return schema, err
}

// ReadCSVSchema returns the header schema of the CSV stream r. At most the
// header line and the read-ahead buffers are consumed.
func ReadCSVSchema(r io.Reader) (Schema, error) {
	cr, err := newCSVReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataRead, err)
	}
	return csvSchema(cr)
}

func csvSchema(r *csv.Reader) (Schema, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	return headerSchema(hdr, TypeText), nil
}

func (c *CSV) Scan(ctx context.Context, fn func(row []any) error) error {
	return c.read(ctx, func(r *csv.Reader) error {
		hdr, err := readHeader(r)
		if err != nil {
			return err
		}
		width := len(hdr)
		for line := 2; ; line++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := r.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w: %s line %d: %w", ErrDataRead, c.Path, line, err)
			}
			if err := fn(fitRow(rec, width)); err != nil {
				return err
			}
		}
	})
}

func (c *CSV) read(ctx context.Context, fn func(*csv.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, c.Path)
		}
		return fmt.Errorf("%w: open %s: %w", ErrDataRead, c.Path, err)
	}
	defer f.Close()

	r, err := newCSVReader(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDataRead, c.Path, err)
	}
	return fn(r)
}

func newCSVReader(r io.Reader) (*csv.Reader, error) {
	dec, err := decodeUTF8(r)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr, nil
}

func readHeader(r *csv.Reader) ([]string, error) {
	hdr, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file, no header row", ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrDataRead, err)
	}
	out := make([]string, len(hdr))
	copy(out, hdr)
	return out, nil
}

// decodeUTF8 strips a UTF-8 BOM and transcodes input that is not valid UTF-8,
// using chardet on the first bytes to pick the charset.
func decodeUTF8(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	peek, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	if len(peek) >= 3 && peek[0] == 0xEF && peek[1] == 0xBB && peek[2] == 0xBF {
		br.Discard(3)
		return br, nil
	}
	if validUTF8Prefix(peek, len(peek) < sniffSize) {
		return br, nil
	}

	det, err := chardet.NewTextDetector().DetectBest(peek)
	if err != nil || det == nil {
		return br, nil
	}
	cs := strings.ToLower(det.Charset)
	if cs == "utf-8" || cs == "ascii" {
		return br, nil
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", det.Charset, err)
	}
	return transform.NewReader(br, enc.NewDecoder()), nil
}

// validUTF8Prefix reports whether b is valid UTF-8, tolerating a rune cut off
// at the end of a partial read.
func validUTF8Prefix(b []byte, complete bool) bool {
	if utf8.Valid(b) {
		return true
	}
	if complete {
		return false
	}
	for cut := 1; cut < utf8.UTFMax && cut < len(b); cut++ {
		if utf8.Valid(b[:len(b)-cut]) {
			return true
		}
	}
	return false
}
