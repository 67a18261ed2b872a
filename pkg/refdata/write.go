package refdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/hazyhaar/namefinder/pkg/source"
)

// Write stores people at path. The extension picks the format: .parquet or .csv.
func Write(path string, people []Person) error {
	return writeRows(path, people, Columns, Person.record)
}

// WriteTrial stores trial rows at path, as .parquet or .csv.
func WriteTrial(path string, rows []Trial) error {
	return writeRows(path, rows, TrialColumns, Trial.record)
}

// writeRows covers the formats datasets are generated in. Reading goes through
// the source registry, which also accepts spreadsheets.
func writeRows[T any](path string, rows []T, header []string, record func(T) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		if err := parquet.WriteFile(path, rows); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	case ".csv":
		return writeCSV(path, rows, header, record)
	default:
		return fmt.Errorf("%w: cannot write %q", source.ErrUnsupportedFileType, ext)
	}
}

func writeCSV[T any](path string, rows []T, header []string, record func(T) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, r := range rows {
		if err := w.Write(record(r)); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
