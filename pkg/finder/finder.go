// CLAUDE:SUMMARY Name-matching operations: normalize, find one person, list columns, compare a file against the reference.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/hazyhaar/namefinder/pkg/engine"
	"github.com/hazyhaar/namefinder/pkg/names"
	"github.com/hazyhaar/namefinder/pkg/query"
	"github.com/hazyhaar/namefinder/pkg/source"
)

// ErrInvalidThreshold is returned for thresholds outside [0, 1] or NaN.
var ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")

// Staged table names used by the builtin templates.
const (
	referenceTable  = "reference"
	comparisonTable = "comparison"
)

// Result columns.
const (
	ColJaroWinkler          = "jaro_winkler_similarity_score"
	ColLevenshtein          = "levenshtein_similarity_score"
	ColComparisonFirstName  = "comparison_first_name"
	ColComparisonFamilyName = "comparison_family_name"
)

// Config holds the finder settings.
type Config struct {
	// ReferencePath is the reference dataset used when a call passes no locator.
	ReferencePath string
	// Templates overrides the builtin query templates.
	Templates *query.Set
}

// Finder runs name-matching queries. It keeps no per-query state; every call
// opens its own sources, so a Finder is safe for concurrent use.
type Finder struct {
	cfg    Config
	exec   *engine.Executor
	logger *slog.Logger
}

// New returns a Finder for cfg. A nil logger means slog.Default().
func New(cfg Config, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{
		cfg:    cfg,
		exec:   engine.New(cfg.Templates, logger),
		logger: logger,
	}
}

// ReferencePath returns the default reference dataset path.
func (f *Finder) ReferencePath() string { return f.cfg.ReferencePath }

// NormalizeName returns the canonical comparison token for a name.
func NormalizeName(name string) string {
	return names.Normalize(name)
}

// FindPerson looks name up in the reference dataset at locator, or in the
// configured reference when locator is empty.
func (f *Finder) FindPerson(ctx context.Context, name string, threshold float64, locator string) (*engine.Table, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	ref, err := f.reference(locator)
	if err != nil {
		return nil, err
	}
	return f.FindPersonIn(ctx, name, threshold, ref)
}

// FindPersonIn scores every row of ref against name. The name is compared
// with whitespace removed against first_name || family_name, so "John Doe"
// and "JohnDoe" are the same query. Rows scoring strictly above threshold are
// returned, best first; equal scores keep source order.
func (f *Finder) FindPersonIn(ctx context.Context, name string, threshold float64, ref source.Source) (*engine.Table, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	if err := requireColumns(ctx, "reference", ref, "first_name", "family_name"); err != nil {
		return nil, err
	}
	return f.exec.Execute(ctx, query.FindPerson, map[string]any{
		"Name":      names.Compact(name),
		"Threshold": threshold,
		"Source":    referenceTable,
	}, map[string]source.Source{referenceTable: ref})
}

// GetColumns returns the column names of the file at path without reading its
// rows. Files with fewer than two columns cannot be compared and fail with
// source.ErrSchema.
func (f *Finder) GetColumns(ctx context.Context, path string) ([]string, error) {
	src, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	schema, err := src.Schema(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkWidth(schema); err != nil {
		return nil, err
	}
	return schema.Names(), nil
}

// CompareNames compares every row of the file at path with every row of the
// reference dataset at locator (or the configured reference).
func (f *Finder) CompareNames(ctx context.Context, path, firstNameColumn, familyNameColumn string, threshold float64, locator string) (*engine.Table, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	run, err := f.Runner(path)
	if err != nil {
		return nil, err
	}
	ref, err := f.reference(locator)
	if err != nil {
		return nil, err
	}
	return run(ctx, firstNameColumn, familyNameColumn, threshold, ref)
}

// CompareNamesIn runs the cross comparison of cmp against ref. Each result row
// holds the reference record, the comparison names and both scores.
func (f *Finder) CompareNamesIn(ctx context.Context, cmp source.Source, firstNameColumn, familyNameColumn string, threshold float64, ref source.Source) (*engine.Table, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	schema, err := cmp.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: comparison: %w", engine.ErrDataSource, err)
	}
	if err := checkWidth(schema); err != nil {
		return nil, err
	}
	for _, c := range []string{firstNameColumn, familyNameColumn} {
		if !schema.Has(c) {
			return nil, fmt.Errorf("%w: comparison file has no column %q", source.ErrSchema, c)
		}
	}
	if err := requireColumns(ctx, "reference", ref, "name_for_comparison"); err != nil {
		return nil, err
	}

	t, err := f.exec.Execute(ctx, query.CompareNames, map[string]any{
		"Reference":        referenceTable,
		"Comparison":       comparisonTable,
		"FirstNameColumn":  firstNameColumn,
		"FamilyNameColumn": familyNameColumn,
		"Threshold":        threshold,
	}, map[string]source.Source{referenceTable: ref, comparisonTable: cmp})
	if err != nil {
		return nil, err
	}
	f.logger.Info("names compared",
		"first_name_column", firstNameColumn,
		"family_name_column", familyNameColumn,
		"threshold", threshold,
		"matches", t.Len(),
	)
	return t, nil
}

// reference opens the dataset at locator, defaulting to the configured path.
func (f *Finder) reference(locator string) (source.Source, error) {
	if locator == "" {
		locator = f.cfg.ReferencePath
	}
	src, err := source.Open(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: reference: %w", engine.ErrDataSource, err)
	}
	return src, nil
}

// checkWidth rejects comparison files with fewer than two columns.
func checkWidth(schema source.Schema) error {
	if len(schema) < 2 {
		return fmt.Errorf("%w: need at least 2 columns, found %d", source.ErrSchema, len(schema))
	}
	return nil
}

func requireColumns(ctx context.Context, role string, src source.Source, cols ...string) error {
	schema, err := src.Schema(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", engine.ErrDataSource, role, err)
	}
	for _, c := range cols {
		if !schema.Has(c) {
			return fmt.Errorf("%w: %s has no column %q", source.ErrSchema, role, c)
		}
	}
	return nil
}

func checkThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, t)
	}
	return nil
}
