package finder

import (
	"context"
	"fmt"

	"github.com/hazyhaar/namefinder/pkg/engine"
	"github.com/hazyhaar/namefinder/pkg/source"
)

// Runner compares one resolved comparison file against a reference source.
type Runner func(ctx context.Context, firstNameColumn, familyNameColumn string, threshold float64, ref source.Source) (*engine.Table, error)

// Runner resolves the file at path through the format registry and returns a
// comparison runner bound to it. Missing files and unknown extensions fail
// here, before any data is read.
func (f *Finder) Runner(path string) (Runner, error) {
	format, err := source.Resolve(path)
	if err != nil {
		return nil, err
	}
	cmp := format.Open(path)
	return func(ctx context.Context, firstNameColumn, familyNameColumn string, threshold float64, ref source.Source) (*engine.Table, error) {
		t, err := f.CompareNamesIn(ctx, cmp, firstNameColumn, familyNameColumn, threshold, ref)
		if err != nil {
			return nil, fmt.Errorf("compare %s (%s): %w", path, format.Ext, err)
		}
		return t, nil
	}, nil
}
