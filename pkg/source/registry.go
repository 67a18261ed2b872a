// CLAUDE:SUMMARY Extension-keyed registry of file formats (reader strategies) with path resolution.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Format is a file reading strategy for one extension.
type Format struct {
	// Ext is the lowercase extension including the dot (e.g. ".csv").
	Ext string
	// Open returns a Source for path. It must not read data; reading happens
	// in Schema and Scan.
	Open func(path string) Source
}

var (
	registryMu sync.RWMutex
	formats    = make(map[string]Format)
)

// Register adds a format to the global registry, replacing any previous
// format for the same extension.
func Register(f Format) {
	registryMu.Lock()
	defer registryMu.Unlock()
	f.Ext = strings.ToLower(f.Ext)
	formats[f.Ext] = f
}

// Lookup returns the format registered for ext.
func Lookup(ext string) (Format, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := formats[strings.ToLower(ext)]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
	return f, nil
}

// All returns every registered format sorted by extension.
func All() []Format {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]Format, 0, len(formats))
	for _, f := range formats {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Ext < result[j].Ext })
	return result
}

// Resolve checks that path exists, then picks its format by extension.
func Resolve(path string) (Format, error) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Format{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Format{}, fmt.Errorf("%w: stat %s: %w", ErrDataRead, path, err)
	}
	if st.IsDir() {
		return Format{}, fmt.Errorf("%w: %s is a directory", ErrDataRead, path)
	}
	return Lookup(filepath.Ext(path))
}

// Open resolves path and returns its Source.
func Open(path string) (Source, error) {
	f, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	return f.Open(path), nil
}
