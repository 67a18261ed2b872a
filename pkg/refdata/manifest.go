package refdata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name, stored next to the dataset.
const ManifestFile = "manifest.yaml"

// Manifest describes a built reference dataset.
type Manifest struct {
	DataFile string    `yaml:"data_file" json:"data_file"`
	Rows     int       `yaml:"rows" json:"rows"`
	Columns  []string  `yaml:"columns" json:"columns"`
	Origin   string    `yaml:"origin" json:"origin"`
	BuiltAt  time.Time `yaml:"built_at" json:"built_at"`
}

// NewManifest describes people written to dataPath.
func NewManifest(dataPath string, people []Person, origin string) *Manifest {
	return &Manifest{
		DataFile: filepath.Base(dataPath),
		Rows:     len(people),
		Columns:  Columns,
		Origin:   origin,
		BuiltAt:  time.Now().UTC().Truncate(time.Second),
	}
}

// WriteManifest writes m as YAML to dir/manifest.yaml.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}

// LoadManifest reads and parses a manifest.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.DataFile == "" {
		return nil, fmt.Errorf("manifest %s: missing data_file", path)
	}
	return &m, nil
}
