// Package config handles configuration loading and shared data structures.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration file structure.
type Config struct {
	DataDir     string    `yaml:"data_dir,omitempty" json:"-"`
	Attribution string    `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Datasets    []Dataset `yaml:"datasets" json:"datasets"`
	Workers     int       `yaml:"workers,omitempty" json:"-"`
	PreviewSize int       `yaml:"preview_size,omitempty" json:"-"`
}

// Dataset represents a single GeoJSON source file.
type Dataset struct {
	Index *int `yaml:"index,omitempty" json:"index,omitempty"`

	Name        string   `yaml:"name" json:"name"`
	Path        string   `yaml:"path" json:"-"`
	Attribution string   `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty" json:"-"`
	Workers     int      `yaml:"workers,omitempty" json:"-"` // overrides Config.Workers
	NoPreview   bool     `yaml:"no_preview,omitempty" json:"-"`
}

// IndexFile returns the path of the dataset index under dataDir.
func (d Dataset) IndexFile(dataDir string) string {
	return filepath.Join(dataDir, d.Name, "index.jsonl")
}

// PreviewFile returns the path of the dataset coverage preview under dataDir.
func (d Dataset) PreviewFile(dataDir string) string {
	return filepath.Join(dataDir, d.Name, "coverage.webp")
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PreviewSize <= 0 {
		cfg.PreviewSize = 512
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg.sort()

	return &cfg, nil
}

// WorkersFor returns the worker count for ds, falling back to the global one.
func (c *Config) WorkersFor(ds Dataset) int {
	if ds.Workers > 0 {
		return ds.Workers
	}
	return c.Workers
}

// Lookup finds a dataset by name or alias.
func (c *Config) Lookup(name string) (Dataset, bool) {
	for _, ds := range c.Datasets {
		if ds.Name == name || slices.Contains(ds.Aliases, name) {
			return ds, true
		}
	}
	return Dataset{}, false
}

func (c *Config) validate() error {
	seen := make(map[string]string)
	for i, ds := range c.Datasets {
		if ds.Name == "" {
			return fmt.Errorf("dataset #%d has no name", i)
		}
		if ds.Path == "" {
			return fmt.Errorf("dataset %q has no path", ds.Name)
		}

		for _, key := range append([]string{ds.Name}, ds.Aliases...) {
			if owner, ok := seen[key]; ok {
				return fmt.Errorf("name %q of dataset %q is already used by %q", key, ds.Name, owner)
			}
			seen[key] = ds.Name
		}
	}
	return nil
}

// sort orders datasets by explicit index first, then keeps file order.
func (c *Config) sort() {
	slices.SortStableFunc(c.Datasets, func(a, b Dataset) int {
		switch {
		case a.Index != nil && b.Index != nil:
			return *a.Index - *b.Index
		case a.Index != nil:
			return -1
		case b.Index != nil:
			return 1
		}
		return 0
	})
}
