// Package kinds loads the content kind registry from YAML.
//
// The registry is the single place that knows, per content kind, which
// record fields are indexed and which website caches derive from it.
// A default registry is compiled in; deployments may supply their own file.
package kinds

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/campus/internal/core/domain"
)

//go:embed kinds.yaml
var defaultRegistry []byte

type file struct {
	Kinds []entry `yaml:"kinds"`
}

type entry struct {
	Kind               string   `yaml:"kind"`
	Label              string   `yaml:"label"`
	Table              string   `yaml:"table"`
	FieldPaths         []string `yaml:"field_paths"`
	HTMLFieldPaths     []string `yaml:"html_field_paths"`
	MarkdownFieldPaths []string `yaml:"markdown_field_paths"`
	CacheKeys          []string `yaml:"cache_keys"`
	CacheTags          []string `yaml:"cache_tags"`
}

// Default returns the compiled-in registry.
func Default() (*domain.KindRegistry, error) {
	return Parse(defaultRegistry)
}

// Load reads a registry file. An empty path returns the default registry.
func Load(path string) (*domain.KindRegistry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading kinds file: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("kinds file %s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes a YAML registry document.
func Parse(data []byte) (*domain.KindRegistry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if len(f.Kinds) == 0 {
		return nil, fmt.Errorf("%w: no kinds defined", domain.ErrInvalidInput)
	}

	specs := make([]domain.KindSpec, 0, len(f.Kinds))
	for _, e := range f.Kinds {
		specs = append(specs, domain.KindSpec{
			Kind:               domain.ContentKind(e.Kind),
			Label:              e.Label,
			Table:              e.Table,
			FieldPaths:         e.FieldPaths,
			HTMLFieldPaths:     e.HTMLFieldPaths,
			MarkdownFieldPaths: e.MarkdownFieldPaths,
			CacheKeys:          e.CacheKeys,
			CacheTags:          e.CacheTags,
		})
	}
	return domain.NewKindRegistry(specs...)
}
