package domain

import (
	"fmt"
	"slices"
	"strings"
)

// KindSpec is the registry entry for one content kind.
// It carries everything type-specific: which fields to index,
// which of them hold rich text, and which caches derive from the kind.
type KindSpec struct {
	// Kind is the discriminator value.
	Kind ContentKind

	// Label is the human-readable provenance shown in assembled context.
	Label string

	// Table is the relational table holding records of this kind.
	Table string

	// FieldPaths lists the dotted field paths to index, in output order.
	FieldPaths []string

	// HTMLFieldPaths lists the paths whose values are sanitised before use.
	HTMLFieldPaths []string

	// MarkdownFieldPaths lists the paths holding Markdown, flattened before use.
	MarkdownFieldPaths []string

	// CacheKeys lists the named derived caches built from this kind.
	CacheKeys []string

	// CacheTags lists the cache tag groups built from this kind.
	CacheTags []string
}

// IsHTML reports whether the path holds rich text.
func (s KindSpec) IsHTML(path string) bool {
	return slices.Contains(s.HTMLFieldPaths, path)
}

// IsMarkdown reports whether the path holds Markdown.
func (s KindSpec) IsMarkdown(path string) bool {
	return slices.Contains(s.MarkdownFieldPaths, path)
}

// Validate checks the entry is usable.
func (s KindSpec) Validate() error {
	if s.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidInput)
	}
	if len(s.FieldPaths) == 0 {
		return fmt.Errorf("%w: kind %q has no field paths", ErrInvalidInput, s.Kind)
	}
	for _, p := range s.FieldPaths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: kind %q has an empty field path", ErrInvalidInput, s.Kind)
		}
		if s.IsHTML(p) && s.IsMarkdown(p) {
			return fmt.Errorf("%w: kind %q field %q cannot be both HTML and Markdown", ErrInvalidInput, s.Kind, p)
		}
	}
	return nil
}

// KindRegistry is the lookup table from content kind to its spec.
// It is built once at startup and read-only afterwards.
type KindRegistry struct {
	specs map[ContentKind]KindSpec
}

// NewKindRegistry builds a registry, rejecting invalid and duplicate entries.
func NewKindRegistry(specs ...KindSpec) (*KindRegistry, error) {
	r := &KindRegistry{specs: make(map[ContentKind]KindSpec, len(specs))}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.specs[s.Kind]; dup {
			return nil, fmt.Errorf("%w: duplicate kind %q", ErrInvalidInput, s.Kind)
		}
		r.specs[s.Kind] = s
	}
	return r, nil
}

// Lookup returns the KindSpec registered for kind.
func (r *KindRegistry) Lookup(kind ContentKind) (KindSpec, bool) {
	if r == nil {
		return KindSpec{}, false
	}
	s, ok := r.specs[kind]
	return s, ok
}

// Has reports whether the kind is registered.
func (r *KindRegistry) Has(kind ContentKind) bool {
	_, ok := r.Lookup(kind)
	return ok
}

// Label returns the kind's provenance label, falling back to the kind itself.
func (r *KindRegistry) Label(kind ContentKind) string {
	if s, ok := r.Lookup(kind); ok && s.Label != "" {
		return s.Label
	}
	return string(kind)
}

// Kinds returns all registered kinds, sorted.
func (r *KindRegistry) Kinds() []ContentKind {
	if r == nil {
		return nil
	}
	kinds := make([]ContentKind, 0, len(r.specs))
	for k := range r.specs {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
