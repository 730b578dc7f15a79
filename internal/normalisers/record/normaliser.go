// Package record flattens CMS content records into retrievable text.
//
// Which fields are read, and which are rich text, comes from the content
// kind registry. Field paths are dotted; a segment that resolves to a list
// applies the remaining path to every element, so "sections.body" reads
// the body of every section in order.
package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// fieldSeparator joins the text of consecutive fields.
const fieldSeparator = "\n\n"

// Normaliser turns records into text using the kind registry.
type Normaliser struct {
	registry  *domain.KindRegistry
	sanitizer driven.Sanitizer
	markdown  driven.Sanitizer
}

// Option configures a Normaliser.
type Option func(*Normaliser)

// WithMarkdown sets the sanitizer applied to each kind's Markdown field paths.
// Without it Markdown fields are indexed verbatim.
func WithMarkdown(s driven.Sanitizer) Option {
	return func(n *Normaliser) {
		n.markdown = s
	}
}

// New creates a normaliser. sanitizer is applied to each kind's HTML field paths.
func New(registry *domain.KindRegistry, sanitizer driven.Sanitizer, opts ...Option) *Normaliser {
	n := &Normaliser{registry: registry, sanitizer: sanitizer}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalise returns the record's text: the non-empty values of the kind's
// field paths, in registry order, separated by blank lines.
func (n *Normaliser) Normalise(rec *domain.SourceRecord) (string, error) {
	if rec == nil {
		return "", domain.ErrInvalidInput
	}

	spec, ok := n.registry.Lookup(rec.Kind)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedSourceKind, rec.Kind)
	}

	parts := make([]string, 0, len(spec.FieldPaths))
	for _, path := range spec.FieldPaths {
		values := resolve(rec.Fields, strings.Split(path, "."))
		sanitizer := n.sanitizerFor(spec, path)
		for _, v := range values {
			text := fieldText(v, sanitizer)
			if text != "" {
				parts = append(parts, text)
			}
		}
	}

	return strings.Join(parts, fieldSeparator), nil
}

// sanitizerFor picks the sanitizer for a field path, nil for plain text.
func (n *Normaliser) sanitizerFor(spec domain.KindSpec, path string) driven.Sanitizer {
	switch {
	case spec.IsHTML(path):
		return n.sanitizer
	case spec.IsMarkdown(path):
		return n.markdown
	default:
		return nil
	}
}

// fieldText renders one scalar value as trimmed text.
func fieldText(v any, sanitizer driven.Sanitizer) string {
	var text string
	switch val := v.(type) {
	case string:
		text = val
	case bool:
		text = strconv.FormatBool(val)
	case int:
		text = strconv.Itoa(val)
	case int64:
		text = strconv.FormatInt(val, 10)
	case float64:
		text = strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		text = val.String()
	default:
		return ""
	}

	if sanitizer != nil {
		text = sanitizer.Sanitize(text)
	}
	return strings.TrimSpace(text)
}

// resolve walks a dotted path and returns every scalar it reaches, in order.
func resolve(v any, path []string) []any {
	if v == nil {
		return nil
	}

	if list, ok := v.([]any); ok {
		var out []any
		for _, item := range list {
			out = append(out, resolve(item, path)...)
		}
		return out
	}

	if len(path) == 0 {
		if _, isMap := v.(map[string]any); isMap {
			return nil
		}
		return []any{v}
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return resolve(m[path[0]], path[1:])
}
