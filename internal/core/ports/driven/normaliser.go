package driven

import "github.com/custodia-labs/campus/internal/core/domain"

// Normaliser flattens a content record into plain retrievable text.
type Normaliser interface {
	// Normalise returns the record's text.
	// Returns domain.ErrUnsupportedSourceKind for unregistered kinds.
	Normalise(record *domain.SourceRecord) (string, error)
}

// Sanitizer strips markup from rich text so it is safe to surface verbatim.
type Sanitizer interface {
	Sanitize(text string) string
}
