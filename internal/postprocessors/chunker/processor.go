// Package chunker provides a fixed-size sliding window text chunker.
package chunker

import (
	"fmt"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 100

// Processor splits normalised text into fixed-size overlapping chunks.
// Sizes are counted in runes so multi-byte text is never split mid-character.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a new chunker processor with the given options.
// Returns domain.ErrInvalidChunkConfig unless size > overlap >= 0.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := Validate(p.chunkSize, p.overlap); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks size > overlap >= 0.
func Validate(size, overlap int) error {
	if overlap < 0 || size <= overlap {
		return fmt.Errorf("%w: size %d, overlap %d", domain.ErrInvalidChunkConfig, size, overlap)
	}
	return nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Size returns the configured chunk size.
func (p *Processor) Size() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Chunk splits text into chunks attributed to ref.
func (p *Processor) Chunk(ref domain.SourceRef, text string) ([]domain.Chunk, error) {
	spans, err := Split(text, p.chunkSize, p.overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = domain.Chunk{
			Kind:      ref.Kind,
			SourceID:  ref.ID,
			Index:     i,
			Text:      s.Text,
			CharStart: s.Start,
			CharEnd:   s.End,
		}
	}
	return chunks, nil
}

// Span is one window of the text, with rune offsets [Start, End).
type Span struct {
	Text  string
	Start int
	End   int
}

// Split slides a window of size runes over text, advancing size-overlap
// runes per step, and stops once a window reaches the end of the text.
// Text shorter than size yields one span; empty text yields none.
func Split(text string, size, overlap int) ([]Span, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	contentLen := len(runes)
	step := size - overlap

	// Estimate number of chunks
	estimated := 1
	if contentLen > size {
		estimated += (contentLen - size + step - 1) / step
	}
	spans := make([]Span, 0, estimated)

	for start := 0; ; start += step {
		end := min(start+size, contentLen)

		spans = append(spans, Span{
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})

		// The tail is covered; another window would only repeat overlap
		if end == contentLen {
			break
		}
	}

	return spans, nil
}
