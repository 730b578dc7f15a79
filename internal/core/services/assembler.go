package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// contextSeparator sits between passages in assembled context.
const contextSeparator = "\n\n"

// ContextAssembler turns ranked chunks into a bounded context block for
// the generation service, each passage labelled with its provenance.
type ContextAssembler struct {
	registry *domain.KindRegistry
}

// NewContextAssembler creates an assembler labelling passages from registry.
func NewContextAssembler(registry *domain.KindRegistry) *ContextAssembler {
	return &ContextAssembler{registry: registry}
}

// Assemble concatenates results in order as "[Label] text" blocks separated
// by a blank line, stopping before the first block that would push the
// output past maxLength runes. When even the first block does not fit, it
// is cut to maxLength runes, keeping the label, as long as the whole chunk
// text would fit on its own; otherwise the output is a prefix of the chunk
// text alone.
func (a *ContextAssembler) Assemble(results []domain.RetrievalResult, maxLength int) string {
	if maxLength <= 0 || len(results) == 0 {
		return ""
	}

	var b strings.Builder
	used := 0
	for i, r := range results {
		block := fmt.Sprintf("[%s] %s", a.registry.Label(r.Chunk.Kind), r.Chunk.Text)
		size := utf8.RuneCountInString(block)
		if i > 0 {
			size += utf8.RuneCountInString(contextSeparator)
		}

		if used+size > maxLength {
			if i == 0 {
				if utf8.RuneCountInString(r.Chunk.Text) <= maxLength {
					return truncateRunes(block, maxLength)
				}
				return truncateRunes(r.Chunk.Text, maxLength)
			}
			break
		}

		if i > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(block)
		used += size
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
