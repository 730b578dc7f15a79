// Package markdown flattens Markdown field values to plain text.
package markdown

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/campus/internal/core/ports/driven"
)

// Ensure Sanitizer implements the interface.
var _ driven.Sanitizer = (*Sanitizer)(nil)

// Sanitizer removes Markdown syntax and keeps the readable text.
type Sanitizer struct{}

// New creates a new Markdown sanitizer.
func New() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize flattens Markdown to plain text. Safe for concurrent use.
func (s *Sanitizer) Sanitize(text string) string {
	return stripMarkdown(text)
}

var (
	codeFence      = regexp.MustCompile("(?s)```[^\\n]*\\n(.*?)```")
	inlineCode     = regexp.MustCompile("`([^`]+)`")
	images         = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links          = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	autolinks      = regexp.MustCompile(`<(https?://[^>]+)>`)
	headings       = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	strong         = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
	emphasis       = regexp.MustCompile(`(^|[\s(])[*_]([^*_\n]+)[*_]`)
	strikethrough  = regexp.MustCompile(`~~(.+?)~~`)
	blockquote     = regexp.MustCompile(`(?m)^\s*>\s?`)
	horizontalRule = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	bulletList     = regexp.MustCompile(`(?m)^\s*[*+]\s+`)
	numberedList   = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)
	tableRule      = regexp.MustCompile(`(?m)^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?\s*$`)
	tablePipes     = regexp.MustCompile(`\s*\|\s*`)
	multiNewlines  = regexp.MustCompile(`\n{3,}`)
	multiSpaces    = regexp.MustCompile(`[ \t]+`)
)

// stripMarkdown removes common Markdown formatting.
func stripMarkdown(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	// Code keeps its text, without fences or backticks
	content = codeFence.ReplaceAllString(content, "$1")
	content = inlineCode.ReplaceAllString(content, "$1")

	// Images keep their alt text, links their label
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = autolinks.ReplaceAllString(content, "$1")

	content = headings.ReplaceAllString(content, "")
	content = blockquote.ReplaceAllString(content, "")
	content = horizontalRule.ReplaceAllString(content, "")

	// Lists become dash bullets, matching the HTML sanitizer
	content = bulletList.ReplaceAllString(content, "- ")
	content = numberedList.ReplaceAllString(content, "- ")

	content = strong.ReplaceAllString(content, "$2")
	content = emphasis.ReplaceAllString(content, "$1$2")
	content = strikethrough.ReplaceAllString(content, "$1")

	content = tableRule.ReplaceAllString(content, "")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.Contains(line, "|") {
			line = strings.Trim(strings.TrimSpace(line), "|")
			line = tablePipes.ReplaceAllString(line, " ")
		}
		lines[i] = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
	}
	content = strings.Join(lines, "\n")

	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
