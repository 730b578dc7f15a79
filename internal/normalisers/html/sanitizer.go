package html

import (
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/campus/internal/core/ports/driven"
)

// Ensure Sanitizer implements the interface.
var _ driven.Sanitizer = (*Sanitizer)(nil)

// Sanitizer converts editor HTML to plain text.
type Sanitizer struct{}

// New creates a new HTML sanitizer.
func New() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize strips markup from text. Plain text passes through with
// whitespace normalised. Safe for concurrent use.
func (s *Sanitizer) Sanitize(text string) string {
	return stripHTML(text)
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	templateTag       = regexp.MustCompile(`(?is)<template[^>]*>.*?</template>`)
	embedTags         = regexp.MustCompile(`(?is)<(iframe|object|video|audio)[^>]*>.*?</(iframe|object|video|audio)>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	listItems         = regexp.MustCompile(`(?i)<li(\s[^>]*)?>`)
	tableCells        = regexp.MustCompile(`(?i)</t[dh]>`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article|ul|ol|figure|figcaption)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|tr|blockquote|pre|table|section|article|ul|ol|figure|figcaption)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t\x{00A0}]+`)
)

// stripHTML removes HTML tags and extracts readable text content.
func stripHTML(content string) string {
	// Decode first so escaped markup is stripped like any other tag
	content = html.UnescapeString(content)

	// Remove executable and embedded content entirely
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = templateTag.ReplaceAllString(content, "")
	content = embedTags.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	// Editor lists become dash bullets, table cells stay space separated
	content = listItems.ReplaceAllString(content, "\n- ")
	content = tableCells.ReplaceAllString(content, " ")

	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")

	content = allTags.ReplaceAllString(content, "")
	content = multiSpaces.ReplaceAllString(content, " ")

	// Trim each line and remove empty lines
	lines := strings.Split(content, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && line != "-" {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}
