// Package textnorm cleans extraction artifacts from raw document text before
// segmentation. It is conservative and tuned for French prose: hyphenated
// line-wraps, curly quote variants, and spaced elisions are the artifacts
// most often left behind by PDF extraction and OCR.
package textnorm

import (
	"regexp"
	"strings"
)

// ParagraphBreak marks a true paragraph boundary in normalized text.
// U+001E (record separator) never occurs in natural prose, so the
// segmenter can split on it without ambiguity.
const ParagraphBreak = "\x1e"

var (
	// Two or more newlines (with optional surrounding blanks) is a paragraph break.
	paragraphRe = regexp.MustCompile(`[ \t]*\n[ \t]*\n[\s]*`)

	// Word split across a line-wrap: "philo-\n sophe" -> "philosophe".
	hyphenNewlineRe = regexp.MustCompile(`(\pL)[-‑]\s*\n\s*(\pL)`)

	// Word split by a hyphen and stray spaces: "de- vant" -> "devant".
	hyphenSpaceRe = regexp.MustCompile(`(\pL)[-‑] +(\pL)`)

	// Spaced elision: "l ' été" or "d' accord" -> "l'été", "d'accord".
	elisionRe = regexp.MustCompile(`(\pL) *' +(\pL)`)

	// Remaining single newlines are intra-paragraph wraps.
	newlineRe = regexp.MustCompile(`[\r\n]+`)

	spacesRe = regexp.MustCompile(`[ \t]+`)

	// Blanks around markers, and runs of markers, collapse to one marker.
	markerRe = regexp.MustCompile(` *` + ParagraphBreak + `[ ` + ParagraphBreak + `]*`)
)

var quoteReplacer = strings.NewReplacer(
	"’", "'", // right single quote
	"‘", "'", // left single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"«", `"`, // «
	"»", `"`, // »
	" ", " ", // non-breaking space
	" ", " ", // narrow non-breaking space
)

// Normalize cleans raw extracted text into a flat, token-preserving string.
// True paragraph breaks become ParagraphBreak markers; intra-paragraph
// line-wraps become spaces. Normalize is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = quoteReplacer.Replace(t)

	// Mark paragraph breaks before joining hyphenated line-wraps, so a
	// hyphen that happens to end a paragraph is not glued across it.
	t = paragraphRe.ReplaceAllString(t, ParagraphBreak)

	t = hyphenNewlineRe.ReplaceAllString(t, "$1$2")
	t = hyphenSpaceRe.ReplaceAllString(t, "$1$2")
	t = elisionRe.ReplaceAllString(t, "$1'$2")

	t = newlineRe.ReplaceAllString(t, " ")
	t = spacesRe.ReplaceAllString(t, " ")
	t = markerRe.ReplaceAllString(t, ParagraphBreak)
	t = strings.Trim(t, " "+ParagraphBreak)

	return t
}
