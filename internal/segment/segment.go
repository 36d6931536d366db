// Package segment splits normalized text into ordered processing units.
//
// In rewrite mode segmentation is coarse: units are whole paragraphs, and
// sentence-level splitting is left to the rewriting service, which has the
// context to do it well. In mechanical mode units are individual sentences,
// detected at terminal punctuation followed by an uppercase or quote-opening
// character.
package segment

import (
	"iter"
	"strings"
	"unicode"
)

// Mode selects the segmentation granularity.
type Mode string

const (
	// ModeRewrite splits at paragraph boundaries only.
	ModeRewrite Mode = "rewrite"

	// ModeMechanical splits paragraphs further into sentences.
	ModeMechanical Mode = "mechanical"
)

// ParseMode validates and normalizes a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRewrite:
		return ModeRewrite, nil
	case ModeMechanical:
		return ModeMechanical, nil
	default:
		return "", ErrUnknownMode
	}
}

// Unit is an immutable span of source text between segmentation boundaries.
type Unit struct {
	Text      string
	WordCount int
}

// New creates a Unit, deriving the whitespace-delimited word count.
func New(text string) Unit {
	return Unit{Text: text, WordCount: len(strings.Fields(text))}
}

// Units returns the ordered units of normalized text, where paragraphBreak
// is the boundary marker produced by normalization. The sequence is lazy,
// finite, and single-use: it is meant to be consumed exactly once per run.
// Empty and whitespace-only segments are dropped.
func Units(normalized string, paragraphBreak string, mode Mode) iter.Seq[Unit] {
	return func(yield func(Unit) bool) {
		for seg := range strings.SplitSeq(normalized, paragraphBreak) {
			seg = collapseSpaces(seg)
			if seg == "" {
				continue
			}

			if mode == ModeRewrite {
				if !yield(New(seg)) {
					return
				}
				continue
			}

			for _, sentence := range splitSentences(seg) {
				if !yield(New(sentence)) {
					return
				}
			}
		}
	}
}

// collapseSpaces trims a segment and collapses internal whitespace runs.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitSentences splits a paragraph at sentence-ending punctuation followed
// by whitespace and an uppercase or quote-opening character. unicode.IsUpper
// covers accented uppercase letters (À, É, Œ, ...).
func splitSentences(seg string) []string {
	var sentences []string
	runes := []rune(seg)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}

		// Absorb a closing quote glued to the terminator.
		end := i + 1
		if end < len(runes) && isClosingQuote(runes[end]) {
			end++
		}

		// A boundary needs whitespace then an uppercase or opening quote.
		j := end
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == end || j >= len(runes) {
			continue
		}
		if !unicode.IsUpper(runes[j]) && !isOpeningQuote(runes[j]) {
			continue
		}

		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func isClosingQuote(r rune) bool {
	switch r {
	case '"', '\'', '»', '”':
		return true
	}
	return false
}

func isOpeningQuote(r rune) bool {
	switch r {
	case '"', '«', '“':
		return true
	}
	return false
}
