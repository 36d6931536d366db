// Package repair shortens over-limit sentences locally, without another
// service round-trip. Sentences already within the limit pass through
// untouched; only offenders are split, preferably at natural breakpoints.
package repair

import (
	"regexp"
	"strings"
)

// breakpointRe matches the positions where an over-limit sentence can be cut
// without producing gibberish: clause punctuation and common French
// coordinating words.
var breakpointRe = regexp.MustCompile(`(?i)[,;:]|\s(?:et|mais|ou|car|que|qui|quand|donc|ainsi|avec|dans|pour|par)\s`)

// trailingDigitsRe matches a short page number glued to the end of a sentence,
// an artifact of text extracted from scanned books.
var trailingDigitsRe = regexp.MustCompile(`^\d{1,3}$`)

// Overlimit splits the sentences that exceed limit words and passes the rest
// through unchanged. Trailing sentence punctuation and page-number artifacts
// are stripped before sizing. Blank sentences are dropped.
func Overlimit(sentences []string, limit int) []string {
	if limit < 1 {
		limit = 1
	}

	var repaired []string
	for _, s := range sentences {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}

		s = strings.TrimRight(s, ".!?")
		words := strings.Fields(s)
		if len(words) > 0 && trailingDigitsRe.MatchString(words[len(words)-1]) {
			words = words[:len(words)-1]
		}
		if len(words) == 0 {
			continue
		}

		if len(words) <= limit {
			repaired = append(repaired, strings.Join(words, " "))
			continue
		}

		s = strings.Join(words, " ")
		parts := breakpointRe.Split(s, -1)
		if len(parts) > 1 {
			repaired = append(repaired, packParts(parts, limit)...)
		} else {
			repaired = append(repaired, Chunk(s, limit)...)
		}
	}
	return repaired
}

// packParts greedily bin-packs clause fragments into sentences of at most
// limit words. A single fragment longer than the limit is hard-split.
func packParts(parts []string, limit int) []string {
	var out []string
	var chunk []string

	for _, part := range parts {
		part = strings.TrimRight(strings.TrimSpace(part), ".!?,;:—–-")
		if part == "" {
			continue
		}
		pw := strings.Fields(part)

		if len(chunk)+len(pw) <= limit {
			chunk = append(chunk, pw...)
			continue
		}
		if len(chunk) > 0 {
			out = append(out, strings.Join(chunk, " "))
		}
		if len(pw) > limit {
			out = append(out, Chunk(strings.Join(pw, " "), limit)...)
			chunk = nil
		} else {
			chunk = pw
		}
	}
	if len(chunk) > 0 {
		out = append(out, strings.Join(chunk, " "))
	}
	return out
}

// Chunk splits a sentence into fixed windows of at most limit words,
// ignoring clause structure. This is the fallback of last resort: every
// input yields a compliant output.
func Chunk(sentence string, limit int) []string {
	if limit < 1 {
		limit = 1
	}
	words := strings.Fields(sentence)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+limit-1)/limit)
	for i := 0; i < len(words); i += limit {
		end := min(i+limit, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}
