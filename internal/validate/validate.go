// Package validate applies quality checks to candidate rewrites before they
// are accepted. Checks run in order and short-circuit on the first failure:
// non-empty, word-limit compliance, language, content preservation.
package validate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// Check identifies which validation gate a candidate failed.
type Check string

const (
	// CheckNone means the candidate passed every gate.
	CheckNone Check = ""

	// CheckEmpty means no non-blank candidate sentence was produced.
	CheckEmpty Check = "empty"

	// CheckWordLimit means at least one sentence exceeds the word limit
	// plus tolerance. This is the only locally repairable failure.
	CheckWordLimit Check = "word-limit"

	// CheckLanguage means a sentence was reliably detected as a language
	// other than the expected one.
	CheckLanguage Check = "language"

	// CheckContent means too little of the original's key vocabulary
	// survived the rewrite (wholesale topic drift).
	CheckContent Check = "content-preservation"
)

// Details carries diagnostic values computed during validation,
// populated regardless of the verdict.
type Details struct {
	WordCounts []int
	Overlap    float64
}

// Verdict is the structured outcome of validating one candidate list.
type Verdict struct {
	OK      bool
	Failed  Check
	Reason  string
	Details Details
}

// Minimum token length for a word to count as a keyword.
const minKeywordLen = 4

// Validator checks candidate rewrites against the configured limits.
type Validator struct {
	wordLimit  int
	tolerance  int
	minOverlap float64
	language   whatlanggo.Lang
}

// Option configures a Validator.
type Option func(*Validator)

// WithTolerance allows candidates to overshoot the word limit by n words.
func WithTolerance(n int) Option {
	return func(v *Validator) {
		if n >= 0 {
			v.tolerance = n
		}
	}
}

// WithMinOverlap sets the keyword-overlap floor below which a rewrite is
// rejected for content drift. The floor is intentionally low: the check
// exists to catch the service answering about something else entirely,
// not to punish rewording.
func WithMinOverlap(ratio float64) Option {
	return func(v *Validator) {
		if ratio >= 0 && ratio <= 1 {
			v.minOverlap = ratio
		}
	}
}

// WithLanguage sets the expected output language (default French).
func WithLanguage(lang whatlanggo.Lang) Option {
	return func(v *Validator) {
		v.language = lang
	}
}

// New creates a Validator for the given word limit.
func New(wordLimit int, opts ...Option) *Validator {
	v := &Validator{
		wordLimit:  wordLimit,
		tolerance:  0,
		minOverlap: 0.10,
		language:   whatlanggo.Fra,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks candidate sentences against the original unit text.
// Details are populated for diagnostics even when validation fails early.
func (v *Validator) Validate(original string, candidates []string) Verdict {
	var d Details

	nonBlank := make([]string, 0, len(candidates))
	for _, s := range candidates {
		if strings.TrimSpace(s) != "" {
			nonBlank = append(nonBlank, s)
		}
	}
	if len(nonBlank) == 0 {
		return Verdict{Failed: CheckEmpty, Reason: "no rewritten sentences generated", Details: d}
	}

	d.WordCounts = make([]int, len(nonBlank))
	limit := v.wordLimit + v.tolerance
	var offending []string
	for i, s := range nonBlank {
		wc := len(strings.Fields(s))
		d.WordCounts[i] = wc
		if wc > limit {
			offending = append(offending, fmt.Sprintf("sentence %d has %d words (limit %d)", i+1, wc, limit))
		}
	}
	if len(offending) > 0 {
		return Verdict{
			Failed:  CheckWordLimit,
			Reason:  "word count exceeded: " + strings.Join(offending, "; "),
			Details: d,
		}
	}

	for i, s := range nonBlank {
		if !v.matchesLanguage(s) {
			return Verdict{
				Failed:  CheckLanguage,
				Reason:  fmt.Sprintf("sentence %d does not look like %s", i+1, whatlanggo.LangToString(v.language)),
				Details: d,
			}
		}
	}

	d.Overlap = keywordOverlap(original, strings.Join(nonBlank, " "))
	if d.Overlap < v.minOverlap {
		return Verdict{
			Failed:  CheckContent,
			Reason:  fmt.Sprintf("content preservation low (overlap %.0f%%)", d.Overlap*100),
			Details: d,
		}
	}

	return Verdict{OK: true, Details: d}
}

// matchesLanguage is deliberately tolerant: detection on short sentences is
// unreliable, so only a confident mismatch fails the check.
func (v *Validator) matchesLanguage(s string) bool {
	if len(strings.Fields(s)) < 2 {
		return true
	}
	info := whatlanggo.Detect(s)
	if !info.IsReliable() {
		return true
	}
	return info.Lang == v.language
}

// frenchStopwords are grammatical function words excluded from the keyword set.
var frenchStopwords = map[string]bool{
	"le": true, "la": true, "les": true, "un": true, "une": true, "des": true,
	"du": true, "de": true, "et": true, "ou": true, "mais": true, "donc": true,
	"car": true, "qui": true, "que": true, "quoi": true, "dont": true, "où": true,
	"dans": true, "sur": true, "sous": true, "avec": true, "sans": true,
	"pour": true, "par": true, "vers": true, "chez": true, "être": true,
	"avoir": true, "son": true, "sa": true, "ses": true, "mon": true, "ma": true,
	"mes": true, "ton": true, "ta": true, "tes": true, "leur": true,
	"leurs": true, "notre": true, "nos": true, "votre": true, "vos": true,
	"ce": true, "cet": true, "cette": true, "ces": true, "il": true,
	"elle": true, "ils": true, "elles": true, "je": true, "tu": true,
	"nous": true, "vous": true, "me": true, "te": true, "se": true,
	"lui": true, "en": true, "y": true, "ne": true, "pas": true, "plus": true,
	"très": true, "tout": true, "tous": true, "toute": true, "toutes": true,
	"bien": true, "encore": true, "déjà": true, "aussi": true, "ainsi": true,
	"alors": true,
}

// Keywords extracts the content-bearing vocabulary of a text: lowercased
// tokens of at least minKeywordLen runes, function words excluded.
func Keywords(text string) map[string]bool {
	keys := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		w = strings.Trim(w, "'")
		if utf8.RuneCountInString(w) < minKeywordLen || frenchStopwords[w] {
			continue
		}
		keys[w] = true
	}
	return keys
}

// keywordOverlap returns the fraction of the original's keywords that
// survive in the rewritten text. No keywords to preserve counts as full
// preservation.
func keywordOverlap(original, rewritten string) float64 {
	origKeys := Keywords(original)
	if len(origKeys) == 0 {
		return 1.0
	}
	newKeys := Keywords(rewritten)

	shared := 0
	for k := range origKeys {
		if newKeys[k] {
			shared++
		}
	}
	return float64(shared) / float64(len(origKeys))
}
