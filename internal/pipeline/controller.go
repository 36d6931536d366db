// Package pipeline orchestrates sentence decomposition: it classifies each
// segmented unit, dispatches oversized units to the rewriting service in
// adaptively sized batches, validates and repairs the service's output, and
// falls back to mechanical chunking when nothing better succeeds. Every unit
// yields a Result; a run never aborts because one unit failed.
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alban-g/go-phraser/internal/cache"
	"github.com/alban-g/go-phraser/internal/repair"
	"github.com/alban-g/go-phraser/internal/rewrite"
	"github.com/alban-g/go-phraser/internal/segment"
	"github.com/alban-g/go-phraser/internal/textnorm"
	"github.com/alban-g/go-phraser/internal/validate"
)

const (
	// minInputRunes is the shortest normalized input worth processing.
	// Anything below it is an upstream extraction failure.
	minInputRunes = 10

	// DefaultMaxServiceWords is the hard ceiling above which a unit skips
	// the rewriting service entirely (cost/latency guard).
	DefaultMaxServiceWords = 500

	// DefaultTolerance is the permitted overshoot above the word limit
	// before a service candidate is rejected.
	DefaultTolerance = 2

	// Adaptive batch sizing: aim for targetBatchWords of source text per
	// service call, bounded so batches stay useful at both extremes.
	targetBatchWords = 400
	minBatchSize     = 4
	maxBatchSize     = 50
)

// ProgressFunc observes unit completion. done counts terminally classified
// units, total is the number of units in the run.
type ProgressFunc func(done, total int, unitText string)

// Controller is the top-level state machine driving one processing run.
// It is single-threaded: units are classified and batches dispatched one at
// a time, in segmentation order.
type Controller struct {
	wordLimit       int
	mode            segment.Mode
	tolerance       int
	minOverlap      float64
	maxServiceWords int

	rewriter  rewrite.Rewriter
	validator *validate.Validator
	cache     *cache.Cache
	progress  ProgressFunc

	stats      Statistics
	statsReady bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithRewriter sets the rewriting service collaborator.
// Required in rewrite mode.
func WithRewriter(r rewrite.Rewriter) Option {
	return func(c *Controller) {
		c.rewriter = r
	}
}

// WithTolerance allows service candidates to overshoot the word limit by n.
func WithTolerance(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.tolerance = n
		}
	}
}

// WithMinOverlap sets the content-preservation floor for validation.
func WithMinOverlap(ratio float64) Option {
	return func(c *Controller) {
		if ratio >= 0 && ratio <= 1 {
			c.minOverlap = ratio
		}
	}
}

// WithCacheCapacity bounds the rewrite cache.
func WithCacheCapacity(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.cache = cache.New(n)
		}
	}
}

// WithMaxServiceWords sets the ceiling above which units skip the service.
func WithMaxServiceWords(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxServiceWords = n
		}
	}
}

// WithProgress sets a callback invoked after each unit is classified.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Controller) {
		c.progress = fn
	}
}

// New creates a Controller for one or more processing runs.
// Returns ErrNoRewriter if mode is rewrite and no rewriter was provided.
func New(wordLimit int, mode segment.Mode, opts ...Option) (*Controller, error) {
	if wordLimit < 1 {
		wordLimit = 1
	}

	c := &Controller{
		wordLimit:       wordLimit,
		mode:            mode,
		tolerance:       DefaultTolerance,
		minOverlap:      0.10,
		maxServiceWords: DefaultMaxServiceWords,
		cache:           cache.New(cache.DefaultCapacity),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.mode == segment.ModeRewrite && c.rewriter == nil {
		return nil, ErrNoRewriter
	}

	c.validator = validate.New(c.wordLimit,
		validate.WithTolerance(c.tolerance),
		validate.WithMinOverlap(c.minOverlap),
	)
	return c, nil
}

// Process decomposes text into short sentences, one Result per unit, in
// segmentation order. Statistics and the cache are reset at the start of
// each run. Returns ErrEmptyInput for text too short to process; per-unit
// failures never surface as errors.
func (c *Controller) Process(ctx context.Context, text string) ([]Result, error) {
	normalized := textnorm.Normalize(text)
	if n := utf8.RuneCountInString(normalized); n < minInputRunes {
		return nil, fmt.Errorf("%d characters after normalization (minimum %d): %w",
			n, minInputRunes, ErrEmptyInput)
	}

	c.stats = Statistics{}
	c.statsReady = true
	c.cache.Clear()

	var units []segment.Unit
	for u := range segment.Units(normalized, textnorm.ParagraphBreak, c.mode) {
		units = append(units, u)
	}

	results := make([]Result, len(units))
	done := 0
	finish := func(i int, r Result, failed bool) {
		results[i] = r
		c.stats.add(r.Method, failed)
		done++
		if c.progress != nil {
			c.progress(done, len(units), units[i].Text)
		}
	}

	// First pass: classify every unit; queue the batchable ones.
	var pending []int
	for i, u := range units {
		switch {
		case u.WordCount <= c.wordLimit && c.passesDirect(u):
			finish(i, Result{
				Original:  u.Text,
				Output:    []string{u.Text},
				Method:    MethodDirect,
				WordCount: u.WordCount,
				Success:   true,
			}, false)

		case u.WordCount <= c.wordLimit:
			finish(i, c.mechanicalResult(u, "not a complete sentence"), false)

		case c.mode == segment.ModeMechanical:
			finish(i, c.mechanicalResult(u, ""), false)

		case u.WordCount > c.maxServiceWords:
			finish(i, c.mechanicalResult(u, fmt.Sprintf(
				"unit of %d words exceeds the %d-word service ceiling",
				u.WordCount, c.maxServiceWords)), false)

		default:
			pending = append(pending, i)
		}
	}

	// Second pass: resolve queued units cache-first, batching the misses.
	if len(pending) > 0 {
		capacity := batchCapacity(meanWordCount(units, pending))

		var batch []int
		for _, i := range pending {
			if cached, ok := c.cache.Get(units[i].Text); ok {
				c.stats.CacheHits++
				finish(i, Result{
					Original:  units[i].Text,
					Output:    cached,
					Method:    MethodServiceRewritten,
					WordCount: units[i].WordCount,
					Success:   true,
					Reason:    "cache hit",
				}, false)
				continue
			}

			batch = append(batch, i)
			if len(batch) >= capacity {
				c.flushBatch(ctx, units, batch, finish)
				batch = nil
			}
		}
		c.flushBatch(ctx, units, batch, finish)
	}

	return results, nil
}

// flushBatch issues one service call for the batch and distributes the
// outcome: validated acceptance, repair, or mechanical fallback per unit.
func (c *Controller) flushBatch(ctx context.Context, units []segment.Unit, batch []int, finish func(int, Result, bool)) {
	if len(batch) == 0 {
		return
	}

	texts := make([]string, len(batch))
	for k, i := range batch {
		texts[k] = units[i].Text
	}

	c.stats.ServiceCalls++
	rewrites, err := c.rewriter.RewriteBatch(ctx, texts)
	if err != nil {
		// No partial credit: the whole batch falls back.
		reason := "service call failed: " + err.Error()
		for _, i := range batch {
			finish(i, c.mechanicalResult(units[i], reason), true)
		}
		return
	}

	for _, i := range batch {
		u := units[i]

		candidates, ok := rewrites[u.Text]
		if !ok || len(candidates) == 0 {
			finish(i, c.mechanicalResult(u, "service returned no result"), true)
			continue
		}

		verdict := c.validator.Validate(u.Text, candidates)
		switch {
		case verdict.OK:
			c.cache.Put(u.Text, candidates)
			finish(i, Result{
				Original:  u.Text,
				Output:    candidates,
				Method:    MethodServiceRewritten,
				WordCount: u.WordCount,
				Success:   true,
			}, false)

		case verdict.Failed == validate.CheckWordLimit:
			// The only locally repairable rejection.
			repaired := repair.Overlimit(candidates, c.wordLimit)
			second := c.validator.Validate(u.Text, repaired)
			if second.OK {
				c.cache.Put(u.Text, repaired)
				finish(i, Result{
					Original:  u.Text,
					Output:    repaired,
					Method:    MethodServiceRepaired,
					WordCount: u.WordCount,
					Success:   true,
					Reason:    verdict.Reason,
				}, false)
			} else {
				finish(i, c.mechanicalResult(u, "repair failed: "+second.Reason), true)
			}

		default:
			finish(i, c.mechanicalResult(u, verdict.Reason), true)
		}
	}
}

// mechanicalResult chunks a unit into fixed word windows. Chunking is total,
// so mechanical results always succeed.
func (c *Controller) mechanicalResult(u segment.Unit, reason string) Result {
	return Result{
		Original:  u.Text,
		Output:    repair.Chunk(u.Text, c.wordLimit),
		Method:    MethodMechanical,
		WordCount: u.WordCount,
		Success:   true,
		Reason:    reason,
	}
}

// Stats returns a snapshot of the run counters. ok is false before the
// first run has started.
func (c *Controller) Stats() (Statistics, bool) {
	if !c.statsReady {
		return Statistics{}, false
	}
	return c.stats, true
}

// CacheStats reports rewrite-cache effectiveness for the run summary.
func (c *Controller) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// passesDirect gates direct pass-through. In mechanical mode, fragments that
// do not look like sentences are chunked instead of passed through.
func (c *Controller) passesDirect(u segment.Unit) bool {
	if c.mode != segment.ModeMechanical {
		return true
	}
	return looksLikeSentence(u.Text, u.WordCount)
}

// terminalPunct matches sentence-final punctuation, optionally followed by a
// closing quote.
var terminalPunct = regexp.MustCompile(`[.!?…]"?$`)

// conjugatedVerbs lists frequent conjugated forms of common French verbs
// (être, avoir, aller, faire, pouvoir, vouloir, devoir, venir, dire, voir,
// prendre, mettre, savoir, croire, penser, and a few -er regulars). A fragment
// carrying none of them is unlikely to be a complete clause.
var conjugatedVerbs = map[string]bool{
	"suis": true, "es": true, "est": true, "sommes": true, "êtes": true, "sont": true,
	"étais": true, "était": true, "étions": true, "étiez": true, "étaient": true,
	"serai": true, "sera": true, "seront": true,
	"ai": true, "as": true, "a": true, "avons": true, "avez": true, "ont": true,
	"vais": true, "vas": true, "va": true, "allons": true, "allez": true, "vont": true,
	"fais": true, "fait": true, "faisons": true, "faites": true, "font": true,
	"peux": true, "peut": true, "pouvons": true, "pouvez": true, "peuvent": true,
	"veux": true, "veut": true, "voulons": true, "voulez": true, "veulent": true,
	"dois": true, "doit": true, "devons": true, "devez": true, "doivent": true,
	"viens": true, "vient": true, "venons": true, "venez": true, "viennent": true,
	"dis": true, "dit": true, "disons": true, "dites": true, "disent": true,
	"vois": true, "voit": true, "voyons": true, "voyez": true, "voient": true,
	"prends": true, "prend": true, "prenons": true, "prenez": true, "prennent": true,
	"mets": true, "met": true, "mettons": true, "mettez": true, "mettent": true,
	"sais": true, "sait": true, "savons": true, "savez": true, "savent": true,
	"crois": true, "croit": true, "croyons": true, "croyez": true, "croient": true,
	"pense": true, "penses": true, "pensons": true, "pensez": true, "pensent": true,
	"aime": true, "aimes": true, "aimons": true, "aimez": true, "aiment": true,
	"regarde": true, "regardes": true, "regardons": true, "regardez": true, "regardent": true,
	"joue": true, "joues": true, "jouons": true, "jouez": true, "jouent": true,
	"vit": true, "vis": true, "vivons": true, "vivent": true,
	"sent": true, "sens": true, "sentons": true, "sentez": true, "sentent": true,
}

// looksLikeSentence reports whether a short fragment reads as a complete
// French sentence: at least two words, terminal punctuation, and a common
// conjugated verb. Page numbers and heading debris fail all three.
func looksLikeSentence(text string, wordCount int) bool {
	text = strings.TrimSpace(text)
	if wordCount < 2 || !strings.ContainsFunc(text, unicode.IsLetter) {
		return false
	}
	if !terminalPunct.MatchString(text) {
		return false
	}
	return containsConjugatedVerb(text)
}

// containsConjugatedVerb scans the fragment's letter runs for a known verb
// form. Splitting on non-letters makes elisions like "s'est" expose "est".
func containsConjugatedVerb(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if conjugatedVerbs[w] {
			return true
		}
	}
	return false
}

// batchCapacity sizes batches inversely to unit complexity: simple units in
// larger batches, complex units in smaller ones.
func batchCapacity(meanWords float64) int {
	if meanWords < 1 {
		meanWords = 1
	}
	return max(minBatchSize, min(maxBatchSize, int(targetBatchWords/meanWords)))
}

// meanWordCount averages the word counts of the queued units.
func meanWordCount(units []segment.Unit, queued []int) float64 {
	if len(queued) == 0 {
		return 0
	}
	total := 0
	for _, i := range queued {
		total += units[i].WordCount
	}
	return float64(total) / float64(len(queued))
}
