// Package rewrite sends over-limit sentences to a language model and parses
// the shortened sentences it returns. The service sees numbered batches so a
// whole queue of sentences costs a single round-trip.
package rewrite

import "context"

// Rewriter rewrites long French sentences into shorter ones.
type Rewriter interface {
	// RewriteBatch rewrites several sentences in one service call.
	// The result maps each input sentence to its rewritten sentences.
	// A sentence missing from the result produced no usable output;
	// the caller decides how to fall back.
	RewriteBatch(ctx context.Context, sentences []string) (map[string][]string, error)
}

// RewriterFunc adapts a function to the Rewriter interface.
type RewriterFunc func(ctx context.Context, sentences []string) (map[string][]string, error)

// RewriteBatch calls f.
func (f RewriterFunc) RewriteBatch(ctx context.Context, sentences []string) (map[string][]string, error) {
	return f(ctx, sentences)
}
