package rewrite

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alban-g/go-phraser/internal/apierr"
)

// Default model and retry configuration.
const (
	defaultModel = "gpt-4o-mini"

	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second

	// Output budget per batched sentence, with floor and ceiling.
	// A rewrite of one sentence rarely needs more than 60 tokens.
	tokensPerSentence = 60
	minOutputTokens   = 200
	maxOutputTokens   = 1800
)

// chatCompleter is an internal interface for OpenAI chat completions.
// *openai.Client implements this implicitly.
// This allows injecting mocks in tests.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Rewriter      = (*OpenAIRewriter)(nil)
	_ chatCompleter = (*openai.Client)(nil)
)

// OpenAIRewriter rewrites sentences using OpenAI's chat completion API.
// It supports automatic retries with exponential backoff for transient errors.
type OpenAIRewriter struct {
	client     chatCompleter
	model      string
	wordLimit  int
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option configures an OpenAIRewriter.
type Option func(*OpenAIRewriter)

// WithModel sets the chat model used for rewriting.
func WithModel(model string) Option {
	return func(r *OpenAIRewriter) {
		if model != "" {
			r.model = model
		}
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(r *OpenAIRewriter) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) Option {
	return func(r *OpenAIRewriter) {
		if base > 0 {
			r.baseDelay = base
		}
		if max > 0 {
			r.maxDelay = max
		}
	}
}

// WithChatCompleter sets a custom chat completion client (for testing).
func WithChatCompleter(c chatCompleter) Option {
	return func(r *OpenAIRewriter) {
		r.client = c
	}
}

// NewOpenAIRewriter creates a rewriter targeting wordLimit words per sentence.
// apiKey is required. Use options to customize model and retry behavior.
func NewOpenAIRewriter(apiKey string, wordLimit int, opts ...Option) (*OpenAIRewriter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrEmptyAPIKey
	}
	if wordLimit < 1 {
		wordLimit = 1
	}

	r := &OpenAIRewriter{
		model:      defaultModel,
		wordLimit:  wordLimit,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	// Create the real client after options are applied (tests inject their own).
	if r.client == nil {
		r.client = openai.NewClient(apiKey)
	}
	return r, nil
}

// ValidateKey performs a minimal chat completion to verify the API key works
// before a long run starts burning through a book.
func (r *OpenAIRewriter) ValidateKey(ctx context.Context) error {
	req := openai.ChatCompletionRequest{
		Model:     r.model,
		MaxTokens: 5,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a helpful assistant."},
			{Role: openai.ChatMessageRoleUser, Content: "Bonjour"},
		},
	}
	_, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return apierr.Classify(err)
	}
	return nil
}

// Rewrite rewrites a single sentence. It delegates to RewriteBatch; a
// sentence the service produced nothing for maps to itself.
func (r *OpenAIRewriter) Rewrite(ctx context.Context, sentence string) ([]string, error) {
	results, err := r.RewriteBatch(ctx, []string{sentence})
	if err != nil {
		return nil, err
	}
	if out, ok := results[sentence]; ok {
		return out, nil
	}
	return []string{sentence}, nil
}

// RewriteBatch sends the sentences as one numbered prompt and maps each
// input sentence to the rewritten sentences the service returned for it.
// Transient errors (rate limits, timeouts, server errors) are retried with
// exponential backoff.
func (r *OpenAIRewriter) RewriteBatch(ctx context.Context, sentences []string) (map[string][]string, error) {
	// The result maps by sentence text, so duplicates would share one entry
	// and double its lines. Prompt each distinct sentence once.
	sentences = dedupe(sentences)
	if len(sentences) == 0 {
		return map[string][]string{}, nil
	}

	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0.3, // Lower temperature for more consistent output
		MaxTokens:   outputBudget(len(sentences)),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: batchPrompt(sentences)},
		},
	}

	cfg := apierr.RetryConfig{
		MaxRetries: r.maxRetries,
		BaseDelay:  r.baseDelay,
		MaxDelay:   r.maxDelay,
	}

	content, err := apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		resp, err := r.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", apierr.Classify(err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrNoResponse
		}
		return resp.Choices[0].Message.Content, nil
	}, apierr.IsRetryable)
	if err != nil {
		return nil, fmt.Errorf("rewrite batch of %d: %w", len(sentences), err)
	}

	return parseNumberedResponse(content, sentences), nil
}

// systemPrompt instructs the model on the rewriting task and word limit.
func (r *OpenAIRewriter) systemPrompt() string {
	return fmt.Sprintf(`You are a French language expert specializing in sentence simplification.
Your task is to rewrite long French sentences into shorter, grammatically correct sentences while preserving the original meaning and using as many original words as possible.

Rules:
1. Each new sentence must be %d words or fewer
2. Maintain proper French grammar and syntax
3. Preserve the original meaning completely
4. Reuse original words whenever possible
5. Ensure natural, fluent French
6. Keep the input numbering: prefix every output line with the number of the sentence it rewrites
7. One sentence per line
8. Do not add explanations or commentary
9. Keep the same tone and style as the original`, r.wordLimit)
}

// batchPrompt numbers the sentences so response lines can be mapped back to
// their inputs.
func batchPrompt(sentences []string) string {
	var b strings.Builder
	b.WriteString("Rewrite each numbered French sentence into shorter sentences.\n")
	b.WriteString("Prefix every output line with the input number, like \"1) ...\".\n\n")
	for i, s := range sentences {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(") ")
		b.WriteString(s)
		b.WriteByte('\n')
	}
	return b.String()
}

// dedupe drops repeated sentences, keeping first occurrences in order.
func dedupe(sentences []string) []string {
	seen := make(map[string]bool, len(sentences))
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// numberedLineRe matches "n) text", "n. text", "n: text" or "n- text".
var numberedLineRe = regexp.MustCompile(`^(\d+)[:.)\-]\s*(.+)$`)

// parseNumberedResponse maps response lines back to the input sentences by
// their leading number. Lines with no number, an out-of-range number, or no
// content after cleanup are dropped.
func parseNumberedResponse(content string, sentences []string) map[string][]string {
	results := make(map[string][]string)

	for line := range strings.Lines(content) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := numberedLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > len(sentences) {
			continue
		}

		text := strings.TrimRight(strings.TrimSpace(m[2]), ".!?,;:—–-")
		text = strings.Trim(text, `"'`)
		if text == "" {
			continue
		}

		orig := sentences[idx-1]
		results[orig] = append(results[orig], text)
	}

	return results
}

// outputBudget sizes the completion budget to the batch, clamped to keep
// small batches from being truncated and huge ones from overpaying.
func outputBudget(n int) int {
	return max(minOutputTokens, min(maxOutputTokens, n*tokensPerSentence))
}
