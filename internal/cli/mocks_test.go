package cli

import (
	"context"
	"sync"

	"github.com/alban-g/go-phraser/internal/config"
	"github.com/alban-g/go-phraser/internal/rewrite"
)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func() (config.Settings, error)

	mu        sync.Mutex
	loadCalls int
}

func (m *mockConfigLoader) Load() (config.Settings, error) {
	m.mu.Lock()
	m.loadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return config.DefaultSettings(), nil
}

func (m *mockConfigLoader) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// ---------------------------------------------------------------------------
// Mock RewriterFactory + Rewriter
// ---------------------------------------------------------------------------

type mockRewriterFactory struct {
	NewRewriterFunc func(apiKey string, wordLimit int, opts ...rewrite.Option) (rewrite.Rewriter, error)
	NewRewriterErr  error // Error to return from NewRewriter

	mu               sync.Mutex
	newRewriterCalls []rewriterCall
	mockRewriter     *mockRewriter
}

type rewriterCall struct {
	APIKey    string
	WordLimit int
}

func (m *mockRewriterFactory) NewRewriter(apiKey string, wordLimit int, opts ...rewrite.Option) (rewrite.Rewriter, error) {
	m.mu.Lock()
	m.newRewriterCalls = append(m.newRewriterCalls, rewriterCall{APIKey: apiKey, WordLimit: wordLimit})
	m.mu.Unlock()

	if m.NewRewriterErr != nil {
		return nil, m.NewRewriterErr
	}
	if m.NewRewriterFunc != nil {
		return m.NewRewriterFunc(apiKey, wordLimit, opts...)
	}
	if m.mockRewriter != nil {
		return m.mockRewriter, nil
	}
	return &mockRewriter{}, nil
}

func (m *mockRewriterFactory) NewRewriterCalls() []rewriterCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]rewriterCall, len(m.newRewriterCalls))
	copy(result, m.newRewriterCalls)
	return result
}

type mockRewriter struct {
	RewriteBatchFunc func(ctx context.Context, sentences []string) (map[string][]string, error)
	ValidateKeyFunc  func(ctx context.Context) error

	mu            sync.Mutex
	batchCalls    [][]string
	validateCalls int
}

func (m *mockRewriter) RewriteBatch(ctx context.Context, sentences []string) (map[string][]string, error) {
	m.mu.Lock()
	m.batchCalls = append(m.batchCalls, append([]string(nil), sentences...))
	m.mu.Unlock()

	if m.RewriteBatchFunc != nil {
		return m.RewriteBatchFunc(ctx, sentences)
	}
	// Echo every sentence back unchanged by default.
	out := make(map[string][]string, len(sentences))
	for _, s := range sentences {
		out[s] = []string{s}
	}
	return out, nil
}

func (m *mockRewriter) ValidateKey(ctx context.Context) error {
	m.mu.Lock()
	m.validateCalls++
	m.mu.Unlock()

	if m.ValidateKeyFunc != nil {
		return m.ValidateKeyFunc(ctx)
	}
	return nil
}

func (m *mockRewriter) BatchCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]string, len(m.batchCalls))
	copy(result, m.batchCalls)
	return result
}

func (m *mockRewriter) ValidateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateCalls
}

// ---------------------------------------------------------------------------
// Compile-time interface verification
// ---------------------------------------------------------------------------

var (
	_ ConfigLoader     = (*mockConfigLoader)(nil)
	_ RewriterFactory  = (*mockRewriterFactory)(nil)
	_ rewrite.Rewriter = (*mockRewriter)(nil)
)
