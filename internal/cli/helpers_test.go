package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/alban-g/go-phraser/internal/config"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	configLoader *mockConfigLoader
	rewriter     *mockRewriterFactory
}

func newTestMocks() *testMocks {
	return &testMocks{
		configLoader: &mockConfigLoader{},
		rewriter:     &mockRewriterFactory{},
	}
}

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

// testEnv creates a test Env with all dependencies mocked.
// Returns the Env and the mocks for assertions.
func testEnv(opts ...EnvOption) (*Env, *testMocks) {
	mocks := newTestMocks()

	env := &Env{
		Stdout:          &syncBuffer{},
		Stderr:          &syncBuffer{},
		Getenv:          defaultTestGetenv,
		Now:             fixedTime(time.Date(2026, 8, 14, 9, 15, 0, 0, time.UTC)),
		ConfigLoader:    mocks.configLoader,
		RewriterFactory: mocks.rewriter,
	}
	for _, opt := range opts {
		opt(env)
	}
	return env, mocks
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// fixedTime returns a function that always returns the given time.
func fixedTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// staticEnv returns a getenv function that returns values from the given map.
func staticEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

// defaultTestGetenv returns an API key so commands pass key validation.
func defaultTestGetenv(key string) string {
	if key == EnvOpenAIAPIKey {
		return "test-openai-key"
	}
	return ""
}

// createTestTextFile creates a temporary text file with the given content.
// Returns the file path. The file is automatically cleaned up after the test.
func createTestTextFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test text file: %v", err)
	}
	return path
}

// settingsWithOutputDir returns a ConfigLoader whose settings write into dir.
func settingsWithOutputDir(dir string) *mockConfigLoader {
	return &mockConfigLoader{
		LoadFunc: func() (config.Settings, error) {
			s := config.DefaultSettings()
			s.OutputDir = dir
			return s, nil
		},
	}
}

// execute runs a cobra command with the given args, discarding cobra's own
// output streams.
func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}
