package cli

import (
	"io"
	"os"
	"time"

	"github.com/alban-g/go-phraser/internal/config"
	"github.com/alban-g/go-phraser/internal/rewrite"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Now    func() time.Time

	// Factories for domain objects
	ConfigLoader    ConfigLoader
	RewriterFactory RewriterFactory
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load() (config.Settings, error)
}

// RewriterFactory creates rewriters for the sentence decomposition service.
type RewriterFactory interface {
	NewRewriter(apiKey string, wordLimit int, opts ...rewrite.Option) (rewrite.Rewriter, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) {
		e.Now = fn
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithRewriterFactory sets the rewriter factory.
func WithRewriterFactory(f RewriterFactory) EnvOption {
	return func(e *Env) {
		e.RewriterFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
		Getenv:          os.Getenv,
		Now:             time.Now,
		ConfigLoader:    &defaultConfigLoader{},
		RewriterFactory: &defaultRewriterFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Settings, error) {
	return config.Load()
}

// defaultRewriterFactory implements RewriterFactory using OpenAI.
type defaultRewriterFactory struct{}

func (defaultRewriterFactory) NewRewriter(apiKey string, wordLimit int, opts ...rewrite.Option) (rewrite.Rewriter, error) {
	rw, err := rewrite.NewOpenAIRewriter(apiKey, wordLimit, opts...)
	if err != nil {
		return nil, err
	}
	return rw, nil
}

// Compile-time interface verification.
var (
	_ ConfigLoader    = (*defaultConfigLoader)(nil)
	_ RewriterFactory = (*defaultRewriterFactory)(nil)
)
