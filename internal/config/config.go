// Package config loads and persists user settings from a key=value file
// under the XDG config directory, with environment variable fallbacks.
// Settings are resolved once per run and treated as immutable afterwards.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/alban-g/go-phraser/internal/segment"
)

// Config keys.
const (
	KeyWordLimit     = "word-limit"
	KeyMode          = "mode"
	KeyTolerance     = "tolerance"
	KeyMinOverlap    = "min-overlap"
	KeyCacheCapacity = "cache-capacity"
	KeyOutputDir     = "output-dir"
)

// knownKeys lists every key the config file may contain.
var knownKeys = []string{
	KeyWordLimit, KeyMode, KeyTolerance,
	KeyMinOverlap, KeyCacheCapacity, KeyOutputDir,
}

// Environment variable fallbacks.
const (
	EnvWordLimit = "PHRASER_WORD_LIMIT"
	EnvMode      = "PHRASER_MODE"
	EnvOutputDir = "PHRASER_OUTPUT_DIR"
)

// Defaults.
const (
	DefaultWordLimit     = 8
	DefaultTolerance     = 2
	DefaultMinOverlap    = 0.10
	DefaultCacheCapacity = 500
)

// Settings holds the resolved configuration for one run.
type Settings struct {
	WordLimit     int
	Mode          segment.Mode
	Tolerance     int
	MinOverlap    float64
	CacheCapacity int
	OutputDir     string
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		WordLimit:     DefaultWordLimit,
		Mode:          segment.ModeRewrite,
		Tolerance:     DefaultTolerance,
		MinOverlap:    DefaultMinOverlap,
		CacheCapacity: DefaultCacheCapacity,
	}
}

// Validate checks the settings for values no run could work with.
func (s Settings) Validate() error {
	if s.WordLimit < 1 {
		return fmt.Errorf("word-limit must be positive, got %d", s.WordLimit)
	}
	if s.Tolerance < 0 {
		return fmt.Errorf("tolerance cannot be negative, got %d", s.Tolerance)
	}
	if s.MinOverlap < 0 || s.MinOverlap > 1 {
		return fmt.Errorf("min-overlap must be in [0, 1], got %v", s.MinOverlap)
	}
	if s.CacheCapacity < 1 {
		return fmt.Errorf("cache-capacity must be positive, got %d", s.CacheCapacity)
	}
	if _, err := segment.ParseMode(string(s.Mode)); err != nil {
		return fmt.Errorf("mode %q: %w", s.Mode, err)
	}
	return nil
}

// KnownKey reports whether key is a valid config file key.
func KnownKey(key string) bool {
	return slices.Contains(knownKeys, key)
}

// Keys returns the valid config keys in display order.
func Keys() []string {
	return slices.Clone(knownKeys)
}

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/go-phraser.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "go-phraser"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "go-phraser"), nil
}

// path returns the full path to the config file.
func path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config"), nil
}

// Load reads the configuration file and environment variables.
// Precedence: config file values, then environment variables, then defaults.
// A missing file is not an error; a malformed value is.
func Load() (Settings, error) {
	s := DefaultSettings()

	p, err := path()
	if err != nil {
		return s, err
	}

	data, err := parseFile(p)
	if err != nil {
		if !os.IsNotExist(err) {
			return s, fmt.Errorf("failed to read config: %w", err)
		}
		data = map[string]string{}
	}

	// Environment variable fallbacks fill keys the file leaves unset.
	fill := func(key, env string) {
		if data[key] == "" {
			if v := os.Getenv(env); v != "" {
				data[key] = v
			}
		}
	}
	fill(KeyWordLimit, EnvWordLimit)
	fill(KeyMode, EnvMode)
	fill(KeyOutputDir, EnvOutputDir)

	if err := applyValues(&s, data); err != nil {
		return s, err
	}
	return s, s.Validate()
}

// applyValues overwrites settings with parsed values from data.
func applyValues(s *Settings, data map[string]string) error {
	if v := data[KeyWordLimit]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", KeyWordLimit, v, err)
		}
		s.WordLimit = n
	}
	if v := data[KeyMode]; v != "" {
		mode, err := segment.ParseMode(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", KeyMode, v, err)
		}
		s.Mode = mode
	}
	if v := data[KeyTolerance]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", KeyTolerance, v, err)
		}
		s.Tolerance = n
	}
	if v := data[KeyMinOverlap]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", KeyMinOverlap, v, err)
		}
		s.MinOverlap = f
	}
	if v := data[KeyCacheCapacity]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", KeyCacheCapacity, v, err)
		}
		s.CacheCapacity = n
	}
	if v := data[KeyOutputDir]; v != "" {
		s.OutputDir = v
	}
	return nil
}

// ApplyValue parses a single key's raw value into s. Unknown keys are
// ignored, matching the loader's tolerance for stale config files.
func ApplyValue(s *Settings, key, value string) error {
	return applyValues(s, map[string]string{key: value})
}

// parseFile reads a key=value config file.
// Format: one key=value per line, # comments, empty lines ignored.
func parseFile(p string) (map[string]string, error) {
	f, err := os.Open(p) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: %q: %w", lineNum, line, ErrInvalidSyntax)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		data[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return data, nil
}

// Save writes a single key=value to the config file.
// Creates the config directory and file if they don't exist.
// Preserves existing key=value pairs but discards comments.
func Save(key, value string) error {
	if key == "" || strings.ContainsAny(key, "=\n") {
		return fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}

	p, err := path()
	if err != nil {
		return err
	}

	// Ensure config directory exists.
	d := filepath.Dir(p)
	if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	// Read existing config (if any).
	existing, _ := parseFile(p)
	if existing == nil {
		existing = make(map[string]string)
	}

	// Update value.
	existing[key] = value

	// Write back.
	return writeFile(p, existing)
}

// writeFile writes the config map to a file.
func writeFile(p string, data map[string]string) error {
	// #nosec G302 G304 -- config file with standard permissions, path from home dir
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for key, value := range data {
		if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	return nil
}

// Get reads a single value from the config file.
// Returns empty string if the key doesn't exist.
func Get(key string) (string, error) {
	p, err := path()
	if err != nil {
		return "", err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	return data[key], nil
}

// List returns all config values as a map.
func List() (map[string]string, error) {
	p, err := path()
	if err != nil {
		return nil, err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	return data, nil
}

// ResolveOutputPath resolves the final output path using the following precedence:
//  1. If output is absolute, use it as-is
//  2. If output is relative and outputDir is set, join them
//  3. If output is empty, use defaultName in outputDir (or cwd if no outputDir)
//
// outputDir can come from config or flag.
// All paths are cleaned using filepath.Clean to normalize separators and remove redundant elements.
func ResolveOutputPath(output, outputDir, defaultName string) string {
	// Case 1: Explicit absolute path - use as-is.
	if output != "" && filepath.IsAbs(output) {
		return filepath.Clean(output)
	}

	// Case 2: Explicit relative path - combine with outputDir if set.
	if output != "" {
		if outputDir != "" {
			return filepath.Clean(filepath.Join(outputDir, output))
		}
		return filepath.Clean(output)
	}

	// Case 3: No output specified - use default name.
	if outputDir != "" {
		return filepath.Clean(filepath.Join(outputDir, defaultName))
	}
	return filepath.Clean(defaultName)
}

// ValidOutputDir checks if a directory path is valid for use as output-dir.
// Returns nil if valid, or an error describing the problem.
func ValidOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}

	// Expand ~ to home directory.
	if strings.HasPrefix(d, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot expand ~: %w", err)
		}
		d = filepath.Join(home, d[2:])
	}

	// Check if path exists.
	info, err := os.Stat(d)
	if err != nil {
		if os.IsNotExist(err) {
			// Directory doesn't exist - try to create it.
			if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user output dir
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	// Check if it's a directory.
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", d)
	}

	// Check if writable by attempting to create a temp file.
	testFile := filepath.Join(d, ".go-phraser-write-test")
	f, err := os.Create(testFile) // #nosec G304 -- path is constructed from validated dir
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(testFile)
		return fmt.Errorf("directory is not writable: %w", err)
	}
	_ = os.Remove(testFile) // Best effort cleanup, ignore error

	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}

// Dir returns the configuration directory path (exported for testing).
func Dir() (string, error) {
	return dir()
}

// ParseFile reads a key=value config file (exported for testing).
func ParseFile(p string) (map[string]string, error) {
	return parseFile(p)
}
