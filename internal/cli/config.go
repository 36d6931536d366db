package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alban-g/go-phraser/internal/config"
)

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/go-phraser/config.
Settings can also be overridden via environment variables.

Supported settings:
  word-limit      Maximum words per output sentence (env: PHRASER_WORD_LIMIT)
  mode            Processing mode: rewrite, mechanical (env: PHRASER_MODE)
  tolerance       Words over the limit accepted before repair
  min-overlap     Minimum keyword overlap for accepted rewrites (0-1)
  cache-capacity  Rewrite cache capacity in units
  output-dir      Default directory for output files (env: PHRASER_OUTPUT_DIR)`,
		Example: `  phraser config set word-limit 10
  phraser config set output-dir ~/Documents/phrases
  phraser config get mode
  phraser config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

The value is validated before saving. For output-dir the directory
will be created if it doesn't exist.`,
		Example: `  phraser config set word-limit 10
  phraser config set mode mechanical
  phraser config set output-dir ~/Documents/phrases`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value.

Prints the value to stdout, or nothing if not set.`,
		Example: `  phraser config get word-limit`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration values.

Shows both values from the config file and environment variable overrides.`,
		Example: `  phraser config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

// envFallbacks maps config keys to their environment variables.
var envFallbacks = map[string]string{
	config.KeyWordLimit: config.EnvWordLimit,
	config.KeyMode:      config.EnvMode,
	config.KeyOutputDir: config.EnvOutputDir,
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if !config.KnownKey(key) {
		return fmt.Errorf("unknown config key %q (valid keys: %v)", key, config.Keys())
	}

	// Key-specific validation.
	switch key {
	case config.KeyOutputDir:
		// Expand ~ and validate directory.
		expanded := config.ExpandPath(value)
		if err := config.ValidOutputDir(expanded); err != nil {
			return fmt.Errorf("invalid output-dir: %w", err)
		}
		// Store the expanded path for consistency.
		value = expanded
	default:
		// The remaining keys are settings values; reject anything the
		// loader would later refuse to parse.
		s := config.DefaultSettings()
		if err := applyAndValidate(&s, key, value); err != nil {
			return err
		}
	}

	if err := config.Save(key, value); err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// applyAndValidate parses a single key=value into s and validates the result.
func applyAndValidate(s *config.Settings, key, value string) error {
	if err := config.ApplyValue(s, key, value); err != nil {
		return err
	}
	return s.Validate()
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	if !config.KnownKey(key) {
		return fmt.Errorf("unknown config key %q (valid keys: %v)", key, config.Keys())
	}

	value, err := config.Get(key)
	if err != nil {
		return err
	}

	// Check environment variable fallback.
	if value == "" {
		if envVar := envFallbacks[key]; envVar != "" {
			value = env.Getenv(envVar)
		}
	}

	if value != "" {
		fmt.Fprintln(env.Stdout, value)
	}

	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	// Add environment variable values for completeness.
	for key, envVar := range envFallbacks {
		if _, ok := data[key]; ok {
			continue
		}
		if envVal := env.Getenv(envVar); envVal != "" {
			data[key] = envVal + " (from env)"
		}
	}

	if len(data) == 0 {
		fmt.Fprintln(env.Stdout, "No configuration set.")
		fmt.Fprintln(env.Stdout, "\nAvailable settings:")
		for _, key := range config.Keys() {
			fmt.Fprintf(env.Stdout, "  %s\n", key)
		}
		return nil
	}

	// Stable display order.
	for _, key := range config.Keys() {
		if value, ok := data[key]; ok {
			fmt.Fprintf(env.Stdout, "%s=%s\n", key, value)
		}
	}

	return nil
}
