package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alban-g/go-phraser/internal/config"
	"github.com/alban-g/go-phraser/internal/export"
	"github.com/alban-g/go-phraser/internal/format"
	"github.com/alban-g/go-phraser/internal/pipeline"
	"github.com/alban-g/go-phraser/internal/rewrite"
	"github.com/alban-g/go-phraser/internal/segment"
)

// EnvOpenAIAPIKey is the environment variable holding the OpenAI API key.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// maxJobs bounds concurrent file processing. Each file issues its own
// sequence of batched service calls, so a handful is plenty.
const maxJobs = 4

// supportedFormats lists input extensions the process command accepts.
var supportedFormats = map[string]bool{
	".txt":  true,
	".text": true,
	".md":   true,
}

// supportedFormatsList returns a sorted, comma-separated list for error messages.
func supportedFormatsList() string {
	formats := make([]string, 0, len(supportedFormats))
	for ext := range supportedFormats {
		formats = append(formats, strings.TrimPrefix(ext, "."))
	}
	slices.Sort(formats)
	return strings.Join(formats, ", ")
}

// clampJobs constrains concurrent file count to valid range [1, maxJobs].
func clampJobs(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxJobs {
		return maxJobs
	}
	return n
}

// deriveOutputPath converts a text file path to a CSV output path.
// Example: "chapitre.txt" -> "chapitre.csv"
func deriveOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + ".csv"
}

// deriveLogPath converts a CSV output path to its processing log path.
// Example: "chapitre.csv" -> "chapitre_log.csv"
func deriveLogPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + "_log" + ext
}

// processFlags holds the flag values for one process invocation.
type processFlags struct {
	output       string
	wordLimit    int
	mode         string
	tolerance    int
	minOverlap   float64
	cacheSize    int
	model        string
	jobs         int
	showOriginal bool
}

// ProcessCmd creates the process command.
// The env parameter provides injectable dependencies for testing.
func ProcessCmd(env *Env) *cobra.Command {
	var flags processFlags

	cmd := &cobra.Command{
		Use:   "process <text-file>...",
		Short: "Decompose long prose into short sentences",
		Long: `Decompose French prose into sentences at or under the word limit.

Each input file is normalized, segmented into units, and every unit over
the limit is rewritten by the OpenAI service. Rewrites that fail validation
are repaired locally; units the service cannot handle fall back to
mechanical chunking, so every input always produces output.

Results are written as a CSV sheet next to each input, with a companion
_log.csv describing every unit that did not pass through directly.

Use --mode mechanical to split without any service calls (no API key needed).

Supported formats: md, text, txt`,
		Example: `  phraser process chapitre.txt
  phraser process chapitre.txt -o phrases.csv -w 10
  phraser process chapitre.txt --mode mechanical
  phraser process livre/*.txt --jobs 4 --show-original`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, env, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file path (default: <input>.csv, single input only)")
	cmd.Flags().IntVarP(&flags.wordLimit, "word-limit", "w", config.DefaultWordLimit, "Maximum words per output sentence")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "Processing mode: rewrite, mechanical (default: from config)")
	cmd.Flags().IntVar(&flags.tolerance, "tolerance", config.DefaultTolerance, "Words over the limit accepted before repair")
	cmd.Flags().Float64Var(&flags.minOverlap, "min-overlap", config.DefaultMinOverlap, "Minimum keyword overlap for accepted rewrites (0-1)")
	cmd.Flags().IntVar(&flags.cacheSize, "cache-size", config.DefaultCacheCapacity, "Rewrite cache capacity in units")
	cmd.Flags().StringVar(&flags.model, "model", "", "OpenAI model override")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 1, "Max files processed concurrently (1-4)")
	cmd.Flags().BoolVar(&flags.showOriginal, "show-original", false, "Include source unit and method columns in the CSV")

	return cmd
}

// runProcess executes the decomposition pipeline over the input files.
// Validation order: files exist -> format -> config -> output -> mode -> API key
func runProcess(cmd *cobra.Command, env *Env, inputs []string, flags processFlags) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	// 1. Every input exists and has a supported format.
	for _, inputPath := range inputs {
		if _, err := os.Stat(inputPath); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrFileNotFound, inputPath)
			}
			return fmt.Errorf("cannot access input file: %w", err)
		}
		ext := strings.ToLower(filepath.Ext(inputPath))
		if !supportedFormats[ext] {
			return fmt.Errorf("unsupported format %q (supported: %s): %w",
				ext, supportedFormatsList(), ErrUnsupportedFormat)
		}
	}

	// 2. Explicit output only makes sense for a single input.
	if flags.output != "" && len(inputs) > 1 {
		return fmt.Errorf("--output cannot be used with multiple input files")
	}

	// 3. Load config; flags explicitly set on the command line win.
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.DefaultSettings()
	}
	settings := mergeSettings(cmd, cfg, flags)
	if err := settings.Validate(); err != nil {
		return err
	}

	// 4. API key (rewrite mode only; mechanical mode never calls the service).
	var rewriter rewrite.Rewriter
	if settings.Mode == segment.ModeRewrite {
		apiKey := env.Getenv(EnvOpenAIAPIKey)
		if apiKey == "" {
			return fmt.Errorf("%w (set it with: export %s=sk-...)", ErrAPIKeyMissing, EnvOpenAIAPIKey)
		}

		var rwOpts []rewrite.Option
		if flags.model != "" {
			rwOpts = append(rwOpts, rewrite.WithModel(flags.model))
		}
		rewriter, err = env.RewriterFactory.NewRewriter(apiKey, settings.WordLimit, rwOpts...)
		if err != nil {
			return err
		}

		// Preflight the key before reading any file, so a bad key fails in
		// one cheap request instead of mid-run.
		if v, ok := rewriter.(interface{ ValidateKey(context.Context) error }); ok {
			if err := v.ValidateKey(ctx); err != nil {
				return err
			}
		}
	}

	// === PROCESSING ===

	jobs := clampJobs(flags.jobs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for _, inputPath := range inputs {
		g.Go(func() error {
			return processFile(gctx, env, inputPath, rewriter, settings, flags, len(inputs) == 1)
		})
	}
	return g.Wait()
}

// mergeSettings layers explicitly set flags over loaded config values.
func mergeSettings(cmd *cobra.Command, cfg config.Settings, flags processFlags) config.Settings {
	s := cfg
	set := cmd.Flags().Changed

	if set("word-limit") {
		s.WordLimit = flags.wordLimit
	}
	if set("mode") || flags.mode != "" {
		if mode, err := segment.ParseMode(flags.mode); err == nil {
			s.Mode = mode
		} else {
			s.Mode = segment.Mode(flags.mode) // Validate() reports it
		}
	}
	if set("tolerance") {
		s.Tolerance = flags.tolerance
	}
	if set("min-overlap") {
		s.MinOverlap = flags.minOverlap
	}
	if set("cache-size") {
		s.CacheCapacity = flags.cacheSize
	}
	return s
}

// processFile runs one input file through the pipeline and writes its
// sentence sheet and processing log.
func processFile(ctx context.Context, env *Env, inputPath string, rewriter rewrite.Rewriter, settings config.Settings, flags processFlags, single bool) error {
	data, err := os.ReadFile(inputPath) // #nosec G304 -- user-specified input file
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", inputPath, err)
	}

	// Resolve output paths before processing so collisions fail early.
	defaultOutput := deriveOutputPath(filepath.Base(inputPath))
	outputPath := config.ResolveOutputPath(flags.output, settings.OutputDir, defaultOutput)
	logPath := deriveLogPath(outputPath)

	opts := []pipeline.Option{
		pipeline.WithTolerance(settings.Tolerance),
		pipeline.WithMinOverlap(settings.MinOverlap),
		pipeline.WithCacheCapacity(settings.CacheCapacity),
	}
	if rewriter != nil {
		opts = append(opts, pipeline.WithRewriter(rewriter))
	}
	// Progress lines would interleave across concurrent files.
	if single {
		opts = append(opts, pipeline.WithProgress(func(done, total int, _ string) {
			fmt.Fprintf(env.Stderr, "\r  Processing unit %d/%d...", done, total)
			if done == total {
				fmt.Fprintln(env.Stderr)
			}
		}))
	}

	ctrl, err := pipeline.New(settings.WordLimit, settings.Mode, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Processing %s...\n", inputPath)
	start := env.Now()

	results, err := ctrl.Process(ctx, string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}

	if err := writeResultFile(outputPath, func(f *os.File) error {
		return export.WriteCSV(f, export.Rows(results, flags.showOriginal), flags.showOriginal)
	}); err != nil {
		return err
	}

	if entries := export.Log(results); len(entries) > 0 {
		if err := writeResultFile(logPath, func(f *os.File) error {
			return export.WriteLogCSV(f, entries)
		}); err != nil {
			return err
		}
	}

	stats, _ := ctrl.Stats()
	printSummary(env, inputPath, outputPath, export.Summarize(results, stats, env.Now().Sub(start)))
	return nil
}

// writeResultFile creates path exclusively and writes via fn.
// O_EXCL atomically checks existence and creates the file.
func writeResultFile(path string, fn func(*os.File) error) error {
	// #nosec G302 G304 -- user-specified output file with standard permissions
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrOutputExists)
		}
		return fmt.Errorf("cannot create output file: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		return fn(f)
	}()

	if writeErr != nil {
		// Remove the partial file so a rerun is not blocked by O_EXCL.
		_ = os.Remove(path)
		return writeErr
	}
	return nil
}

// printSummary reports one file's run to stderr.
func printSummary(env *Env, inputPath, outputPath string, s export.Summary) {
	fmt.Fprintf(env.Stderr, "Done: %s -> %s\n", inputPath, outputPath)
	fmt.Fprintf(env.Stderr, "  %s -> %s in %s\n",
		format.Count(s.TotalUnits, "unit"),
		format.Count(s.OutputSentences, "sentence"),
		format.Elapsed(s.Elapsed))
	fmt.Fprintf(env.Stderr, "  direct: %d, rewritten: %d, repaired: %d, mechanical: %d (success %s)\n",
		s.Direct, s.ServiceRewritten, s.ServiceRepaired, s.Mechanical,
		format.Percent(s.TotalUnits-s.Failures, s.TotalUnits))
	if s.ServiceCalls > 0 || s.CacheHits > 0 {
		fmt.Fprintf(env.Stderr, "  service calls: %d, cache hits: %d\n", s.ServiceCalls, s.CacheHits)
	}
	if s.Failures > 0 {
		fmt.Fprintf(env.Stderr, "  failures: %d (see %s)\n", s.Failures, deriveLogPath(outputPath))
	}
}
