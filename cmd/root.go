// Package cmd provides the CLI commands for tagver.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tagver/tagver/internal/adapters/output"
	"github.com/tagver/tagver/internal/domain"
	"github.com/tagver/tagver/internal/infrastructure/config"
)

// Logger defines the logging interface used by the command.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// VersionWriter serializes a resolved record to an output destination.
type VersionWriter interface {
	Write(dict domain.VersionDict, format output.Format) error
}

// Dependencies holds all injectable dependencies for the command.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance.
	LoggerFactory func(verbose bool) (Logger, error)

	// ConfigLoader loads the resolution configuration for a directory.
	ConfigLoader func(dir string, overrides config.Overrides) (*domain.Config, error)

	// ResolverFactory creates the strategy cascade for the given config.
	ResolverFactory func(cfg domain.Config, log Logger) domain.Resolver

	// WriterFactory creates a VersionWriter over the given destination.
	WriterFactory func(out io.Writer) VersionWriter

	// Stdout is the writer for standard output (the resolved version).
	Stdout io.Writer

	// Stderr is the writer for standard error (warnings/errors).
	Stderr io.Writer
}

// Command-line flags.
var (
	styleFlag           string
	tagPrefixFlag       string
	parentdirPrefixFlag string
	formatFlag          string
	outputPathFlag      string
	verbose             bool
)

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for tagver.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency
// injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tagver [path]",
		Short: "Derive a canonical version string from repository tags",
		Long: `tagver derives a canonical version string for a source tree without a
centrally maintained version file.

It tries several strategies in order: export-subst keywords expanded by
git archive, live inspection with git describe, frozen release metadata
(PKG-INFO), and finally the name of a parent directory such as
"project-1.2.3". The first confident result wins and is printed to
stdout.

Examples:
  # Resolve the version of the current directory
  tagver

  # Resolve a specific checkout in git-describe style
  tagver /path/to/repo --style git-describe

  # Emit the full record as JSON
  tagver --format json

  # Freeze the result into a dependency-free Go source file
  tagver --format go --output internal/version/version_gen.go`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args, deps)
		},
	}

	rootCmd.Flags().StringVarP(&styleFlag, "style", "s", "",
		"Render style (default pep440; see docs for the full list)")
	rootCmd.Flags().StringVarP(&tagPrefixFlag, "tag-prefix", "t", "",
		"Tag prefix stripped from matching tags (default \"v\")")
	rootCmd.Flags().StringVarP(&parentdirPrefixFlag, "parentdir-prefix", "p", "",
		"Prefix for the parent-directory fallback (default: auto-derive)")
	rootCmd.Flags().StringVarP(&formatFlag, "format", "f", string(output.FormatVersion),
		"Output format: version, json or go")
	rootCmd.Flags().StringVarP(&outputPathFlag, "output", "o", "",
		"Write the result to a file instead of stdout")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose/debug logging")

	return rootCmd
}

// runResolve executes version resolution with injected dependencies.
func runResolve(cmd *cobra.Command, args []string, deps *Dependencies) error {
	if deps == nil {
		return errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	format, err := output.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	log, err := deps.LoggerFactory(verbose)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}

	cfg, err := deps.ConfigLoader(dir, config.Overrides{
		Style:           styleFlag,
		TagPrefix:       tagPrefixFlag,
		ParentdirPrefix: parentdirPrefixFlag,
		Verbose:         verbose,
	})
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return fmt.Errorf("configuration error: %w", err)
	}

	log.Info(ctx, "starting version resolution", map[string]interface{}{
		"dir":        dir,
		"style":      string(cfg.Style),
		"tag_prefix": cfg.TagPrefix,
	})

	resolver := deps.ResolverFactory(*cfg, log)
	dict, err := resolver.Resolve(ctx, dir)
	if err != nil {
		log.Error(ctx, "version resolution failed", err, nil)
		return err
	}

	out := deps.Stdout
	if out == nil {
		out = os.Stdout
	}
	if outputPathFlag != "" {
		f, err := os.Create(outputPathFlag)
		if err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := deps.WriterFactory(out).Write(dict, format); err != nil {
		log.Error(ctx, "failed to write output", err, nil)
		return fmt.Errorf("output error: %w", err)
	}

	// The record is always written, but a resolution error still fails the
	// command so CI pipelines can gate on it.
	if dict.Error != nil {
		return fmt.Errorf("version resolution failed: %s", *dict.Error)
	}

	log.Info(ctx, "version resolution complete", map[string]interface{}{
		"version": dict.Version,
	})
	return nil
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
