// Package main provides the semarch binary entry point.
// Semarch checks architecture rules against the type hierarchy of a Java
// or TypeScript code base: every rule collects the members a type declares or inherits
// and tests them with composable predicates.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/semarch/config"
	"github.com/c360studio/semarch/report"

	// Register source parsers via init()
	_ "github.com/c360studio/semarch/processor/ast/java"
	_ "github.com/c360studio/semarch/processor/ast/ts"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semarch"
)

// errViolations signals a completed check that found violations.
var errViolations = errors.New("architecture rules violated")

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		if !errors.Is(err, errViolations) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	repoPath   string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Architecture rule checker for Java type hierarchies",
		Long: `Semarch parses a Java source tree, links every class and interface
into a type hierarchy and checks architecture rules against it.

A rule selects types, collects one category of members (fields, methods or
constructors) across each type's full supertype closure and flags members
that match, or fail to match, a predicate built from the rule file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flags.logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.repoPath, "repo", "", "Repository root (default: git root or current directory)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(checkCmd(&flags))
	cmd.AddCommand(closureCmd(&flags))
	cmd.AddCommand(membersCmd(&flags))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func checkCmd(flags *globalFlags) *cobra.Command {
	var (
		rulesPath string
		format    string
		noColor   bool
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check architecture rules",
		Long: `Check loads the repository, evaluates every rule of the rule file and
prints a report. The exit status is 1 when any rule is violated.

With --watch the repository is re-checked whenever a source file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("rules") {
				cfg.Rules.Path = rulesPath
			}
			if cmd.Flags().Changed("format") {
				cfg.Report.Format = format
			}
			if noColor {
				disabled := false
				cfg.Report.Color = &disabled
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			app, err := NewApp(cfg, slog.Default(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if watch {
				return app.Watch(ctx)
			}

			result, err := app.Check(ctx)
			if err != nil {
				return err
			}
			if !result.Passed() {
				return errViolations
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "Rule file (default from config: semarch-rules.yaml)")
	cmd.Flags().StringVar(&format, "format", string(report.FormatText), "Report format (text, json)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-check on source changes")

	return cmd
}

func closureCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "closure <type>",
		Short: "Print a type and all of its supertypes",
		Long: `Closure prints the type followed by every supertype reachable through
superclass and interface links, one qualified name per line, superclass
chain first. A simple name is accepted when it is unique.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppFromFlags(cmd, flags)
			if err != nil {
				return err
			}
			return app.Closure(cmd.Context(), args[0])
		},
	}
}

func membersCmd(flags *globalFlags) *cobra.Command {
	var (
		category string
		named    string
	)

	cmd := &cobra.Command{
		Use:   "members <type>",
		Short: "Print the members a type declares or inherits",
		Long: `Members prints every member of one category declared anywhere in the
type's closure, as Owner.member, in closure order. Overridden members are
listed once per declaring type.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppFromFlags(cmd, flags)
			if err != nil {
				return err
			}
			return app.Members(cmd.Context(), args[0], category, named)
		},
	}

	cmd.Flags().StringVar(&category, "category", "method", "Member category (constructor, field, method)")
	cmd.Flags().StringVar(&named, "named", "", "Only members with this name (glob patterns allowed)")

	return cmd
}

func newAppFromFlags(cmd *cobra.Command, flags *globalFlags) (*App, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return NewApp(cfg, slog.Default(), cmd.OutOrStdout())
}

// loadConfig layers config files and applies the global flags.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.NewLoader(slog.Default()).Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if flags.repoPath != "" {
		// Resolve repo path
		absRepoPath, err := filepath.Abs(flags.repoPath)
		if err != nil {
			return nil, fmt.Errorf("resolve repo path: %w", err)
		}

		// Verify repo path exists
		info, err := os.Stat(absRepoPath)
		if err != nil {
			return nil, fmt.Errorf("stat repo path: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("not a directory: %s", absRepoPath)
		}
		cfg.Source.Root = absRepoPath
	}

	slog.Debug("Configuration loaded",
		"root", cfg.Source.Root,
		"rules", cfg.RulesPath(),
		"format", cfg.Report.Format)

	return cfg, nil
}

func setupLogging(logLevel string) {
	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
