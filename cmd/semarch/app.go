package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/c360studio/semarch/config"
	"github.com/c360studio/semarch/hierarchy"
	"github.com/c360studio/semarch/loader"
	"github.com/c360studio/semarch/predicate"
	"github.com/c360studio/semarch/processor/ast"
	"github.com/c360studio/semarch/report"
	"github.com/c360studio/semarch/rules"
)

// App wires configuration, loading, checking and reporting together.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	loader *loader.Loader
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger, out io.Writer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l, err := loader.New(loader.Config{
		Root:    cfg.Source.Root,
		Include: cfg.Source.Include,
		Exclude: cfg.Source.Exclude,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create loader: %w", err)
	}

	return &App{cfg: cfg, logger: logger, out: out, loader: l}, nil
}

func (a *App) reportOptions() (report.Options, error) {
	format, err := report.ParseFormat(a.cfg.Report.Format)
	if err != nil {
		return report.Options{}, err
	}
	return report.Options{Format: format, NoColor: !a.cfg.ColorEnabled()}, nil
}

// Check loads the repository once, evaluates the rule file and writes the
// report.
func (a *App) Check(ctx context.Context) (*rules.Result, error) {
	set, err := rules.LoadFile(a.cfg.RulesPath())
	if err != nil {
		return nil, err
	}
	opts, err := a.reportOptions()
	if err != nil {
		return nil, err
	}

	snapshot, err := a.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}

	return a.checkSnapshot(ctx, snapshot, set, opts)
}

func (a *App) checkSnapshot(ctx context.Context, snapshot *loader.Snapshot, set *rules.RuleSet, opts report.Options) (*rules.Result, error) {
	result, err := rules.NewChecker(set, a.logger).Check(ctx, snapshot.Registry())
	if err != nil {
		return nil, err
	}
	if err := report.Render(a.out, result, set, opts); err != nil {
		return nil, err
	}
	return result, nil
}

// Watch checks once and then re-checks after every batch of source changes
// until ctx is done. Broken intermediate states (a file that does not parse,
// a hierarchy that does not link) are logged and the previous snapshot kept.
func (a *App) Watch(ctx context.Context) error {
	set, err := rules.LoadFile(a.cfg.RulesPath())
	if err != nil {
		return err
	}
	opts, err := a.reportOptions()
	if err != nil {
		return err
	}

	watcher, err := ast.NewWatcher(ast.WatcherConfig{
		RepoRoot:      a.cfg.Source.Root,
		DebounceDelay: a.cfg.Watch.Debounce,
		Filter:        a.loader.Matches,
		SkipDir:       a.loader.SkipDir,
		Logger:        a.logger,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Stop()

	// Watch before the initial load so no change falls in between
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	snapshot, err := a.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load repository: %w", err)
	}

	// Seed hashes so unchanged files are not re-reported
	for _, path := range snapshot.Files() {
		if r, ok := snapshot.Result(path); ok {
			watcher.SetHash(path, r.Hash)
		}
	}

	if _, err := a.checkSnapshot(ctx, snapshot, set, opts); err != nil {
		return err
	}

	events := watcher.Events()
	for {
		var batch []ast.WatchEvent
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			batch = append(batch, event)
		}

		// Collect whatever else is already queued
	drain:
		for {
			select {
			case event, ok := <-events:
				if !ok {
					break drain
				}
				batch = append(batch, event)
			default:
				break drain
			}
		}

		logEvents(batch, a.logger)
		next, err := snapshot.Apply(batch...)
		if err != nil {
			a.logger.Warn("Keeping previous hierarchy", "error", err)
			continue
		}
		if next == snapshot {
			continue
		}
		snapshot = next

		if _, err := a.checkSnapshot(ctx, snapshot, set, opts); err != nil {
			a.logger.Error("Check failed", "error", err)
		}
	}
}

func logEvents(batch []ast.WatchEvent, logger *slog.Logger) {
	for _, event := range batch {
		if event.Error != nil {
			logger.Warn("Failed to parse changed file", "path", event.Path, "error", event.Error)
			continue
		}
		logger.Info("Source changed", "path", event.Path, "op", event.Operation)
	}
}

// Closure prints the closure of a type, one name per line.
func (a *App) Closure(ctx context.Context, name string) error {
	t, err := a.resolveType(ctx, name)
	if err != nil {
		return err
	}
	for _, n := range hierarchy.ClosureOf(t).Names() {
		fmt.Fprintln(a.out, n)
	}
	return nil
}

// Members prints the members of one category collected over a type's
// closure, optionally restricted to a name pattern.
func (a *App) Members(ctx context.Context, name, category, named string) error {
	cat, err := hierarchy.ParseMemberCategory(category)
	if err != nil {
		return err
	}

	filter := predicate.All[*hierarchy.MemberDescriptor]()
	if named != "" {
		if filter, err = hierarchy.MemberNameMatching(named); err != nil {
			return fmt.Errorf("--named: %w", err)
		}
	}

	t, err := a.resolveType(ctx, name)
	if err != nil {
		return err
	}
	for _, m := range hierarchy.Query(t, cat, filter) {
		fmt.Fprintln(a.out, m)
	}
	return nil
}

func (a *App) resolveType(ctx context.Context, name string) (*hierarchy.TypeDescriptor, error) {
	snapshot, err := a.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}
	return snapshot.Registry().Resolve(name)
}
