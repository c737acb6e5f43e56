// Package loader turns a source tree into a linked type hierarchy. It walks
// the repository, parses every matching file with the parser registered for
// its extension, and resolves the extracted declarations into a
// hierarchy.Registry.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/semarch/hierarchy"
	"github.com/c360studio/semarch/processor/ast"
)

// DefaultInclude selects Java sources anywhere under the root. TypeScript
// sources are opt-in with **/*.ts.
var DefaultInclude = []string{"**/*.java"}

// DefaultExclude skips common build output directories.
var DefaultExclude = []string{"**/target/**", "**/build/**", "**/out/**", "**/node_modules/**"}

// Config configures a Loader.
type Config struct {
	// Root is the repository root. Paths in results are relative to it.
	Root string

	// Include and Exclude are doublestar patterns matched against
	// slash-separated paths relative to Root. Empty Include means
	// DefaultInclude and nil Exclude means DefaultExclude.
	Include []string
	Exclude []string

	// Registry selects parsers by extension (default: ast.DefaultRegistry)
	Registry *ast.ParserRegistry

	Logger *slog.Logger
}

// Loader parses a repository into a Snapshot.
type Loader struct {
	config   Config
	registry *ast.ParserRegistry
	logger   *slog.Logger
}

// New validates the configuration and creates a Loader.
func New(config Config) (*Loader, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("loader: root is required")
	}
	if len(config.Include) == 0 {
		config.Include = DefaultInclude
	}
	if config.Exclude == nil {
		config.Exclude = DefaultExclude
	}
	for _, pattern := range append(append([]string(nil), config.Include...), config.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("loader: invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}

	registry := config.Registry
	if registry == nil {
		registry = ast.DefaultRegistry
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{config: config, registry: registry, logger: logger}, nil
}

// Matches reports whether a slash-separated path relative to the root is
// selected by the include and exclude patterns.
func (l *Loader) Matches(relPath string) bool {
	if !matchAny(l.config.Include, relPath) {
		return false
	}
	return !matchAny(l.config.Exclude, relPath)
}

// SkipDir reports whether a slash-separated directory relative to the root
// is pruned: hidden directories, and directories an exclude pattern covers at
// every depth. Load and the watcher prune the same directories.
func (l *Loader) SkipDir(relDir string) bool {
	if relDir == "" || relDir == "." {
		return false
	}
	if strings.HasPrefix(path.Base(relDir), ".") {
		return true
	}
	// A name no real file has stands in for "anything below"
	const anyName = "\x00"
	for _, pattern := range l.config.Exclude {
		child, _ := doublestar.Match(pattern, relDir+"/"+anyName)
		grandchild, _ := doublestar.Match(pattern, relDir+"/"+anyName+"/"+anyName)
		if child && grandchild {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Load parses every selected file and links the result. Files that fail to
// parse are logged and skipped; a declaration graph that cannot be linked
// is an error.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	parsers := make(map[string]ast.FileParser)
	results := make(map[string]*ast.ParseResult)

	err := filepath.WalkDir(l.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(l.config.Root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if l.SkipDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if !l.Matches(relPath) {
			return nil
		}

		ext := filepath.Ext(path)
		parser, ok := parsers[ext]
		if !ok {
			if _, registered := l.registry.GetParserName(ext); !registered {
				return nil
			}
			if parser, err = l.registry.CreateParserForExtension(ext, l.config.Root); err != nil {
				return err
			}
			parsers[ext] = parser
		}

		result, err := parser.ParseFile(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			l.logger.Warn("Failed to parse file", "path", relPath, "error", err)
			return nil
		}
		results[relPath] = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", l.config.Root, err)
	}

	snapshot, err := newSnapshot(results)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loaded type hierarchy",
		"root", l.config.Root,
		"files", len(results),
		"types", snapshot.registry.Len())

	return snapshot, nil
}

// Snapshot is an immutable view of a parsed repository.
type Snapshot struct {
	results  map[string]*ast.ParseResult
	registry *hierarchy.Registry
}

func newSnapshot(results map[string]*ast.ParseResult) (*Snapshot, error) {
	paths := make([]string, 0, len(results))
	for path := range results {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	ordered := make([]*ast.ParseResult, len(paths))
	for i, path := range paths {
		ordered[i] = results[path]
	}

	registry, err := Link(ordered)
	if err != nil {
		return nil, err
	}
	return &Snapshot{results: results, registry: registry}, nil
}

// Registry returns the linked type hierarchy.
func (s *Snapshot) Registry() *hierarchy.Registry { return s.registry }

// Files returns the loaded paths, sorted.
func (s *Snapshot) Files() []string {
	paths := make([]string, 0, len(s.results))
	for path := range s.results {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Result returns the parse result for a loaded path.
func (s *Snapshot) Result(path string) (*ast.ParseResult, bool) {
	r, ok := s.results[path]
	return r, ok
}

// Apply returns a new snapshot with watch events folded in, in order.
// Events carrying an error are skipped; when nothing changes s itself is
// returned. Intermediate states are never linked, so a batch may pass
// through a broken hierarchy as long as it ends in a valid one.
func (s *Snapshot) Apply(events ...ast.WatchEvent) (*Snapshot, error) {
	results := make(map[string]*ast.ParseResult, len(s.results)+len(events))
	for path, r := range s.results {
		results[path] = r
	}

	changed := false
	for _, event := range events {
		if event.Error != nil {
			continue
		}
		switch event.Operation {
		case ast.OpDelete:
			delete(results, event.Path)
		case ast.OpCreate, ast.OpModify:
			if event.Result == nil {
				return nil, fmt.Errorf("apply %s %s: missing parse result", event.Operation, event.Path)
			}
			results[event.Path] = event.Result
		default:
			return nil, fmt.Errorf("apply %s: unknown operation %q", event.Path, event.Operation)
		}
		changed = true
	}
	if !changed {
		return s, nil
	}

	return newSnapshot(results)
}
