package ast

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures the file watcher
type WatcherConfig struct {
	// RepoRoot is the root directory to watch
	RepoRoot string

	// DebounceDelay is how long to wait for more changes before processing
	DebounceDelay time.Duration

	// Registry selects a parser by file extension (default: DefaultRegistry)
	Registry *ParserRegistry

	// Filter, if set, decides whether a path relative to RepoRoot is of
	// interest. Files without a registered parser are always ignored.
	Filter func(relPath string) bool

	// SkipDir, if set, decides whether a slash-separated directory relative
	// to RepoRoot is left unwatched. Hidden directories are always skipped.
	SkipDir func(relDir string) bool

	// Logger for logging events
	Logger *slog.Logger
}

// WatchEvent represents a file change event
type WatchEvent struct {
	// Path is the file path relative to repo root
	Path string

	// Operation is the type of change
	Operation WatchOperation

	// Result is the parse result (nil for delete operations)
	Result *ParseResult

	// Error if parsing failed
	Error error
}

// WatchOperation indicates the type of file operation
type WatchOperation string

const (
	OpCreate WatchOperation = "create"
	OpModify WatchOperation = "modify"
	OpDelete WatchOperation = "delete"
)

// Watcher watches source files and emits parse results for changed files.
type Watcher struct {
	config   WatcherConfig
	registry *ParserRegistry
	parsers  map[string]FileParser // extension → parser, owned by processEvents
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// Debouncing: collect changes before processing
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op // path → most recent operation

	// State tracking for change detection
	hashMu sync.RWMutex
	hashes map[string]string // relative path → content hash

	// Output channel, closed when event processing stops
	events chan WatchEvent
}

// NewWatcher creates a new file watcher
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if config.DebounceDelay == 0 {
		config.DebounceDelay = 100 * time.Millisecond
	}

	registry := config.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	return &Watcher{
		config:   config,
		registry: registry,
		parsers:  make(map[string]FileParser),
		watcher:  fsw,
		logger:   logger,
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		events:   make(chan WatchEvent, 100),
	}, nil
}

// Events returns the channel of watch events
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Start begins watching the repository for changes
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.config.RepoRoot); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("File watcher started",
		"root", w.config.RepoRoot,
		"debounce", w.config.DebounceDelay)

	return nil
}

// Stop stops the watcher. The events channel is closed once pending
// processing has returned.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// SetHash records the hash for a file (used after the initial load)
func (w *Watcher) SetHash(path, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[path] = hash
}

// GetHash returns the recorded hash for a file
func (w *Watcher) GetHash(path string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[path]
	return hash, ok
}

// addWatchesRecursive adds watches to all directories
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			return nil
		}

		if path != root && w.skipDir(path) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				"path", path,
				"error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}

		return nil
	})
}

// skipDir reports whether a directory below the root is left unwatched.
func (w *Watcher) skipDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	if w.config.SkipDir == nil {
		return false
	}
	relPath, err := filepath.Rel(w.config.RepoRoot, path)
	if err != nil {
		return false
	}
	return w.config.SkipDir(filepath.ToSlash(relPath))
}

// processEvents handles fsnotify events with debouncing
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)

	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// interested reports whether a changed file should be parsed.
func (w *Watcher) interested(path string) bool {
	if _, ok := w.registry.GetParserName(filepath.Ext(path)); !ok {
		return false
	}
	if w.config.Filter == nil {
		return true
	}
	relPath, err := filepath.Rel(w.config.RepoRoot, path)
	if err != nil {
		return false
	}
	return w.config.Filter(filepath.ToSlash(relPath))
}

// handleFSEvent processes a single fsnotify event
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if !w.interested(path) {
		// New directories need their own watch
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.handleNewDirectory(path)
			}
		}
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("File change detected",
		"path", path,
		"op", event.Op.String())
}

// handleNewDirectory adds a watch to a newly created directory
func (w *Watcher) handleNewDirectory(path string) {
	if w.skipDir(path) {
		return
	}

	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch new directory",
			"path", path,
			"error", err)
	} else {
		w.logger.Debug("Added watch for new directory", "path", path)
	}
}

// parserFor returns the cached parser for a file's extension.
func (w *Watcher) parserFor(path string) (FileParser, error) {
	ext := filepath.Ext(path)
	if p, ok := w.parsers[ext]; ok {
		return p, nil
	}
	p, err := w.registry.CreateParserForExtension(ext, w.config.RepoRoot)
	if err != nil {
		return nil, err
	}
	w.parsers[ext] = p
	return p, nil
}

// flushPending processes accumulated changes. Hashes are recorded only once
// the event carrying them has been delivered.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}

	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath, _ := filepath.Rel(w.config.RepoRoot, path)
		relPath = filepath.ToSlash(relPath)
		event := WatchEvent{Path: relPath}

		// Rename is treated as delete; the new name arrives as a create
		_, statErr := os.Stat(path)
		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) || os.IsNotExist(statErr) {
			event.Operation = OpDelete
			if !w.sendEvent(ctx, event) {
				return
			}

			w.hashMu.Lock()
			delete(w.hashes, relPath)
			w.hashMu.Unlock()
			continue
		}

		parser, err := w.parserFor(path)
		if err != nil {
			event.Error = err
			if !w.sendEvent(ctx, event) {
				return
			}
			continue
		}

		result, err := parser.ParseFile(ctx, path)
		if err != nil {
			event.Error = err
			if !w.sendEvent(ctx, event) {
				return
			}
			continue
		}

		// Content unchanged, skip
		oldHash, hadHash := w.GetHash(relPath)
		if hadHash && oldHash == result.Hash {
			continue
		}

		if op.Has(fsnotify.Create) || !hadHash {
			event.Operation = OpCreate
		} else {
			event.Operation = OpModify
		}
		event.Result = result

		if !w.sendEvent(ctx, event) {
			return
		}
		w.SetHash(relPath, result.Hash)
	}
}

// sendEvent delivers an event, waiting for the consumer when the channel is
// full. It returns false if ctx is done first.
func (w *Watcher) sendEvent(ctx context.Context, event WatchEvent) bool {
	select {
	case w.events <- event:
		w.logger.Debug("Sent watch event",
			"path", event.Path,
			"op", event.Operation)
		return true
	case <-ctx.Done():
		w.logger.Debug("Watcher stopped before event was delivered",
			"path", event.Path)
		return false
	}
}
