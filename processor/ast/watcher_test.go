package ast

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// hashingParser reads the file so the watcher can detect content changes.
type hashingParser struct{}

func (hashingParser) ParseFile(ctx context.Context, filePath string) (*ParseResult, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return &ParseResult{Path: filePath, Hash: ComputeHash(content)}, nil
}

func newWatchRegistry() *ParserRegistry {
	registry := NewParserRegistry()
	registry.Register("test", []string{".src"}, func(string) FileParser { return hashingParser{} })
	return registry
}

func startWatcher(t *testing.T, config WatcherConfig) (*Watcher, context.CancelFunc) {
	t.Helper()

	w, err := NewWatcher(config)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w, cancel
}

// eventually polls cond until it holds.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// waitFor drains events until match returns true.
func waitFor(t *testing.T, events <-chan WatchEvent, match func(WatchEvent) bool) WatchEvent {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatal("events channel closed")
			}
			if match(event) {
				return event
			}
		case <-timeout:
			t.Fatal("timed out waiting for watch event")
		}
	}
}

func TestWatcher_Lifecycle(t *testing.T) {
	root := t.TempDir()
	w, _ := startWatcher(t, WatcherConfig{
		RepoRoot:      root,
		DebounceDelay: 20 * time.Millisecond,
		Registry:      newWatchRegistry(),
	})

	path := filepath.Join(root, "a.src")
	first := []byte("class A {}")
	if err := os.WriteFile(path, first, 0644); err != nil {
		t.Fatal(err)
	}

	created := waitFor(t, w.Events(), func(e WatchEvent) bool {
		return e.Result != nil && e.Result.Hash == ComputeHash(first)
	})
	if created.Path != "a.src" {
		t.Errorf("expected relative path a.src, got %q", created.Path)
	}
	eventually(t, "recorded hash", func() bool {
		hash, ok := w.GetHash("a.src")
		return ok && hash == ComputeHash(first)
	})

	second := []byte("class A { int x; }")
	if err := os.WriteFile(path, second, 0644); err != nil {
		t.Fatal(err)
	}
	modified := waitFor(t, w.Events(), func(e WatchEvent) bool {
		return e.Result != nil && e.Result.Hash == ComputeHash(second)
	})
	if modified.Operation != OpModify {
		t.Errorf("expected %s, got %s", OpModify, modified.Operation)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	deleted := waitFor(t, w.Events(), func(e WatchEvent) bool { return e.Operation == OpDelete })
	if deleted.Path != "a.src" || deleted.Result != nil {
		t.Errorf("unexpected delete event: %+v", deleted)
	}
	eventually(t, "hash to be forgotten after delete", func() bool {
		_, ok := w.GetHash("a.src")
		return !ok
	})
}

func TestWatcher_UnchangedContentIsSkipped(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.src")
	content := []byte("class A {}")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	w, _ := startWatcher(t, WatcherConfig{
		RepoRoot:      root,
		DebounceDelay: 20 * time.Millisecond,
		Registry:      newWatchRegistry(),
	})
	w.SetHash("a.src", ComputeHash(content))

	// Rewrite identical content, then touch a second file as a marker.
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.src"), []byte("class B {}"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, w.Events(), func(e WatchEvent) bool {
		if e.Path == "a.src" {
			t.Errorf("unexpected event for unchanged file: %+v", e)
		}
		return e.Path == "b.src" && e.Result != nil
	})
}

func TestWatcher_Filter(t *testing.T) {
	root := t.TempDir()
	w, _ := startWatcher(t, WatcherConfig{
		RepoRoot:      root,
		DebounceDelay: 20 * time.Millisecond,
		Registry:      newWatchRegistry(),
		Filter: func(relPath string) bool {
			return !strings.HasPrefix(relPath, "skip")
		},
	})

	files := map[string]string{
		"skip.src":  "ignored by filter",
		"notes.txt": "no parser",
		"keep.src":  "class Keep {}",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, w.Events(), func(e WatchEvent) bool {
		if e.Path != "keep.src" {
			t.Errorf("unexpected event for %s", e.Path)
		}
		return e.Path == "keep.src" && e.Result != nil
	})
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()
	w, _ := startWatcher(t, WatcherConfig{
		RepoRoot:      root,
		DebounceDelay: 20 * time.Millisecond,
		Registry:      newWatchRegistry(),
	})

	dir := filepath.Join(root, "pkg")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "c.src"), []byte("class C {}"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w.Events(), func(e WatchEvent) bool {
		return e.Path == "pkg/c.src" && e.Result != nil
	})
}

func TestWatcher_CancelClosesEvents(t *testing.T) {
	w, cancel := startWatcher(t, WatcherConfig{
		RepoRoot: t.TempDir(),
		Registry: newWatchRegistry(),
	})
	cancel()

	select {
	case _, ok := <-w.Events():
		if ok {
			t.Error("expected no events after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

func TestWatcher_LargeBatchIsDelivered(t *testing.T) {
	root := t.TempDir()
	w, _ := startWatcher(t, WatcherConfig{
		RepoRoot:      root,
		DebounceDelay: 200 * time.Millisecond,
		Registry:      newWatchRegistry(),
	})

	// More files than the event buffer holds, written within one debounce window
	const count = 150
	for i := 0; i < count; i++ {
		name := filepath.Join(root, fmt.Sprintf("C%d.src", i))
		if err := os.WriteFile(name, []byte(fmt.Sprintf("class C%d {}", i)), 0644); err != nil {
			t.Fatal(err)
		}
	}

	seen := make(map[string]bool)
	waitFor(t, w.Events(), func(e WatchEvent) bool {
		if e.Result != nil {
			seen[e.Path] = true
		}
		return len(seen) == count
	})

	for i := 0; i < count; i++ {
		name := fmt.Sprintf("C%d.src", i)
		eventually(t, "hash for "+name, func() bool {
			_, ok := w.GetHash(name)
			return ok
		})
	}
}

func TestWatcher_UndeliveredEventKeepsHashUnset(t *testing.T) {
	root := t.TempDir()
	w, cancel := startWatcher(t, WatcherConfig{
		RepoRoot:      root,
		DebounceDelay: 20 * time.Millisecond,
		Registry:      newWatchRegistry(),
	})

	// Nobody reads events, so the buffer fills and the rest stay pending
	const count = 120
	for i := 0; i < count; i++ {
		name := filepath.Join(root, fmt.Sprintf("C%d.src", i))
		if err := os.WriteFile(name, []byte("class C {}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	eventually(t, "full event buffer", func() bool { return len(w.events) == cap(w.events) })
	time.Sleep(100 * time.Millisecond)
	cancel()

	delivered := 0
	for e := range w.Events() {
		if e.Result != nil {
			delivered++
		}
	}

	recorded := 0
	for i := 0; i < count; i++ {
		if _, ok := w.GetHash(fmt.Sprintf("C%d.src", i)); ok {
			recorded++
		}
	}
	if recorded != delivered {
		t.Errorf("recorded %d hashes for %d delivered events", recorded, delivered)
	}
}

func TestWatcher_SkipDir(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"gen", "src", ".cache"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}

	w, _ := startWatcher(t, WatcherConfig{
		RepoRoot:      root,
		DebounceDelay: 20 * time.Millisecond,
		Registry:      newWatchRegistry(),
		SkipDir:       func(relDir string) bool { return relDir == "gen" },
	})

	for _, name := range []string{"gen/a.src", ".cache/b.src", "src/c.src"} {
		if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(name)), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, w.Events(), func(e WatchEvent) bool {
		if e.Path != "src/c.src" {
			t.Errorf("unexpected event for %s", e.Path)
		}
		return e.Path == "src/c.src"
	})

	// bin is watched unless SkipDir says otherwise
	bin := filepath.Join(root, "bin")
	if err := os.Mkdir(bin, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(bin, "d.src"), []byte("class D {}"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w.Events(), func(e WatchEvent) bool { return e.Path == "bin/d.src" })
}
