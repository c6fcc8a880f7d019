// Package watcher regenerates the entry module when the source tree changes.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/viteflow/viteflow/internal/entry"
)

// Generator runs one generation cycle.
type Generator interface {
	Generate(ctx context.Context) (*entry.Result, error)
}

// Stats counts watcher activity.
type Stats struct {
	Events    int
	Cycles    int
	Failures  int
	Coalesced int
	LastEvent string
	LastError string
	LastCycle time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithIgnore skips directories matching gitignore-style patterns when
// registering watches.
func WithIgnore(patterns []string) Option {
	return func(w *Watcher) {
		if len(patterns) > 0 {
			w.ignore = ignore.CompileIgnoreLines(patterns...)
		}
	}
}

// WithCycleHook is called after every cycle with its outcome.
func WithCycleHook(fn func(*entry.Result, error)) Option {
	return func(w *Watcher) {
		w.onCycle = fn
	}
}

// Watcher observes a source root and triggers generation cycles.
type Watcher struct {
	gen     Generator
	root    string
	ignore  *ignore.GitIgnore
	onCycle func(*entry.Result, error)
	flight  *flight

	mu    sync.RWMutex
	stats Stats
}

// New creates a watcher for root that drives gen.
func New(gen Generator, root string, opts ...Option) *Watcher {
	w := &Watcher{gen: gen, root: root}
	for _, opt := range opts {
		opt(w)
	}
	w.flight = newFlight(w.cycle)
	return w
}

// Once runs exactly one cycle and returns its outcome. It is used ahead of a
// one-shot bundler build.
func (w *Watcher) Once(ctx context.Context) (*entry.Result, error) {
	res, err := w.gen.Generate(ctx)
	w.record(res, err)
	return res, err
}

// Run regenerates once, then on every create, write, remove or rename event
// beneath the root until ctx is cancelled. Cycle failures are logged and
// the watcher keeps running; only setup failures are returned.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := fsw.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close file watcher")
		}
	}()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	log.Info().Str("dir", w.root).Msg("Watching for changes")

	w.flight.trigger(ctx)
	defer w.flight.wait()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("File watcher error")
		}
	}
}

// Stats returns a snapshot of the watcher counters.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fsw, event.Name); err != nil {
				log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
		}
	}

	log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Source change")

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEvent = event.Name
	w.mu.Unlock()

	if !w.flight.trigger(ctx) {
		w.mu.Lock()
		w.stats.Coalesced++
		w.mu.Unlock()
	}
}

// addTree registers dir and every directory beneath it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &entry.ScanError{Path: path, Err: err}
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(dir string) bool {
	if w.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.root, dir)
	if err != nil {
		return false
	}
	return w.ignore.MatchesPath(filepath.ToSlash(rel) + "/")
}

func (w *Watcher) cycle(ctx context.Context) {
	res, err := w.gen.Generate(ctx)
	w.record(res, err)
	if err != nil {
		log.Error().Err(err).Msg("Failed to regenerate entry module")
		return
	}
	if res.Changed {
		log.Info().Int("statements", res.Statements).Dur("took", res.Took).Msg("Entry module updated")
	}
}

func (w *Watcher) record(res *entry.Result, err error) {
	w.mu.Lock()
	w.stats.Cycles++
	w.stats.LastCycle = time.Now()
	if err != nil {
		w.stats.Failures++
		w.stats.LastError = err.Error()
	}
	w.mu.Unlock()

	if w.onCycle != nil {
		w.onCycle(res, err)
	}
}
