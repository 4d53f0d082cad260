// Package watch reloads a policy file when it changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/policydiff"
)

const debounceDefault = 500 * time.Millisecond

// Reload describes a policy that replaced the previous one.
type Reload struct {
	Policy *policy.Policy
	Hash   string
	Diff   *policydiff.DiffResult
}

// Watcher holds the current policy for a file and swaps it on valid edits.
// Invalid edits are logged and the previous policy stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger
	onReload func(Reload)

	mu      sync.RWMutex
	current *policy.Policy
	hash    string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period after the last write before reloading.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l.Named("watch")
		}
	}
}

// OnReload registers a callback invoked after each successful reload.
func OnReload(fn func(Reload)) Option {
	return func(w *Watcher) { w.onReload = fn }
}

// New loads the policy at path. The file must be valid at startup.
func New(path string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: debounceDefault,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	p, hash, err := policy.LoadWithHash(w.path)
	if err != nil {
		return nil, err
	}
	w.current, w.hash = p, hash
	return w, nil
}

// Policy returns the policy currently in effect and its hash.
func (w *Watcher) Policy() (*policy.Policy, string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current, w.hash
}

// Reload re-reads the file. An unchanged hash is not a reload.
func (w *Watcher) Reload() (bool, error) {
	p, hash, err := policy.LoadWithHash(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if hash == w.hash {
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.hash = p, hash
	w.mu.Unlock()

	d := policydiff.Diff(old.Document(), p.Document())
	d.OldPath, d.NewPath = w.path, w.path
	w.logger.Info("policy reloaded",
		zap.String("path", w.path),
		zap.String("hash", hash),
		zap.Int("changes", len(d.Changes)+len(d.EntryChanges)))
	if w.onReload != nil {
		w.onReload(Reload{Policy: p, Hash: hash, Diff: d})
	}
	return true, nil
}

// Run watches the file's directory so that editors replacing the file by
// rename are seen. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			if _, err := w.Reload(); err != nil {
				w.logger.Warn("reload rejected, keeping previous policy",
					zap.String("path", w.path), zap.Error(err))
			}

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}
