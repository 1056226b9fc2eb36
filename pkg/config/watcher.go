package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/panduza/pza/pkg/errors"
	"github.com/panduza/pza/pkg/logging"
	"github.com/panduza/pza/pkg/registry"
)

// DefaultDebounce groups the bursts of events editors produce on save
const DefaultDebounce = 500 * time.Millisecond

// Change is delivered to listeners after a successful reload
type Change struct {
	Old *Config
	New *Config
}

// Clone gives every listener its own copy of both configurations
func (c Change) Clone() Change {
	return Change{Old: c.Old.Clone(), New: c.New.Clone()}
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce sets the delay between the last file event and the reload
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithListenerOptions passes options to the listener registry
func WithListenerOptions(opts ...registry.Option) WatcherOption {
	return func(w *Watcher) {
		w.registryOpts = append(w.registryOpts, opts...)
	}
}

// WithLoadOptions passes options to every Load call
func WithLoadOptions(opts ...LoadOption) WatcherOption {
	return func(w *Watcher) {
		w.loadOpts = append(w.loadOpts, opts...)
	}
}

// Watcher reloads a configuration file when it changes and fans the
// change out to registered listeners.
type Watcher struct {
	path         string
	debounce     time.Duration
	loadOpts     []LoadOption
	registryOpts []registry.Option

	mu      sync.RWMutex
	current *Config

	listeners *registry.Registry[Change]
	fsWatcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher loads path once and prepares to watch it
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "failed to resolve %s", path)
	}

	w := &Watcher{
		path:     absPath,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.listeners = registry.New[Change](w.registryOpts...)

	cfg, err := Load(absPath, w.loadOpts...)
	if err != nil {
		return nil, err
	}
	w.current = cfg

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigWatch, "failed to create file system watcher")
	}
	w.fsWatcher = fsWatcher
	w.ctx, w.cancel = context.WithCancel(context.Background())

	return w, nil
}

// Start watches the directory holding the file, so that editors that
// replace the file by rename are still noticed.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, errors.ErrConfigWatch, "failed to watch %s", w.path)
	}

	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop stops watching and waits for an in-flight reload to finish
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// Current returns the last successfully loaded configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a listener and returns its id
func (w *Watcher) OnChange(listener registry.Callback[Change]) registry.ID {
	return w.listeners.Add(listener)
}

// RemoveListener unregisters a listener
func (w *Watcher) RemoveListener(id registry.ID) bool {
	return w.listeners.Remove(id)
}

// Reload loads the file now. On failure the current configuration is kept.
func (w *Watcher) Reload(ctx context.Context) error {
	cfg, err := Load(w.path, append(w.loadOpts, WithoutCreate())...)
	if err != nil {
		return err
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	logger := logging.GetLogger(logging.ComponentConfig)
	logger.Info().
		Str("path", w.path).
		Int("listeners", w.listeners.Count()).
		Msg("Configuration reloaded")

	w.listeners.ExecuteAll(ctx, Change{Old: old, New: cfg})
	return nil
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	logger := logging.GetLogger(logging.ComponentConfig)

	var (
		timerMu       sync.Mutex
		debounceTimer *time.Timer
		reloads       sync.WaitGroup
	)
	defer func() {
		timerMu.Lock()
		if debounceTimer != nil && debounceTimer.Stop() {
			reloads.Done()
		}
		timerMu.Unlock()
		reloads.Wait()
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			timerMu.Lock()
			if debounceTimer != nil && debounceTimer.Stop() {
				reloads.Done()
			}
			reloads.Add(1)
			debounceTimer = time.AfterFunc(w.debounce, func() {
				defer reloads.Done()
				if err := w.Reload(w.ctx); err != nil {
					logger.Error().Err(err).Str("path", w.path).Msg("Failed to reload config")
				}
			})
			timerMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("Config watcher error")
		}
	}
}
