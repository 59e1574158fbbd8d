package distribution

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// BundleWatcherConfig contains configuration for the bundle watcher.
type BundleWatcherConfig struct {
	// Dir is the bundle directory to watch.
	Dir string

	// DebounceInterval coalesces bursts of file events into one reload.
	// Default: 200ms.
	DebounceInterval time.Duration
}

// BundleWatcher watches a bundle directory and re-applies its policies
// through the consumer whenever a bundle file changes. Editors and
// config-management tools tend to emit several events per save, so
// reloads are debounced.
type BundleWatcher struct {
	config   BundleWatcherConfig
	consumer *Consumer
	logger   *slog.Logger
}

// NewBundleWatcher creates a watcher feeding the given consumer.
func NewBundleWatcher(config BundleWatcherConfig, consumer *Consumer, logger *slog.Logger) (*BundleWatcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("distribution: bundle dir cannot be empty")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 200 * time.Millisecond
	}
	if consumer == nil {
		return nil, fmt.Errorf("distribution: consumer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BundleWatcher{
		config:   config,
		consumer: consumer,
		logger:   logger.With("component", "distribution.bundle_watcher", "dir", config.Dir),
	}, nil
}

// Load applies the current contents of the bundle directory.
func (w *BundleWatcher) Load() error {
	policies, err := LoadBundleDir(w.config.Dir)
	if err != nil {
		return err
	}
	for _, p := range policies {
		if err := w.consumer.Apply(Update{PolicyID: p.ID, Policy: p}); err != nil {
			w.logger.Error("failed to apply bundle policy",
				"policy_id", p.ID,
				"error", err,
			)
		}
	}
	w.logger.Info("policy bundle applied", "policies", len(policies))
	return nil
}

// Watch loads the bundle once and then blocks, re-applying it on file
// changes, until ctx is cancelled. A failed reload keeps the previous
// cached policies in place.
func (w *BundleWatcher) Watch(ctx context.Context) error {
	if err := w.Load(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("distribution: failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("distribution: failed to watch %q: %w", w.config.Dir, err)
	}

	var (
		debounce *time.Timer
		reloadCh <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isBundleFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(w.config.DebounceInterval)
				reloadCh = debounce.C
			} else {
				debounce.Reset(w.config.DebounceInterval)
			}

		case <-reloadCh:
			debounce = nil
			reloadCh = nil
			if err := w.Load(); err != nil {
				w.logger.Error("bundle reload failed, keeping cached policies", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("bundle watcher error", "error", err)
		}
	}
}

func isBundleFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
