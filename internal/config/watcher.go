// internal/config/watcher.go
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce coalesces the burst of events editors emit on save
const reloadDebounce = 100 * time.Millisecond

// ConfigWatcher reloads a configuration file when it changes on disk and
// hands every successfully validated version to the registered callbacks.
// Invalid revisions are logged and skipped; the previous configuration
// stays in effect.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	logger     *zap.Logger
	callbacks  []func(*Config)
	mu         sync.RWMutex
	stopped    bool
	timer      *time.Timer
	done       chan struct{}
}

// NewConfigWatcher creates a new configuration file watcher
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	cw := &ConfigWatcher{
		watcher:    watcher,
		configPath: abs,
		logger:     logger.Named("config"),
		done:       make(chan struct{}),
	}

	// Editors replace files via rename, so the directory is watched and events
	// are filtered by name
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	go cw.watch()

	return cw, nil
}

// OnChange registers a callback to be called when the config changes
func (cw *ConfigWatcher) OnChange(callback func(*Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *ConfigWatcher) watch() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				cw.schedule()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

func (cw *ConfigWatcher) schedule() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.stopped {
		return
	}
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(reloadDebounce, cw.handleConfigChange)
}

func (cw *ConfigWatcher) handleConfigChange() {
	cw.mu.RLock()
	if cw.stopped {
		cw.mu.RUnlock()
		return
	}
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	cfg, err := LoadFromFile(cw.configPath)
	if err != nil {
		cw.logger.Warn("Config reload rejected", zap.String("path", cw.configPath), zap.Error(err))
		return
	}

	cw.logger.Info("Config reloaded", zap.String("path", cw.configPath), zap.String("name", cfg.Name))
	for _, callback := range callbacks {
		callback(cfg)
	}
}

// Close stops the watcher and releases resources
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.stopped {
		cw.mu.Unlock()
		return nil
	}
	cw.stopped = true
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.mu.Unlock()

	err := cw.watcher.Close()
	<-cw.done
	return err
}
