package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"familymatter/internal/steward"
)

// ThresholdSource serves the current sweep thresholds and can be rewired
// when the config file on disk changes.
type ThresholdSource struct {
	mu  sync.RWMutex
	cur steward.Thresholds
}

// NewThresholdSource seeds the source with an initial set of thresholds.
func NewThresholdSource(t steward.Thresholds) *ThresholdSource {
	return &ThresholdSource{cur: t}
}

// Current returns the thresholds in effect right now.
func (s *ThresholdSource) Current() steward.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *ThresholdSource) set(t steward.Thresholds) {
	s.mu.Lock()
	s.cur = t
	s.mu.Unlock()
}

// Watch reloads the config file whenever it changes on disk and pushes the
// new sweep thresholds into src. The watch runs until stop is called.
// Editors often replace the file rather than write in place, so the watch
// sits on the parent directory and filters events down to the one file.
func Watch(path string, src *ThresholdSource, logger *zap.Logger) (stop func(), err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Warn("config reload failed, keeping previous thresholds",
						zap.String("path", path), zap.Error(err))
					continue
				}
				src.set(cfg.Sweep)
				logger.Info("sweep thresholds reloaded", zap.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return func() {
		watcher.Close()
		<-done
	}, nil
}
