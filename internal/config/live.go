package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/velesbot/veles/pkg/turnqueue"
)

// LivePolicy serves the current queue-mode policy and reloads it when the
// config file changes, so mode switches take effect without a restart. It
// implements turnqueue.QueuePolicy.
type LivePolicy struct {
	loader  *Loader
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current TurnQueueConfig

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// NewLivePolicy seeds the policy from cfg and prepares a watcher over the
// loader's config file.
func NewLivePolicy(loader *Loader, cfg *Config) *LivePolicy {
	return &LivePolicy{
		loader:  loader,
		current: cfg.TurnQueue,
		done:    make(chan struct{}),
	}
}

// Start begins watching the config file for changes.
func (p *LivePolicy) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	p.watcher = watcher

	// Watch the directory, not the file: editors and atomic writers replace
	// the file and would silently detach a file-level watch.
	configPath := p.loader.GetConfigPath()
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go p.eventLoop(configPath)

	log.Info().Str("path", configPath).Msg("Queue policy watcher started")
	return nil
}

// Stop stops the watcher. The policy keeps serving its last snapshot.
func (p *LivePolicy) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.done)
		if p.watcher != nil {
			err = p.watcher.Close()
		}
	})
	return err
}

// ModeFor returns the merge mode for one queue kind.
func (p *LivePolicy) ModeFor(kind turnqueue.Kind) turnqueue.Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if kind == turnqueue.KindSteering {
		return turnqueue.ParseMode(p.current.SteeringMode)
	}
	return turnqueue.ParseMode(p.current.FollowUpMode)
}

// SteeringEnabled reports whether steering classification is active.
func (p *LivePolicy) SteeringEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.current.DisableSteering
}

// Snapshot returns the current queue configuration.
func (p *LivePolicy) Snapshot() TurnQueueConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

func (p *LivePolicy) eventLoop(configPath string) {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.scheduleReload()

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")

		case <-p.done:
			return
		}
	}
}

// scheduleReload debounces bursts of write events into one reload.
func (p *LivePolicy) scheduleReload() {
	p.debounceMu.Lock()
	defer p.debounceMu.Unlock()

	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
	}
	p.debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
		select {
		case <-p.done:
			return
		default:
		}
		p.reload()
	})
}

func (p *LivePolicy) reload() {
	cfg, err := p.loader.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Queue policy reload failed, keeping previous modes")
		return
	}

	p.mu.Lock()
	changed := cfg.TurnQueue != p.current
	p.current = cfg.TurnQueue
	p.mu.Unlock()

	if changed {
		log.Info().
			Str("steering_mode", cfg.TurnQueue.SteeringMode).
			Str("follow_up_mode", cfg.TurnQueue.FollowUpMode).
			Bool("steering_disabled", cfg.TurnQueue.DisableSteering).
			Msg("Queue policy reloaded")
	}
}
