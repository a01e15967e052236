package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultCleanupAge is how long a session file may stay untouched before the
// cleanup pass removes it.
const DefaultCleanupAge = 30 * 24 * time.Hour

// DefaultCleanupSchedule runs the pass once a day.
const DefaultCleanupSchedule = "@daily"

// Cleanup periodically removes session files whose last modification is
// older than the configured age. Live in-memory sessions are untouched; the
// coordinator already evicts idle runtime state on its own.
type Cleanup struct {
	store    *Store
	maxAge   time.Duration
	schedule string

	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
}

// NewCleanup creates a cleanup pass over the given store.
func NewCleanup(store *Store, maxAge time.Duration) *Cleanup {
	if maxAge <= 0 {
		maxAge = DefaultCleanupAge
	}
	return &Cleanup{
		store:    store,
		maxAge:   maxAge,
		schedule: DefaultCleanupSchedule,
		cron:     cron.New(),
	}
}

// Start schedules the cleanup pass and runs it once immediately.
func (c *Cleanup) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("cleanup is already running")
	}

	id, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(); err != nil {
			log.Error().Err(err).Msg("Session cleanup pass failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	c.entryID = id
	c.cron.Start()
	c.running = true

	go func() {
		if err := c.RunOnce(); err != nil {
			log.Error().Err(err).Msg("Initial session cleanup pass failed")
		}
	}()

	log.Info().Dur("max_age", c.maxAge).Str("schedule", c.schedule).Msg("Session cleanup started")
	return nil
}

// Stop cancels the schedule.
func (c *Cleanup) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return fmt.Errorf("cleanup is not running")
	}
	c.cron.Remove(c.entryID)
	c.cron.Stop()
	c.running = false

	log.Info().Msg("Session cleanup stopped")
	return nil
}

// IsRunning reports whether the schedule is active.
func (c *Cleanup) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// RunOnce performs a single cleanup pass.
func (c *Cleanup) RunOnce() error {
	keys, err := c.store.ListKeys()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	now := time.Now()
	deleted := 0
	for _, key := range keys {
		info, err := c.store.FileInfo(key)
		if err != nil {
			log.Warn().Str("session_key", key).Err(err).Msg("Failed to stat session file")
			continue
		}
		if now.Sub(info.ModTime()) < c.maxAge {
			continue
		}
		if err := c.store.Delete(key); err != nil {
			log.Warn().Str("session_key", key).Err(err).Msg("Failed to delete stale session")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.Info().Int("deleted", deleted).Msg("Stale sessions removed")
	}
	return nil
}
