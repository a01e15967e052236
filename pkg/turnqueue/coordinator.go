package turnqueue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/velesbot/veles/internal/observability"
	"github.com/velesbot/veles/internal/tracing"
	"github.com/velesbot/veles/pkg/events"
	"github.com/velesbot/veles/pkg/session"
)

const tracerName = "veles/turnqueue"

// Coordinator serializes agent turns per session and owns the runner
// registry. Enqueue and RequestStop are fire-and-forget: they never block on
// an in-flight turn and never propagate a failure to the caller.
type Coordinator struct {
	loop     AgentLoop
	sessions SessionPort
	events   EventService
	policy   QueuePolicy

	maxPending int

	mu      sync.Mutex
	runners map[SessionKey]*sessionRunner

	runsInFlight atomic.Int64
}

// Option adjusts coordinator construction.
type Option func(*Coordinator)

// WithMaxPending overrides the per-session pending cap.
func WithMaxPending(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxPending = n
		}
	}
}

// New creates a coordinator. A nil policy falls back to one-at-a-time for
// both kinds with steering enabled.
func New(loop AgentLoop, sessions SessionPort, eventService EventService, policy QueuePolicy, opts ...Option) *Coordinator {
	observability.EnsureRegistered()

	if policy == nil {
		policy = StaticPolicy{}
	}

	c := &Coordinator{
		loop:       loop,
		sessions:   sessions,
		events:     eventService,
		policy:     policy,
		maxPending: MaxPending,
		runners:    make(map[SessionKey]*sessionRunner),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunnerCount reports the number of registered session runners.
func (c *Coordinator) RunnerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runners)
}

// Enqueue accepts one inbound message. An idle or unseen session starts a
// turn immediately; a stopped session resumes immediately; a busy session
// queues the message per the configured mode for its kind.
func (c *Coordinator) Enqueue(msg session.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).
				Str("channel", msg.Channel).
				Str("chat_id", msg.ChatID).
				Msg("Enqueue panicked")
		}
	}()

	key := SessionKey{Channel: msg.Channel, ChatID: msg.ChatID}
	r := c.acquireRunner(key)
	defer r.mu.Unlock()

	switch {
	case r.stopped:
		// Resume signal. The backlog was flushed when the stop landed, so
		// the new turn starts from this message alone. A stopped turn that
		// is still draining keeps the single-flight guarantee: the resume
		// message dispatches the moment it completes.
		r.stopped = false
		if r.running {
			r.push(msg, c.classify(msg), ModeAll)
		} else {
			c.startRunLocked(r, msg)
		}
		observability.RecordEnqueue(key.Channel, "resumed")
		log.Info().Str("session_key", key.String()).Msg("Session resumed after stop")

	case r.running:
		kind := c.classify(msg)
		mode := c.policy.ModeFor(kind)
		replaced := r.push(msg, kind, mode)
		if replaced > 0 {
			for i := 0; i < replaced; i++ {
				observability.RecordPendingDrop(key.Channel, "replaced")
			}
		}
		if dropped := r.dropOldest(c.maxPending); dropped > 0 {
			for i := 0; i < dropped; i++ {
				observability.RecordPendingDrop(key.Channel, "overflow")
			}
			c.emit(c.sessions.GetOrCreate(key.Channel, key.ChatID), events.TypeQueueOverflow, map[string]interface{}{
				"dropped": dropped,
			})
			log.Warn().
				Str("session_key", key.String()).
				Int("dropped", dropped).
				Int("cap", c.maxPending).
				Msg("Pending queue overflow, oldest entries dropped")
		}
		observability.RecordEnqueue(key.Channel, "queued")
		log.Debug().
			Str("session_key", key.String()).
			Str("kind", string(kind)).
			Str("mode", string(mode)).
			Int("pending", r.pendingLen()).
			Msg("Message queued behind active turn")

	default:
		c.startRunLocked(r, msg)
		observability.RecordEnqueue(key.Channel, "started")
	}
}

// RequestStop halts automatic continuation for one session. The active
// turn, if any, runs to completion; all pending entries move verbatim into
// conversation history in arrival order, tagged with their original kind, and
// the history is persisted best-effort. Safe to call when the session is idle
// or unknown, and idempotent.
func (c *Coordinator) RequestStop(channel, chatID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).
				Str("channel", channel).
				Str("chat_id", chatID).
				Msg("RequestStop panicked")
		}
	}()

	key := SessionKey{Channel: channel, ChatID: chatID}
	sess := c.sessions.GetOrCreate(channel, chatID)
	sess.SetMeta(MetaInterruptRequested, true)
	c.emit(sess, events.TypeTurnInterruptRequested, map[string]interface{}{
		"source": "command.stop",
	})
	observability.RecordStopRequest(channel)

	c.mu.Lock()
	r, ok := c.runners[key]
	c.mu.Unlock()
	if !ok {
		log.Debug().Str("session_key", key.String()).Msg("Stop requested for idle session")
		return
	}

	r.mu.Lock()
	r.stopped = true
	flushed := r.drain()
	r.mu.Unlock()

	for _, entry := range flushed {
		sess.AddMessage(entry.msg.WithMeta(MetaQueueKind, string(entry.kind)))
	}
	if len(flushed) > 0 {
		observability.RecordFlush(channel, len(flushed))
		if err := c.sessions.Save(sess); err != nil {
			log.Warn().Str("session_key", key.String()).Err(err).Msg("Failed to persist flushed backlog")
		}
		c.emit(sess, events.TypeBacklogFlushed, map[string]interface{}{
			"flushed": len(flushed),
		})
	}
	observability.RecordStopAudit(context.Background(), key.String(), len(flushed))
	log.Info().
		Str("session_key", key.String()).
		Int("flushed", len(flushed)).
		Msg("Stop requested, backlog flushed to history")
}

// acquireRunner returns the registered runner for key with its lock held,
// creating one when absent. A runner observed mid-eviction is discarded and
// the lookup retried against the registry.
func (c *Coordinator) acquireRunner(key SessionKey) *sessionRunner {
	for {
		c.mu.Lock()
		r, ok := c.runners[key]
		if !ok {
			r = newSessionRunner(key)
			c.runners[key] = r
			observability.SetActiveRunners(len(c.runners))
		}
		c.mu.Unlock()

		r.mu.Lock()
		if !r.evicted {
			return r
		}
		r.mu.Unlock()
	}
}

// tryEvict removes the runner from the registry if it is still idle and
// empty. Taken with no locks held; registry lock before runner lock.
func (c *Coordinator) tryEvict(r *sessionRunner) {
	c.mu.Lock()
	r.mu.Lock()
	if !r.running && r.pendingLen() == 0 {
		if c.runners[r.key] == r {
			delete(c.runners, r.key)
			observability.SetActiveRunners(len(c.runners))
		}
		r.evicted = true
		log.Debug().Str("session_key", r.key.String()).Msg("Idle session runner evicted")
	}
	r.mu.Unlock()
	c.mu.Unlock()
}

// classify returns the queue kind for a message: steering only when the
// message is tagged steering and steering is enabled in policy.
func (c *Coordinator) classify(msg session.Message) Kind {
	if !c.policy.SteeringEnabled() {
		return KindFollowUp
	}
	return ParseKind(msg.Meta(MetaQueueKind))
}

// startRunLocked marks the runner busy and launches the turn. Caller holds
// r.mu.
func (c *Coordinator) startRunLocked(r *sessionRunner, msg session.Message) {
	r.running = true
	go c.run(r, msg)
}

// run executes one turn and re-enters the dispatch decision on completion.
// Chained continuations go through goroutine handoff, not recursion, so
// stack depth stays constant across arbitrarily long sequences of turns.
func (c *Coordinator) run(r *sessionRunner, msg session.Message) {
	key := r.key
	ctx := tracing.WithSessionKey(context.Background(), key.String())
	ctx = tracing.NewAgentRunContext(ctx, "turnqueue")
	ctx, span := tracing.StartSpan(ctx, tracerName, "turnqueue.run",
		attribute.String("session.key", key.String()),
		attribute.String("session.channel", key.Channel),
	)
	defer span.End()

	observability.SetRunsInFlight(int(c.runsInFlight.Add(1)))
	defer func() {
		observability.SetRunsInFlight(int(c.runsInFlight.Add(-1)))
	}()

	sess := c.sessions.GetOrCreate(key.Channel, key.ChatID)
	sess.ClearMeta(MetaInterruptRequested)
	c.emit(sess, events.TypeTurnStarted, map[string]interface{}{
		"message_id": msg.ID,
	})

	start := time.Now()
	err := c.processMessage(ctx, msg)
	duration := time.Since(start)
	observability.RecordTurn(key.Channel, duration, err == nil)
	observability.RecordTurnAudit(ctx, key.String(), err == nil)

	logger := tracing.LoggerFromContext(ctx, log.Logger)
	if err != nil {
		// Turn failures end the turn but never the session: queued work
		// keeps flowing as if the turn had succeeded.
		logger.Error().Err(err).
			Dur("duration", duration).
			Msg("Agent turn failed")
		c.emit(sess, events.TypeTurnFailed, map[string]interface{}{
			"message_id": msg.ID,
			"error":      err.Error(),
		})
	} else {
		logger.Debug().
			Dur("duration", duration).
			Msg("Agent turn completed")
		c.emit(sess, events.TypeTurnCompleted, map[string]interface{}{
			"message_id": msg.ID,
		})
	}

	c.onRunComplete(r)
}

// processMessage invokes the agent loop with a panic barrier.
func (c *Coordinator) processMessage(ctx context.Context, msg session.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("agent turn panicked: %v", rec)
		}
	}()
	return c.loop.ProcessMessage(ctx, msg)
}

// onRunComplete chooses the next unit of work: stopped sessions and empty
// queues evict the runner; otherwise steering backlog is merged and
// dispatched before follow-up backlog.
func (c *Coordinator) onRunComplete(r *sessionRunner) {
	r.mu.Lock()
	r.running = false

	if r.stopped {
		r.mu.Unlock()
		c.tryEvict(r)
		return
	}

	for _, kind := range []Kind{KindSteering, KindFollowUp} {
		entries := r.takeKind(kind)
		if len(entries) == 0 {
			continue
		}
		next := c.mergeEntries(r.key, entries, kind)
		c.startRunLocked(r, next)
		r.mu.Unlock()
		return
	}

	r.mu.Unlock()
	c.tryEvict(r)
}

// mergeEntries collapses one kind's backlog into a single continuation
// message. One-at-a-time keeps the most recent entry; all joins contents in
// arrival order under the first entry's identity.
func (c *Coordinator) mergeEntries(key SessionKey, entries []pendingEntry, kind Kind) session.Message {
	mode := c.policy.ModeFor(kind)

	if mode == ModeOneAtATime || len(entries) == 1 {
		for i := 0; i < len(entries)-1; i++ {
			observability.RecordPendingDrop(key.Channel, "replaced")
		}
		return entries[len(entries)-1].msg.WithMeta(MetaQueueKind, string(kind))
	}

	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		content := strings.TrimSpace(entry.msg.Content)
		if content == "" {
			continue
		}
		parts = append(parts, content)
	}

	merged := entries[0].msg.WithMeta(MetaQueueKind, string(kind))
	merged.Content = strings.Join(parts, "\n\n")
	observability.RecordPendingMerge(key.Channel, string(kind), len(entries))
	log.Debug().
		Str("session_key", key.String()).
		Str("kind", string(kind)).
		Int("merged", len(entries)).
		Msg("Backlog merged into continuation turn")
	return merged
}

// emit publishes a runtime event, tolerating a nil service.
func (c *Coordinator) emit(sess *session.Session, eventType string, payload map[string]interface{}) {
	if c.events == nil {
		return
	}
	c.events.EmitForSession(sess, eventType, payload)
}
