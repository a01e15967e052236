// Package turnqueue serializes agent turns per (channel, chat id) session.
//
// Invariants:
// - At most one agent turn is in flight per session key at any instant.
// - Steering work queued during a run is dispatched before follow-up work
//   queued during the same run.
// - Pending entries are capped at 100 per session; overflow drops the oldest
//   entries across both kinds.
// - A runner with no in-flight turn and no pending entries is removed from
//   the registry.
// - A stop request flushes the backlog into conversation history and blocks
//   automatic continuation; it never cancels the active turn.
//
// Usage:
//
//	coord := turnqueue.New(loop, sessions, events, policy)
//	coord.Enqueue(msg)                         // fire-and-forget
//	coord.RequestStop("telegram", "12345")     // fire-and-forget, idempotent
package turnqueue
