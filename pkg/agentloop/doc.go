// Package agentloop executes one agent turn: it appends the inbound message
// to the session history, asks the configured LLM provider for a completion
// over that history, records the assistant reply, and hands it to the
// channel responder. The run coordinator guarantees turns for one session
// never overlap, so the loop itself holds no per-session locking beyond
// what the session object provides.
package agentloop
