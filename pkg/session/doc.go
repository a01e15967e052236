// Package session owns conversation state. A Session is addressed by
// (channel, chat id) and holds the ordered message history plus a small
// metadata map. The Store keeps live sessions in memory and persists
// message history as JSONL files under the data directory.
package session
