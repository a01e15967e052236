package turnqueue

import (
	"sync"

	"github.com/velesbot/veles/pkg/session"
)

// MaxPending caps queued entries per session across both kinds. Overflow
// drops the oldest entries by sequence, irrespective of kind.
const MaxPending = 100

// pendingEntry holds one queued message. The sequence preserves arrival
// order across kinds within a runner.
type pendingEntry struct {
	msg  session.Message
	kind Kind
	seq  uint64
}

// sessionRunner is the per-session mutable state. All fields below mu are
// guarded by it. The coordinator's registry lock is never acquired while a
// runner lock is held.
type sessionRunner struct {
	key SessionKey

	mu       sync.Mutex
	running  bool
	stopped  bool
	evicted  bool
	nextSeq  uint64
	steering []pendingEntry
	followUp []pendingEntry
}

func newSessionRunner(key SessionKey) *sessionRunner {
	return &sessionRunner{key: key}
}

// pendingLen returns the total queued entries across both kinds.
// Caller holds r.mu.
func (r *sessionRunner) pendingLen() int {
	return len(r.steering) + len(r.followUp)
}

// push appends an entry for the given kind, replacing the kind's backlog
// when mode is one-at-a-time. It returns the number of entries discarded by
// replacement. Caller holds r.mu.
func (r *sessionRunner) push(msg session.Message, kind Kind, mode Mode) int {
	entry := pendingEntry{msg: msg, kind: kind, seq: r.nextSeq}
	r.nextSeq++

	queue := &r.followUp
	if kind == KindSteering {
		queue = &r.steering
	}

	replaced := 0
	if mode == ModeOneAtATime {
		replaced = len(*queue)
		*queue = (*queue)[:0]
	}
	*queue = append(*queue, entry)
	return replaced
}

// dropOldest removes entries oldest-by-sequence until the total is within
// the cap, returning the number dropped. Caller holds r.mu.
func (r *sessionRunner) dropOldest(limit int) int {
	dropped := 0
	for r.pendingLen() > limit {
		switch {
		case len(r.steering) == 0:
			r.followUp = r.followUp[1:]
		case len(r.followUp) == 0:
			r.steering = r.steering[1:]
		case r.steering[0].seq < r.followUp[0].seq:
			r.steering = r.steering[1:]
		default:
			r.followUp = r.followUp[1:]
		}
		dropped++
	}
	return dropped
}

// takeKind removes and returns the backlog for one kind. Caller holds r.mu.
func (r *sessionRunner) takeKind(kind Kind) []pendingEntry {
	if kind == KindSteering {
		entries := r.steering
		r.steering = nil
		return entries
	}
	entries := r.followUp
	r.followUp = nil
	return entries
}

// drain removes and returns all pending entries in arrival order across
// both kinds. Caller holds r.mu.
func (r *sessionRunner) drain() []pendingEntry {
	if r.pendingLen() == 0 {
		return nil
	}

	out := make([]pendingEntry, 0, r.pendingLen())
	s, f := r.steering, r.followUp
	for len(s) > 0 || len(f) > 0 {
		switch {
		case len(s) == 0:
			out = append(out, f[0])
			f = f[1:]
		case len(f) == 0:
			out = append(out, s[0])
			s = s[1:]
		case s[0].seq < f[0].seq:
			out = append(out, s[0])
			s = s[1:]
		default:
			out = append(out, f[0])
			f = f[1:]
		}
	}
	r.steering, r.followUp = nil, nil
	return out
}
