package turnqueue

import "strings"

// Mode controls how queued messages of one kind are merged into the next
// continuation turn.
type Mode string

const (
	// ModeOneAtATime keeps only the most recently enqueued message of a
	// kind; earlier entries are discarded without delivery.
	ModeOneAtATime Mode = "one-at-a-time"

	// ModeAll delivers every queued message of a kind, joined into a
	// single turn in arrival order.
	ModeAll Mode = "all"
)

// ParseMode maps a configuration string to a merge mode, defaulting to
// ModeOneAtATime.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return ModeAll
	default:
		return ModeOneAtATime
	}
}

// QueuePolicy supplies the merge modes and the steering flag. The
// coordinator reads it on every enqueue and merge rather than caching, so a
// live configuration change takes effect on the next decision.
type QueuePolicy interface {
	ModeFor(kind Kind) Mode
	SteeringEnabled() bool
}

// StaticPolicy is a fixed QueuePolicy, used as the default and in tests.
type StaticPolicy struct {
	Steering        Mode
	FollowUp        Mode
	DisableSteering bool
}

func (p StaticPolicy) ModeFor(kind Kind) Mode {
	if kind == KindSteering {
		if p.Steering == "" {
			return ModeOneAtATime
		}
		return p.Steering
	}
	if p.FollowUp == "" {
		return ModeOneAtATime
	}
	return p.FollowUp
}

func (p StaticPolicy) SteeringEnabled() bool {
	return !p.DisableSteering
}
