package turnqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeAll, ParseMode("all"))
	assert.Equal(t, ModeAll, ParseMode("  ALL "))
	assert.Equal(t, ModeOneAtATime, ParseMode("one-at-a-time"))
	assert.Equal(t, ModeOneAtATime, ParseMode(""))
	assert.Equal(t, ModeOneAtATime, ParseMode("nonsense"))
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindSteering, ParseKind("steering"))
	assert.Equal(t, KindSteering, ParseKind(" Steering "))
	assert.Equal(t, KindFollowUp, ParseKind("follow-up"))
	assert.Equal(t, KindFollowUp, ParseKind("unknown"))
	assert.Equal(t, KindFollowUp, ParseKind(nil))
	assert.Equal(t, KindFollowUp, ParseKind(7))
}

func TestStaticPolicyDefaults(t *testing.T) {
	p := StaticPolicy{}
	assert.Equal(t, ModeOneAtATime, p.ModeFor(KindSteering))
	assert.Equal(t, ModeOneAtATime, p.ModeFor(KindFollowUp))
	assert.True(t, p.SteeringEnabled())

	p = StaticPolicy{Steering: ModeAll, FollowUp: ModeAll, DisableSteering: true}
	assert.Equal(t, ModeAll, p.ModeFor(KindSteering))
	assert.Equal(t, ModeAll, p.ModeFor(KindFollowUp))
	assert.False(t, p.SteeringEnabled())
}
