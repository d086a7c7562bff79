package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionState_ActiveTracksChannel(t *testing.T) {
	s := NewSessionState()
	assert.False(t, s.Active())
	s.withLock(func() { s.CurrentChannelID = "ch-1" })
	assert.True(t, s.Active())
}

func TestSessionState_VolumeDefaultsTo100Percent(t *testing.T) {
	s := NewSessionState()
	assert.InDelta(t, 1.0, s.VolumeFor("peer-1"), 0.001)

	s.SetVolume("peer-1", 150)
	assert.InDelta(t, 1.5, s.VolumeFor("peer-1"), 0.001)
}

func TestSessionState_VolumeClampedTo0To200(t *testing.T) {
	s := NewSessionState()
	s.SetVolume("peer-1", -10)
	assert.InDelta(t, 0.0, s.VolumeFor("peer-1"), 0.001)

	s.SetVolume("peer-1", 500)
	assert.InDelta(t, 2.0, s.VolumeFor("peer-1"), 0.001)
}

func TestSessionState_SetWatchingRequiresActiveSharer(t *testing.T) {
	s := NewSessionState()
	ok := s.SetWatching("peer-1")
	assert.False(t, ok, "cannot watch a peer that isn't an active sharer")

	s.withLock(func() { s.ActiveSharers["peer-1"] = "Alice" })
	ok = s.SetWatching("peer-1")
	assert.True(t, ok)

	ok = s.SetWatching("")
	assert.True(t, ok, "clearing the watch target is always allowed")
}

func TestVAThreshold_BoundsAndMonotonicity(t *testing.T) {
	assert.InDelta(t, vaThresholdCeiling, vaThreshold(0), 0.0001)
	assert.InDelta(t, vaThresholdFloor, vaThreshold(1), 0.0001)
	assert.Greater(t, vaThreshold(0.2), vaThreshold(0.8))

	// out-of-range inputs clamp rather than extrapolate
	assert.InDelta(t, vaThresholdCeiling, vaThreshold(-1), 0.0001)
	assert.InDelta(t, vaThresholdFloor, vaThreshold(2), 0.0001)
}
