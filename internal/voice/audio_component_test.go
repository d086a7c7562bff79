package voice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGainChain_RampsTowardTarget(t *testing.T) {
	g := newGainChain()
	g.SetTarget(0.0)

	last := g.Tick()
	for i := 0; i < g.steps; i++ {
		next := g.Tick()
		assert.LessOrEqual(t, next, last+1e-9)
		last = next
	}
	assert.InDelta(t, 0.0, last, 1e-9)
}

func TestGainChain_ApplyMultipliesSamples(t *testing.T) {
	g := newGainChain()
	g.current = 0.5
	samples := []float32{1.0, -1.0, 0.2}
	g.Apply(samples)
	assert.InDelta(t, 0.5, samples[0], 0.001)
	assert.InDelta(t, -0.5, samples[1], 0.001)
	assert.InDelta(t, 0.1, samples[2], 0.001)
}

func TestAnalyser_SpeakingCrossesFixedThreshold(t *testing.T) {
	a := newAnalyser()
	quiet := make([]float32, 100)
	a.Feed(quiet)
	assert.False(t, a.Speaking())

	loud := make([]float32, 100)
	for i := range loud {
		loud[i] = 0.5
	}
	a.Feed(loud)
	assert.True(t, a.Speaking())
}

func TestLocalGate_MutedAlwaysClosed(t *testing.T) {
	g := newLocalGate(0.5, func() bool { return true }, func() VoiceMode { return ModeVoiceActivity }, func() bool { return true })
	loud := make([]float32, 960)
	for i := range loud {
		loud[i] = 0.9
	}
	assert.False(t, g.Open(loud))
}

func TestLocalGate_PushToTalkFollowsFlag(t *testing.T) {
	active := false
	g := newLocalGate(0.5, func() bool { return false }, func() VoiceMode { return ModePushToTalk }, func() bool { return active })

	assert.False(t, g.Open(make([]float32, 960)))
	active = true
	assert.True(t, g.Open(make([]float32, 960)))
}

func TestLocalGate_VoiceActivityHoldsOpenAfterSpeechStops(t *testing.T) {
	g := newLocalGate(0.5, func() bool { return false }, func() VoiceMode { return ModeVoiceActivity }, func() bool { return false })

	loud := make([]float32, 960)
	for i := range loud {
		loud[i] = 0.9
	}
	assert.True(t, g.Open(loud))

	silence := make([]float32, 960)
	assert.True(t, g.Open(silence), "hold-open window should keep the gate open immediately after speech")

	// Back-date the last-crossed timestamp instead of sleeping past
	// VAHoldOpen, so the test stays fast and deterministic.
	g.mu.Lock()
	g.lastAboveAt = time.Now().Add(-VAHoldOpen - time.Millisecond)
	g.mu.Unlock()

	assert.False(t, g.Open(silence), "gate must close once the hold-open window elapses")
}

func TestLocalGate_VoiceActivityUsesFixedRMSThreshold(t *testing.T) {
	g := newLocalGate(1.0, func() bool { return false }, func() VoiceMode { return ModeVoiceActivity }, func() bool { return false })

	belowThreshold := make([]float32, 960)
	for i := range belowThreshold {
		belowThreshold[i] = 0.003 // under vaThreshold(1.0) == 0.005
	}
	assert.False(t, g.Open(belowThreshold))

	aboveThreshold := make([]float32, 960)
	for i := range aboveThreshold {
		aboveThreshold[i] = 0.02 // over vaThreshold(1.0) == 0.005
	}
	assert.True(t, g.Open(aboveThreshold))
}
