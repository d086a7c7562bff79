package voice

import "time"

// Magic numbers from the core's empirical tuning, named per spec.md §9
// ("treat them as named constants").
const (
	// IceStallTimeout is how long a peer may sit in "checking" before the
	// engine initiates an ICE restart.
	IceStallTimeout = 30 * time.Second

	// IceDisconnectedRecovery is how long a peer may sit "disconnected"
	// before the engine initiates an ICE restart.
	IceDisconnectedRecovery = 5 * time.Second

	// IceRestartCooldown is the minimum spacing between ICE restarts for a
	// single peer, enforced per local side.
	IceRestartCooldown = 30 * time.Second

	// TrackInfoWaitTimeout is how long ontrack waits for a matching
	// track-info message before falling back to inference.
	TrackInfoWaitTimeout = 400 * time.Millisecond

	// BufferedJoinWindow is the time window after session join during
	// which individual "user joined voice" events are buffered pending the
	// authoritative participant snapshot.
	BufferedJoinWindow = 5 * time.Second

	// HeartbeatInterval drives the periodic heartbeat + reconciliation.
	HeartbeatInterval = 30 * time.Second

	// StatsInterval drives the periodic RTT/loss/jitter sampling.
	StatsInterval = 3 * time.Second

	// AnalyserTick is the sampling period of the shared analyser loop.
	AnalyserTick = 50 * time.Millisecond

	// AudioContextKeepAlive resumes a suspended audio pipeline and replays
	// paused remote sinks.
	AudioContextKeepAlive = 5 * time.Second

	// SpeakingRMSThreshold is the fixed threshold above which a remote
	// peer is published as "speaking".
	SpeakingRMSThreshold = 0.015

	// VAHoldOpen is the hysteresis grace period during which a
	// voice-activity-gated microphone remains enabled after RMS drops
	// below the sensitivity threshold.
	VAHoldOpen = 200 * time.Millisecond

	// GainRampDuration is how long a per-peer volume change takes to ramp.
	GainRampDuration = 50 * time.Millisecond

	// vaThresholdFloor and vaThresholdCeiling bound the sensitivity->RMS
	// threshold mapping: threshold = ceiling - (ceiling-floor)*sensitivity.
	vaThresholdFloor   = 0.005
	vaThresholdCeiling = 0.05

	// defaultSTUNURL names the default public STUN server. BuildConfig in
	// ice_config.go lists its STUN URLs directly and does not read it.
	defaultSTUNURL = "stun:stun.l.google.com:19302"
)

// vaThreshold maps a 0.0..1.0 sensitivity to an RMS threshold in the fixed
// range [vaThresholdFloor, vaThresholdCeiling].
func vaThreshold(sensitivity float64) float64 {
	if sensitivity < 0 {
		sensitivity = 0
	}
	if sensitivity > 1 {
		sensitivity = 1
	}
	return vaThresholdCeiling - (vaThresholdCeiling-vaThresholdFloor)*sensitivity
}
