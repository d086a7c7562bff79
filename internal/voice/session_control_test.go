package voice

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, userID string) *Session {
	t.Helper()
	transport := newLoopbackTransport(userID)
	s := NewSession(transport, webrtc.Configuration{}, nil, userID, NoopMetrics{}, zerolog.Nop())
	t.Cleanup(s.Close)
	return s
}

func TestSessionSetMutedRejectsUnmuteWhileDeafened(t *testing.T) {
	s := newTestSession(t, "alice")
	ctx := context.Background()

	require.NoError(t, s.SetDeafened(ctx, true))
	assert.True(t, s.State().IsMuted)

	err := s.SetMuted(ctx, false)
	assert.ErrorIs(t, err, ErrDeafenedMuteLocked)
	assert.True(t, s.State().IsMuted)

	require.NoError(t, s.SetDeafened(ctx, false))
	require.NoError(t, s.SetMuted(ctx, false))
	assert.False(t, s.State().IsMuted)
}

func TestSessionToggleMutedAndDeafened(t *testing.T) {
	s := newTestSession(t, "alice")
	ctx := context.Background()

	muted, err := s.ToggleMuted(ctx)
	require.NoError(t, err)
	assert.True(t, muted)

	muted, err = s.ToggleMuted(ctx)
	require.NoError(t, err)
	assert.False(t, muted)

	deafened, err := s.ToggleDeafened(ctx)
	require.NoError(t, err)
	assert.True(t, deafened)
	assert.True(t, s.State().IsMuted)
}

func TestSessionSetVoiceModeAndPTT(t *testing.T) {
	s := newTestSession(t, "alice")

	s.SetVoiceMode(ModePushToTalk)
	assert.Equal(t, ModePushToTalk, s.State().VoiceMode)

	s.SetPTTActive(true)
	assert.True(t, s.State().PTTActive)
}

func TestSessionSetVolumeClamped(t *testing.T) {
	s := newTestSession(t, "alice")

	s.SetVolume("bob", 500)
	assert.Equal(t, 2.0, s.State().VolumeFor("bob"))

	s.SetVolume("bob", -5)
	assert.Equal(t, 0.0, s.State().VolumeFor("bob"))
}

func TestSessionSelectInputDeviceFallsBackWithoutCaptureBackend(t *testing.T) {
	s := newTestSession(t, "alice")

	err := s.SelectInputDevice("some-mic")
	require.NoError(t, err)
	assert.Equal(t, "default", s.State().InputDeviceID)
}

func TestSessionGetStatusBeforeJoin(t *testing.T) {
	s := newTestSession(t, "alice")

	st := s.GetStatus()
	assert.Equal(t, string(ConnDisconnected), st.ConnectionState)
	assert.Empty(t, st.ChannelID)
	assert.False(t, st.Muted)
}

func TestSessionStopWatchNoopWithoutActiveWatch(t *testing.T) {
	s := newTestSession(t, "alice")
	require.NoError(t, s.StopWatch(context.Background()))
}
