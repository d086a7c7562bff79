package voice

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackTransport routes SendSignal calls directly into a peer
// SignalingEngine's HandleSignal, standing in for a real signaling
// server in these in-process handshake tests.
type loopbackTransport struct {
	mu       sync.Mutex
	selfID   string
	peers    map[string]*SignalingEngine
	peerRefs map[string]string // remote userID -> local peerID to use when routing back
}

func newLoopbackTransport(selfID string) *loopbackTransport {
	return &loopbackTransport{selfID: selfID, peers: make(map[string]*SignalingEngine), peerRefs: make(map[string]string)}
}

func (t *loopbackTransport) wire(remoteUserID string, remotePeerID string, engine *SignalingEngine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[remoteUserID] = engine
	t.peerRefs[remoteUserID] = remotePeerID
}

func (t *loopbackTransport) SendSignal(ctx context.Context, targetUserID string, payload json.RawMessage) error {
	t.mu.Lock()
	engine := t.peers[targetUserID]
	peerID := t.peerRefs[targetUserID]
	t.mu.Unlock()
	if engine == nil {
		return nil
	}
	return engine.HandleSignal(ctx, t.selfID, peerID, payload)
}

func (t *loopbackTransport) JoinVoiceChannel(context.Context, string, bool, bool) error    { return nil }
func (t *loopbackTransport) LeaveVoiceChannel(context.Context, string) error               { return nil }
func (t *loopbackTransport) ModerateVoiceState(context.Context, string, bool, bool) error   { return nil }
func (t *loopbackTransport) UpdateVoiceState(context.Context, bool, bool) error             { return nil }
func (t *loopbackTransport) NotifyScreenShare(context.Context, string, bool) error          { return nil }
func (t *loopbackTransport) NotifyCamera(context.Context, string, bool) error               { return nil }
func (t *loopbackTransport) RequestWatchStream(context.Context, string) error               { return nil }
func (t *loopbackTransport) StopWatchingStream(context.Context, string) error               { return nil }
func (t *loopbackTransport) VoiceHeartbeat(context.Context) error                           { return nil }
func (t *loopbackTransport) GetVoiceChannelUsers(context.Context, string) (map[string]string, error) {
	return nil, nil
}
func (t *loopbackTransport) On(EventType, EventHandler) {}

func TestSignalingEngine_Politeness(t *testing.T) {
	e := &SignalingEngine{localID: "alice"}
	assert.True(t, e.polite("bob"), "alice < bob, alice is polite")

	e2 := &SignalingEngine{localID: "carol"}
	assert.False(t, e2.polite("bob"), "carol > bob, carol is impolite")
}

func TestSignalingEngine_CompletesOfferAnswerHandshake(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aliceTransport := newLoopbackTransport("alice")
	bobTransport := newLoopbackTransport("bob")

	aliceRegistry := NewRegistry(ctx, webrtc.Configuration{}, PeerHooks{}, testLogger())
	bobRegistry := NewRegistry(ctx, webrtc.Configuration{}, PeerHooks{}, testLogger())

	aliceDemux := NewDemuxer(testLogger())
	bobDemux := NewDemuxer(testLogger())

	aliceEngine := NewSignalingEngine(aliceRegistry, aliceTransport, aliceDemux, "alice", testLogger())
	bobEngine := NewSignalingEngine(bobRegistry, bobTransport, bobDemux, "bob", testLogger())

	aliceTransport.wire("bob", "alice", bobEngine)
	bobTransport.wire("alice", "bob", aliceEngine)

	require.NoError(t, aliceEngine.InitiateOffer(ctx, "bob", "bob"))

	require.Eventually(t, func() bool {
		rec := bobRegistry.Get("alice")
		return rec != nil && rec.PC.RemoteDescription() != nil
	}, 2*time.Second, 10*time.Millisecond, "bob should receive alice's offer")

	require.Eventually(t, func() bool {
		rec := aliceRegistry.Get("bob")
		return rec != nil && rec.PC.RemoteDescription() != nil
	}, 2*time.Second, 10*time.Millisecond, "alice should receive bob's answer")
}
