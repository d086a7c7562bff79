package voice

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, webrtc.Configuration{}, PeerHooks{}, testLogger())
	defer r.RemoveAll()

	rec1, err := r.Create("peer-1", "user-1")
	require.NoError(t, err)
	rec2, err := r.Create("peer-1", "user-1")
	require.NoError(t, err)

	assert.Same(t, rec1, rec2)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_RemoveClearsRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, webrtc.Configuration{}, PeerHooks{}, testLogger())
	_, err := r.Create("peer-1", "user-1")
	require.NoError(t, err)

	r.Remove("peer-1")
	assert.Nil(t, r.Get("peer-1"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_RemoveUnknownPeerIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, webrtc.Configuration{}, PeerHooks{}, testLogger())
	r.Remove("does-not-exist")
}

func TestRegistry_RecreateReplacesPeerConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, webrtc.Configuration{}, PeerHooks{}, testLogger())
	defer r.RemoveAll()

	original, err := r.Create("peer-1", "user-1")
	require.NoError(t, err)

	recreated, err := r.Recreate("peer-1", "user-1")
	require.NoError(t, err)

	assert.NotSame(t, original.PC, recreated.PC)
	assert.Equal(t, original.PeerID, recreated.PeerID)
}

func TestPeerRecord_ICERestartCooldown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, webrtc.Configuration{}, PeerHooks{}, testLogger())
	defer r.RemoveAll()

	rec, err := r.Create("peer-1", "user-1")
	require.NoError(t, err)

	now := time.Now()
	assert.True(t, rec.MarkICERestart(now), "first restart should be allowed")
	assert.False(t, rec.MarkICERestart(now), "in-flight restart blocks a second attempt")

	rec.FinishICERestart()
	assert.False(t, rec.MarkICERestart(now), "cooldown still applies immediately after finishing")
}
