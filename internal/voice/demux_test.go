package voice

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemuxer_TrackInfoBeforeTrack(t *testing.T) {
	d := NewDemuxer(testLogger())
	d.OnClassified = func(peerID string, tt TrackType, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {}

	rec := newPeerRecord("peer-1", "user-1", nil, nil)
	d.TrackInfoReceived(rec, TrackInfo{Type: TrackScreen, TrackID: "t1"})

	rec.withLock(func() {
		tt, ok := rec.PendingTrackInfoByID["t1"]
		require.True(t, ok)
		assert.Equal(t, TrackScreen, tt)
	})
}

func TestDemuxer_TrackInfoMatchesPendingRemoteTrack(t *testing.T) {
	d := NewDemuxer(testLogger())

	var gotPeer string
	var gotType TrackType
	d.OnClassified = func(peerID string, tt TrackType, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		gotPeer = peerID
		gotType = tt
	}

	rec := newPeerRecord("peer-1", "user-1", nil, nil)
	rec.withLock(func() {
		rec.PendingRemoteTracks["t1"] = &pendingRemoteTrack{arrived: time.Now()}
	})

	d.TrackInfoReceived(rec, TrackInfo{Type: TrackCamera, TrackID: "t1"})

	rec.withLock(func() {
		_, stillPending := rec.PendingRemoteTracks["t1"]
		assert.False(t, stillPending)
	})
	assert.Equal(t, "peer-1", gotPeer)
	assert.Equal(t, TrackCamera, gotType)
}

func TestDemuxer_LegacyFIFOOrdering(t *testing.T) {
	d := NewDemuxer(testLogger())
	rec := newPeerRecord("peer-1", "user-1", nil, nil)

	d.TrackInfoReceived(rec, TrackInfo{Type: TrackMic})
	d.TrackInfoReceived(rec, TrackInfo{Type: TrackScreenAudio})

	first := d.infer(rec, nil)
	assert.Equal(t, TrackMic, first)

	second := d.infer(rec, nil)
	assert.Equal(t, TrackScreenAudio, second)
}
