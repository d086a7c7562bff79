package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Fanout publishes the local screen-share track only to peers that have
// explicitly opted in via RequestWatchStream, and the local camera track
// to every connected peer. It tracks one sender per viewer per local
// screen track so a viewer can stop watching without tearing down the
// peer connection.
type Fanout struct {
	mu      sync.Mutex
	signaling *SignalingEngine
	registry  *Registry
	log       zerolog.Logger

	localScreenTrack webrtc.TrackLocal
	localCameraTrack webrtc.TrackLocal
	screenViewers    map[string]bool
}

// NewFanout constructs a Fanout bound to an existing Registry and
// SignalingEngine.
func NewFanout(registry *Registry, signaling *SignalingEngine, log zerolog.Logger) *Fanout {
	return &Fanout{
		registry:      registry,
		signaling:     signaling,
		log:           log.With().Str("component", "fanout").Logger(),
		screenViewers: make(map[string]bool),
	}
}

// SetLocalScreenTrack registers the track to publish on future
// AddViewer calls; passing nil stops any future fanout (StopAll clears
// the track the same way).
func (f *Fanout) SetLocalScreenTrack(track webrtc.TrackLocal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localScreenTrack = track
}

// SetLocalCameraTrack registers the local camera track, published to
// every connected peer directly (camera is not gated behind a watch
// request, unlike screen share).
func (f *Fanout) SetLocalCameraTrack(track webrtc.TrackLocal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localCameraTrack = track
}

// AddViewer adds peerID as a screen-share viewer: if a local screen
// track is currently published, it is added to that peer's connection
// and a track-info message announces it.
func (f *Fanout) AddViewer(ctx context.Context, peerID string) {
	f.mu.Lock()
	track := f.localScreenTrack
	f.mu.Unlock()
	if track == nil {
		return
	}

	rec := f.registry.Get(peerID)
	if rec == nil {
		return
	}

	err := rec.Queue.SubmitWait(ctx, func() error {
		if err := f.signaling.SendTrackInfo(ctx, peerID, TrackInfo{Type: TrackScreen, TrackID: track.ID()}); err != nil {
			return fmt.Errorf("voice: send track-info for screen share: %w", err)
		}
		sender, err := rec.PC.AddTrack(track)
		if err != nil {
			return fmt.Errorf("voice: add screen track: %w", err)
		}
		rec.withLock(func() { rec.ScreenSenders[track.ID()] = sender })
		return f.signaling.negotiate(ctx, rec)
	})
	if err != nil {
		f.log.Warn().Err(err).Str("peer", peerID).Msg("failed to add screen share viewer")
		return
	}

	f.mu.Lock()
	f.screenViewers[peerID] = true
	f.mu.Unlock()
}

// RemoveViewer removes peerID from the screen-share fanout, detaching
// the sender from that peer's connection without closing the peer.
func (f *Fanout) RemoveViewer(peerID string) {
	f.mu.Lock()
	delete(f.screenViewers, peerID)
	f.mu.Unlock()

	rec := f.registry.Get(peerID)
	if rec == nil {
		return
	}
	var senders []*webrtc.RTPSender
	rec.withLock(func() {
		for id, sender := range rec.ScreenSenders {
			senders = append(senders, sender)
			delete(rec.ScreenSenders, id)
		}
	})
	for _, sender := range senders {
		if err := rec.PC.RemoveTrack(sender); err != nil {
			f.log.Warn().Err(err).Str("peer", peerID).Msg("failed to remove screen sender")
		}
	}
}

// StopAll detaches the screen share from every current viewer, called
// when the local user stops sharing.
func (f *Fanout) StopAll() {
	f.mu.Lock()
	viewers := make([]string, 0, len(f.screenViewers))
	for id := range f.screenViewers {
		viewers = append(viewers, id)
	}
	f.localScreenTrack = nil
	f.mu.Unlock()

	for _, peerID := range viewers {
		f.RemoveViewer(peerID)
	}
}

// PublishCameraToAll adds the local camera track to every currently
// connected peer, since camera publishing (unlike screen share) is not
// gated behind a watch request.
func (f *Fanout) PublishCameraToAll(ctx context.Context) {
	f.mu.Lock()
	track := f.localCameraTrack
	f.mu.Unlock()
	if track == nil {
		return
	}
	for _, rec := range f.registry.All() {
		rec := rec
		rec.Queue.Submit(ctx, func() error {
			if err := f.signaling.SendTrackInfo(ctx, rec.PeerID, TrackInfo{Type: TrackCamera, TrackID: track.ID()}); err != nil {
				return err
			}
			sender, err := rec.PC.AddTrack(track)
			if err != nil {
				return fmt.Errorf("voice: add camera track: %w", err)
			}
			rec.withLock(func() { rec.CameraSender = sender })
			return f.signaling.negotiate(ctx, rec)
		})
	}
}
