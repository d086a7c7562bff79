package voice

import (
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Demuxer classifies incoming WebRTC tracks by their semantic role using
// the track-info side-channel message that is sent over signaling
// immediately before AddTrack. WebRTC delivers tracks with no label of
// its own, so ontrack and the matching track-info message can arrive in
// either order; the demuxer reconciles both orderings and falls back to
// inference when a peer never sends track-info at all (legacy/older
// clients).
type Demuxer struct {
	log zerolog.Logger

	// OnClassified is invoked once a remote track's TrackType is known.
	OnClassified func(peerID string, trackType TrackType, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

// NewDemuxer constructs a Demuxer. OnClassified must be set by the caller
// before any track arrives.
func NewDemuxer(log zerolog.Logger) *Demuxer {
	return &Demuxer{log: log.With().Str("component", "demux").Logger()}
}

// TrackInfoReceived records a track-info side-channel message for rec,
// matching it against any track already waiting on the same id, or
// against the legacy FIFO when the sender omitted the track id.
func (d *Demuxer) TrackInfoReceived(rec *PeerRecord, info TrackInfo) {
	var matched *pendingRemoteTrack
	var matchedType TrackType

	rec.withLock(func() {
		if info.TrackID != "" {
			if pending, ok := rec.PendingRemoteTracks[info.TrackID]; ok {
				matched = pending
				matchedType = info.Type
				delete(rec.PendingRemoteTracks, info.TrackID)
				return
			}
			rec.PendingTrackInfoByID[info.TrackID] = info.Type
			return
		}
		rec.PendingLegacyTrackFIFO = append(rec.PendingLegacyTrackFIFO, info.Type)
	})

	if matched != nil {
		d.deliver(rec, matched, matchedType)
	}
}

// OnTrack is wired as the Registry's per-peer OnTrack hook. It resolves
// the track's semantic type immediately if track-info already arrived,
// otherwise waits TrackInfoWaitTimeout before falling back to inference.
func (d *Demuxer) OnTrack(rec *PeerRecord, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	trackID := track.ID()

	var immediate TrackType
	var haveImmediate bool

	rec.withLock(func() {
		if t, ok := rec.PendingTrackInfoByID[trackID]; ok {
			immediate = t
			haveImmediate = true
			delete(rec.PendingTrackInfoByID, trackID)
			return
		}
		pending := &pendingRemoteTrack{track: track, arrived: time.Now()}
		rec.PendingRemoteTracks[trackID] = pending
		pending.timer = time.AfterFunc(TrackInfoWaitTimeout, func() {
			d.resolveByTimeout(rec, trackID, track, receiver)
		})
	})

	if haveImmediate {
		d.deliverDirect(rec, track, receiver, immediate)
	}
}

func (d *Demuxer) resolveByTimeout(rec *PeerRecord, trackID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	var stillPending bool
	rec.withLock(func() {
		if _, ok := rec.PendingRemoteTracks[trackID]; !ok {
			return // already classified by a late-arriving TrackInfoReceived race
		}
		delete(rec.PendingRemoteTracks, trackID)
		stillPending = true
	})
	if !stillPending {
		return
	}

	inferred := d.infer(rec, track)
	d.log.Warn().
		Str("peer", rec.PeerID).
		Str("track", trackID).
		Str("inferred_as", string(inferred)).
		Msg("track-info timed out, inferring track type")
	d.deliverDirect(rec, track, receiver, inferred)
}

// infer guesses a track's type when no track-info ever arrives: the
// legacy FIFO (oldest pending label, whatever its kind) takes precedence,
// falling back to "mic" for audio and "camera" for video since those are
// the common case for track-info-less clients.
func (d *Demuxer) infer(rec *PeerRecord, track *webrtc.TrackRemote) TrackType {
	var inferred TrackType
	rec.withLock(func() {
		if len(rec.PendingLegacyTrackFIFO) > 0 {
			inferred = rec.PendingLegacyTrackFIFO[0]
			rec.PendingLegacyTrackFIFO = rec.PendingLegacyTrackFIFO[1:]
			return
		}
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			inferred = TrackMic
		} else {
			inferred = TrackCamera
		}
	})
	return inferred
}

func (d *Demuxer) deliver(rec *PeerRecord, pending *pendingRemoteTrack, trackType TrackType) {
	if pending.timer != nil {
		pending.timer.Stop()
	}
	d.deliverDirect(rec, pending.track, nil, trackType)
}

func (d *Demuxer) deliverDirect(rec *PeerRecord, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver, trackType TrackType) {
	if d.OnClassified != nil {
		d.OnClassified(rec.PeerID, trackType, track, receiver)
	}
}
