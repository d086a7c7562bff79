package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// signalKind discriminates the payload union carried over Transport.SendSignal.
type signalKind string

const (
	signalOffer     signalKind = "offer"
	signalAnswer    signalKind = "answer"
	signalCandidate signalKind = "candidate"
	signalTrackInfo signalKind = "track-info"
)

type signalEnvelope struct {
	Kind      signalKind              `json:"kind"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	TrackInfo *TrackInfo                 `json:"trackInfo,omitempty"`
}

// SignalingEngine drives SDP offer/answer exchange, trickle ICE, glare
// resolution, and the ICE-restart / nuclear-recreate recovery ladder for
// every peer in a Registry. It never talks to Transport directly for
// inbound delivery (the session controller dispatches received signals
// to it) but owns outbound sends itself, since a send is always a direct
// consequence of local negotiation state changing.
type SignalingEngine struct {
	registry  *Registry
	transport Transport
	demux     *Demuxer
	localID   string
	log       zerolog.Logger

	makingOffer map[string]bool

	// OnGlare is invoked whenever an offer collision is resolved, win or
	// lose; nil is a valid no-op.
	OnGlare func()
}

// NewSignalingEngine wires a SignalingEngine to an existing Registry and
// Transport. localID is this client's own user id, used for politeness
// comparison during glare resolution.
func NewSignalingEngine(registry *Registry, transport Transport, demux *Demuxer, localID string, log zerolog.Logger) *SignalingEngine {
	return &SignalingEngine{
		registry:    registry,
		transport:   transport,
		demux:       demux,
		localID:     localID,
		log:         log.With().Str("component", "signaling-engine").Logger(),
		makingOffer: make(map[string]bool),
	}
}

// polite reports whether the local side defers during glare, using a
// fixed, symmetric tiebreak (lexicographically smaller user id is
// polite) so both ends independently compute the same outcome.
func (e *SignalingEngine) polite(remoteUserID string) bool {
	return e.localID < remoteUserID
}

// InitiateOffer creates (or reuses) a peer connection to remoteUserID and
// sends the initial offer. Used when this client is the one discovering
// a new participant, e.g. from a voice_channel_users snapshot.
func (e *SignalingEngine) InitiateOffer(ctx context.Context, peerID, remoteUserID string) error {
	rec, err := e.registry.Create(peerID, remoteUserID)
	if err != nil {
		return err
	}
	return rec.Queue.SubmitWait(ctx, func() error {
		return e.negotiate(ctx, rec)
	})
}

func (e *SignalingEngine) negotiate(ctx context.Context, rec *PeerRecord) error {
	e.makingOffer[rec.PeerID] = true
	defer delete(e.makingOffer, rec.PeerID)

	offer, err := rec.PC.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("voice: create offer: %w", err)
	}
	if err := rec.PC.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("voice: set local description (offer): %w", err)
	}
	return e.send(ctx, rec.UserID, signalEnvelope{Kind: signalOffer, SDP: rec.PC.LocalDescription()})
}

// HandleSignal dispatches one inbound signaling payload to the
// appropriate peer queue. It is safe to call concurrently for different
// peers; for the same peer, ordering is preserved by the peer's queue.
func (e *SignalingEngine) HandleSignal(ctx context.Context, fromUserID, peerID string, raw json.RawMessage) error {
	var env signalEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("voice: decode signal: %w", err)
	}

	rec := e.registry.Get(peerID)
	if rec == nil {
		var err error
		rec, err = e.registry.Create(peerID, fromUserID)
		if err != nil {
			return err
		}
	}

	switch env.Kind {
	case signalOffer:
		if env.SDP == nil {
			return ErrStaleSignal
		}
		sdp := *env.SDP
		rec.Queue.Submit(ctx, func() error { return e.handleOffer(ctx, rec, sdp) })
	case signalAnswer:
		if env.SDP == nil {
			return ErrStaleSignal
		}
		sdp := *env.SDP
		rec.Queue.Submit(ctx, func() error { return e.handleAnswer(rec, sdp) })
	case signalCandidate:
		if env.Candidate == nil {
			return ErrStaleSignal
		}
		cand := *env.Candidate
		rec.Queue.Submit(ctx, func() error { return e.handleCandidate(rec, cand) })
	case signalTrackInfo:
		if env.TrackInfo == nil {
			return ErrStaleSignal
		}
		e.demux.TrackInfoReceived(rec, *env.TrackInfo)
	default:
		return fmt.Errorf("voice: unknown signal kind %q", env.Kind)
	}
	return nil
}

// handleOffer implements perfect negotiation: an impolite peer that is
// currently making its own offer and receives a colliding remote offer
// ignores it (its own offer wins); a polite peer rolls back its local
// description and accepts the remote offer instead.
func (e *SignalingEngine) handleOffer(ctx context.Context, rec *PeerRecord, offer webrtc.SessionDescription) error {
	haveLocalOffer := rec.PC.SignalingState() != webrtc.SignalingStateStable
	collision := e.makingOffer[rec.PeerID] || haveLocalOffer

	if collision && e.OnGlare != nil {
		e.OnGlare()
	}

	if collision && !e.polite(rec.UserID) {
		e.log.Debug().Str("peer", rec.PeerID).Msg("glare: ignoring offer, impolite side wins")
		return nil
	}

	if rec.PC.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		rollback := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback, SDP: rec.PC.LocalDescription().SDP}
		if err := rec.PC.SetLocalDescription(rollback); err != nil {
			return fmt.Errorf("voice: rollback local offer: %w", err)
		}
	}

	if err := rec.PC.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("voice: set remote description (offer): %w", err)
	}
	if err := e.drainCandidates(rec); err != nil {
		return err
	}

	answer, err := rec.PC.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("voice: create answer: %w", err)
	}
	if err := rec.PC.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("voice: set local description (answer): %w", err)
	}
	return e.send(ctx, rec.UserID, signalEnvelope{Kind: signalAnswer, SDP: rec.PC.LocalDescription()})
}

func (e *SignalingEngine) handleAnswer(rec *PeerRecord, answer webrtc.SessionDescription) error {
	if rec.PC.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		return ErrStaleSignal
	}
	if err := rec.PC.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("voice: set remote description (answer): %w", err)
	}
	return e.drainCandidates(rec)
}

func (e *SignalingEngine) handleCandidate(rec *PeerRecord, cand webrtc.ICECandidateInit) error {
	if rec.PC.RemoteDescription() == nil {
		rec.withLock(func() {
			rec.PendingCandidates = append(rec.PendingCandidates, cand)
		})
		return nil
	}
	if err := rec.PC.AddICECandidate(cand); err != nil {
		return fmt.Errorf("voice: add ice candidate: %w", err)
	}
	return nil
}

func (e *SignalingEngine) drainCandidates(rec *PeerRecord) error {
	var pending []webrtc.ICECandidateInit
	rec.withLock(func() {
		pending = rec.PendingCandidates
		rec.PendingCandidates = nil
	})
	for _, c := range pending {
		if err := rec.PC.AddICECandidate(c); err != nil {
			return fmt.Errorf("voice: add buffered ice candidate: %w", err)
		}
	}
	return nil
}

// SendICECandidate delivers a locally-gathered ICE candidate over
// signaling; wired as the Registry's OnICECandidate hook.
func (e *SignalingEngine) SendICECandidate(ctx context.Context, peerID string, candidate webrtc.ICECandidateInit) {
	rec := e.registry.Get(peerID)
	if rec == nil {
		return
	}
	if err := e.send(ctx, rec.UserID, signalEnvelope{Kind: signalCandidate, Candidate: &candidate}); err != nil {
		e.log.Warn().Err(err).Str("peer", peerID).Msg("failed to send ice candidate")
	}
}

// HandleConnectionState is wired as the Registry's OnConnState hook. It
// drives the ICE recovery ladder: a stall in "checking" or a prolonged
// "disconnected" triggers an ICE restart (subject to per-peer cooldown);
// repeated failure escalates to a full nuclear recreate.
func (e *SignalingEngine) HandleConnectionState(ctx context.Context, peerID string, state webrtc.ICEConnectionState) {
	rec := e.registry.Get(peerID)
	if rec == nil {
		return
	}

	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		rec.FinishICERestart()
		rec.withLock(func() {
			if rec.ICERecoveryTimer != nil {
				rec.ICERecoveryTimer.Stop()
				rec.ICERecoveryTimer = nil
			}
		})
	case webrtc.ICEConnectionStateDisconnected:
		e.scheduleRecovery(ctx, rec, IceDisconnectedRecovery)
	case webrtc.ICEConnectionStateChecking:
		e.scheduleRecovery(ctx, rec, IceStallTimeout)
	case webrtc.ICEConnectionStateFailed:
		e.restartOrRecreate(ctx, rec)
	}
}

func (e *SignalingEngine) scheduleRecovery(ctx context.Context, rec *PeerRecord, after time.Duration) {
	rec.withLock(func() {
		if rec.ICERecoveryTimer != nil {
			rec.ICERecoveryTimer.Stop()
		}
		rec.ICERecoveryTimer = time.AfterFunc(after, func() {
			e.restartOrRecreate(ctx, rec)
		})
	})
}

func (e *SignalingEngine) restartOrRecreate(ctx context.Context, rec *PeerRecord) {
	if !rec.MarkICERestart(time.Now()) {
		return
	}
	rec.Queue.Submit(ctx, func() error {
		if err := e.restartICE(ctx, rec); err != nil {
			e.log.Warn().Err(err).Str("peer", rec.PeerID).Msg("ice restart failed, recreating peer")
			return e.recreate(ctx, rec)
		}
		return nil
	})
}

func (e *SignalingEngine) restartICE(ctx context.Context, rec *PeerRecord) error {
	offer, err := rec.PC.CreateOffer(&webrtc.OfferOptions{ICERestart: true})
	if err != nil {
		return fmt.Errorf("voice: create ice-restart offer: %w", err)
	}
	if err := rec.PC.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("voice: set local description (ice restart): %w", err)
	}
	return e.send(ctx, rec.UserID, signalEnvelope{Kind: signalOffer, SDP: rec.PC.LocalDescription()})
}

// recreate performs the nuclear recovery path and immediately re-offers,
// since a recreated peer always starts from a clean slate.
func (e *SignalingEngine) recreate(ctx context.Context, rec *PeerRecord) error {
	newRec, err := e.registry.Recreate(rec.PeerID, rec.UserID)
	if err != nil {
		return fmt.Errorf("voice: recreate peer: %w", err)
	}
	return newRec.Queue.SubmitWait(ctx, func() error {
		return e.negotiate(ctx, newRec)
	})
}

// RestartAll forces an ICE restart on every peer, used after TURN
// credentials are renewed.
func (e *SignalingEngine) RestartAll(ctx context.Context) {
	for _, rec := range e.registry.All() {
		e.restartOrRecreate(ctx, rec)
	}
}

func (e *SignalingEngine) send(ctx context.Context, toUserID string, env signalEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("voice: marshal signal: %w", err)
	}
	return e.transport.SendSignal(ctx, toUserID, payload)
}

// SendTrackInfo announces a local track's semantic type immediately
// before the track is added, per the side-channel protocol.
func (e *SignalingEngine) SendTrackInfo(ctx context.Context, peerID string, info TrackInfo) error {
	rec := e.registry.Get(peerID)
	if rec == nil {
		return ErrPeerNotFound
	}
	return e.send(ctx, rec.UserID, signalEnvelope{Kind: signalTrackInfo, TrackInfo: &info})
}
