package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// peerQueueDepth bounds how many signaling tasks may queue ahead of a
// single peer's serialized worker before Submit blocks.
const peerQueueDepth = 64

// PeerHooks are the callbacks a Registry invokes as peer-level WebRTC
// events occur. A nil hook is skipped.
type PeerHooks struct {
	OnICECandidate   func(peerID string, candidate webrtc.ICECandidateInit)
	OnTrack          func(peerID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	OnConnState      func(peerID string, state webrtc.ICEConnectionState)
	OnNegotiationNeeded func(peerID string)
	OnPeerDataChannel   func(peerID string, dc *webrtc.DataChannel)
}

// Registry owns every active PeerConnection and its auxiliary PeerRecord,
// and is the sole place peers are created, looked up, and torn down. Every
// method that touches peer state runs through the peer's own peerQueue
// where ordering matters; Registry itself only guards its map of records.
type Registry struct {
	mu      sync.RWMutex
	peers   map[string]*PeerRecord
	ctx     context.Context
	iceCfg  webrtc.Configuration
	hooks   PeerHooks
	log     zerolog.Logger
}

// NewRegistry constructs an empty registry. ctx bounds the lifetime of
// every peer queue goroutine the registry spawns.
func NewRegistry(ctx context.Context, iceCfg webrtc.Configuration, hooks PeerHooks, log zerolog.Logger) *Registry {
	return &Registry{
		peers:  make(map[string]*PeerRecord),
		ctx:    ctx,
		iceCfg: iceCfg,
		hooks:  hooks,
		log:    log.With().Str("component", "registry").Logger(),
	}
}

// Get returns the record for peerID, or nil if none exists.
func (r *Registry) Get(peerID string) *PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peers[peerID]
}

// All returns a snapshot slice of every current peer record.
func (r *Registry) All() []*PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PeerRecord, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Count returns the number of active peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Create builds a new PeerConnection for peerID, wires every hook, and
// registers the record. Returns the existing record unchanged if one
// already exists (idempotent, matching the glare-safe "AddPeer" contract
// signaling replay requires).
func (r *Registry) Create(peerID, userID string) (*PeerRecord, error) {
	r.mu.Lock()
	if existing, ok := r.peers[peerID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.mu.Unlock()

	pc, err := webrtc.NewPeerConnection(r.iceCfg)
	if err != nil {
		return nil, fmt.Errorf("voice: create peer connection: %w", err)
	}

	queue := newPeerQueue(r.ctx, peerID, peerQueueDepth, r.log)
	rec := newPeerRecord(peerID, userID, pc, queue)
	rec.GainChain = newGainChain()
	rec.Analyser = newAnalyser()

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if r.hooks.OnICECandidate != nil {
			r.hooks.OnICECandidate(peerID, c.ToJSON())
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if r.hooks.OnTrack != nil {
			r.hooks.OnTrack(peerID, track, receiver)
		}
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		if r.hooks.OnConnState != nil {
			r.hooks.OnConnState(peerID, state)
		}
	})

	pc.OnNegotiationNeeded(func() {
		if r.hooks.OnNegotiationNeeded != nil {
			r.hooks.OnNegotiationNeeded(peerID)
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if r.hooks.OnPeerDataChannel != nil {
			r.hooks.OnPeerDataChannel(peerID, dc)
		}
	})

	r.mu.Lock()
	r.peers[peerID] = rec
	r.mu.Unlock()

	r.log.Info().Str("peer", peerID).Str("user", userID).Msg("peer created")
	return rec, nil
}

// Remove tears down and forgets peerID. Closing the PeerConnection and the
// peer's queue is idempotent; every auxiliary map keyed by peerID is
// dropped along with the record itself, satisfying the invariant that no
// stale per-peer state survives a close.
func (r *Registry) Remove(peerID string) {
	r.mu.Lock()
	rec, ok := r.peers[peerID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.peers, peerID)
	r.mu.Unlock()

	rec.withLock(func() {
		if rec.closed {
			return
		}
		rec.closed = true
		if rec.ICERecoveryTimer != nil {
			rec.ICERecoveryTimer.Stop()
		}
	})
	rec.Queue.Close()
	if err := rec.PC.Close(); err != nil {
		r.log.Warn().Err(err).Str("peer", peerID).Msg("error closing peer connection")
	}
	r.log.Info().Str("peer", peerID).Msg("peer removed")
}

// RemoveAll tears down every peer, used on full session leave.
func (r *Registry) RemoveAll() {
	for _, p := range r.All() {
		r.Remove(p.PeerID)
	}
}

// Recreate performs the "nuclear" recovery path: fully destroy and
// rebuild a peer's connection, discarding all negotiation state. Used
// when an ICE restart itself fails to recover connectivity.
func (r *Registry) Recreate(peerID, userID string) (*PeerRecord, error) {
	r.Remove(peerID)
	return r.Create(peerID, userID)
}

// MarkICERestart records the time of an ICE restart attempt and reports
// whether the per-peer cooldown permits starting one now.
func (rec *PeerRecord) MarkICERestart(now time.Time) bool {
	var allowed bool
	rec.withLock(func() {
		if rec.ICERestartInFlight {
			return
		}
		if now.Sub(rec.LastICERestartAt) < IceRestartCooldown {
			return
		}
		rec.LastICERestartAt = now
		rec.ICERestartInFlight = true
		allowed = true
	})
	return allowed
}

// FinishICERestart clears the in-flight flag.
func (rec *PeerRecord) FinishICERestart() {
	rec.withLock(func() { rec.ICERestartInFlight = false })
}
