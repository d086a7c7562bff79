// Package voice implements the real-time voice/video client core: a WebRTC
// mesh manager with per-peer signaling, adaptive ICE recovery, track-type
// demultiplexing, media device management, a voice-activity/push-to-talk
// gate, and graceful resumption across signaling-transport disconnects.
package voice

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

// VoiceMode selects how the local microphone is gated.
type VoiceMode string

const (
	ModeVoiceActivity VoiceMode = "voice-activity"
	ModePushToTalk    VoiceMode = "push-to-talk"
)

// ConnectionState mirrors the session-wide WebRTC mesh connectivity.
type ConnectionState string

const (
	ConnDisconnected  ConnectionState = "disconnected"
	ConnConnecting    ConnectionState = "connecting"
	ConnConnected     ConnectionState = "connected"
	ConnReconnecting  ConnectionState = "reconnecting"
)

// TrackType identifies the semantic role of a WebRTC media track, carried
// out-of-band via the track-info side-channel message since WebRTC itself
// delivers tracks without a label.
type TrackType string

const (
	TrackCamera      TrackType = "camera"
	TrackScreen      TrackType = "screen"
	TrackScreenAudio TrackType = "screen-audio"
	TrackMic         TrackType = "mic"
)

// AudioProcessing holds the capture-side DSP toggles applied when
// acquiring a microphone stream.
type AudioProcessing struct {
	NoiseSuppression bool
	EchoCancellation bool
	AutoGainControl  bool
}

// TrackInfo is the side-channel message sent over signaling immediately
// before AddTrack, labeling the track that is about to arrive.
type TrackInfo struct {
	Type    TrackType `json:"trackType"`
	TrackID string    `json:"trackId"`
}

// SessionState is the singleton voice session state. Its lifecycle runs
// from Join to Leave; CurrentChannelID is non-empty iff the session is
// active. All fields are guarded by mu.
type SessionState struct {
	mu sync.Mutex

	CurrentChannelID string
	IsMuted          bool
	IsDeafened       bool
	VoiceMode        VoiceMode
	PTTActive        bool

	InputDeviceID  string
	OutputDeviceID string
	CameraDeviceID string

	AudioProcessing  AudioProcessing
	InputSensitivity float64 // 0.0..1.0

	ConnectionState ConnectionState

	Participants  map[string]string // peerID -> display name, server-authoritative
	ActiveSharers map[string]string // peerID -> display name
	ActiveCameras map[string]string // peerID -> display name

	WatchingUserID string // "" = none
	FocusedUserID  string // "" = none, UI-only, never affects routing

	UserVolumes map[string]int // peerID -> 0..200

	Speaking map[string]bool // peerID set of currently-speaking peers

	NeedsAudioUnlock bool

	outputResolutionSuppressed bool
}

// NewSessionState returns a fresh, disconnected session state with
// voice-activity mode and neutral volumes.
func NewSessionState() *SessionState {
	return &SessionState{
		VoiceMode:       ModeVoiceActivity,
		InputDeviceID:   "default",
		OutputDeviceID:  "default",
		CameraDeviceID:  "default",
		ConnectionState: ConnDisconnected,
		Participants:    make(map[string]string),
		ActiveSharers:   make(map[string]string),
		ActiveCameras:   make(map[string]string),
		UserVolumes:     make(map[string]int),
		Speaking:        make(map[string]bool),
	}
}

func (s *SessionState) withLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Active reports whether a voice session is currently joined.
func (s *SessionState) Active() bool {
	var active bool
	s.withLock(func() { active = s.CurrentChannelID != "" })
	return active
}

// VolumeFor returns the effective volume fraction (0.0..2.0) for a peer,
// defaulting to 1.0 (100%) when unset.
func (s *SessionState) VolumeFor(peerID string) float64 {
	var pct int
	s.withLock(func() {
		v, ok := s.UserVolumes[peerID]
		if !ok {
			v = 100
		}
		pct = v
	})
	return float64(pct) / 100.0
}

// SetVolume records a user volume in 0..200 percent.
func (s *SessionState) SetVolume(peerID string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 200 {
		percent = 200
	}
	s.withLock(func() { s.UserVolumes[peerID] = percent })
}

// SetWatching sets WatchingUserID, enforcing the invariant that it is
// non-empty only when the peer is a known active sharer.
func (s *SessionState) SetWatching(peerID string) bool {
	var ok bool
	s.withLock(func() {
		if peerID == "" {
			s.WatchingUserID = ""
			ok = true
			return
		}
		if _, present := s.ActiveSharers[peerID]; present {
			s.WatchingUserID = peerID
			ok = true
		}
	})
	return ok
}

// PeerRecord is the per-peer auxiliary state created on first offer/join
// and destroyed on leave or explicit close. Exactly one PeerRecord exists
// per key in the Registry, and closing a peer clears every auxiliary map
// keyed by the same id (§3 invariant).
type PeerRecord struct {
	PeerID string
	UserID string

	PC *webrtc.PeerConnection

	Queue *peerQueue

	mu sync.Mutex

	PendingCandidates      []webrtc.ICECandidateInit
	PendingTrackInfoByID   map[string]TrackType
	PendingLegacyTrackFIFO []TrackType
	PendingRemoteTracks    map[string]*pendingRemoteTrack

	ScreenSenders map[string]*webrtc.RTPSender // trackID -> sender, per-viewer fanout bookkeeping lives in Fanout
	CameraSender  *webrtc.RTPSender

	GainChain *gainChain
	Analyser  *analyser

	LastICERestartAt   time.Time
	ICERestartInFlight bool
	ICERecoveryTimer   *time.Timer

	ScreenVideoStreams map[string]*remoteVideoStream // peerID -> latest screen stream (keyed by this peer)
	CameraVideoStreams map[string]*remoteVideoStream

	closed bool
}

type pendingRemoteTrack struct {
	track   *webrtc.TrackRemote
	timer   *time.Timer
	arrived time.Time
}

type remoteVideoStream struct {
	Track   *webrtc.TrackRemote
	Version uint64
}

func newPeerRecord(peerID, userID string, pc *webrtc.PeerConnection, q *peerQueue) *PeerRecord {
	return &PeerRecord{
		PeerID:                 peerID,
		UserID:                 userID,
		PC:                     pc,
		Queue:                  q,
		PendingTrackInfoByID:   make(map[string]TrackType),
		PendingLegacyTrackFIFO: nil,
		PendingRemoteTracks:    make(map[string]*pendingRemoteTrack),
		ScreenSenders:          make(map[string]*webrtc.RTPSender),
		ScreenVideoStreams:     make(map[string]*remoteVideoStream),
		CameraVideoStreams:     make(map[string]*remoteVideoStream),
	}
}

func (p *PeerRecord) withLock(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}
