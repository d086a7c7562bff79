package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// ShellHooks lets the hosting desktop shell notify the voice core of
// UI-level events (window visibility, focus) without the voice package
// importing the shell. The core never changes routing because of focus;
// FocusedUserID is UI-only per the session data model.
type ShellHooks interface {
	OnVisibilityChange(fn func(visible bool))
	OnFocusChange(fn func(userID string))
}

// bufferedJoin holds a "user joined voice" event received before the
// authoritative channel snapshot, so it can be reconciled once the
// snapshot arrives instead of being dropped or acted on prematurely.
type bufferedJoin struct {
	peerID      string
	displayName string
	at          time.Time
}

// Session is the Voice Session Controller: the single entry point for
// join/leave, device selection, mute/deafen, screen-share and camera
// start/stop, and the glue that reconciles transport reconnects with
// mesh peer state. Exactly one Session is active per process.
type Session struct {
	mu sync.Mutex

	state     *SessionState
	registry  *Registry
	signaling *SignalingEngine
	demux     *Demuxer
	transport Transport
	media     mediaProvider
	turn      TURNCredentialsProvider
	log       zerolog.Logger
	metrics   SessionMetrics

	localUserID string

	gate      *localGate
	keepAlive *audioKeepAlive
	fanout    *Fanout
	stats     *StatsCollector

	micHandle    *LocalMediaHandle
	cameraHandle *LocalMediaHandle

	cancel context.CancelFunc

	joinedAt       time.Time
	bufferedJoins  []bufferedJoin
	rejoinProgress bool
	visible        bool
}

// SessionMetrics is the narrow metrics surface Session writes to,
// implemented by internal/observability's Prometheus registrations.
type SessionMetrics interface {
	SetPeerCount(n int)
	IncICERestart()
	IncGlare()
	ObserveTrackClassifyMillis(ms float64)
	ObserveRTTMillis(peerID string, ms float64)
}

// NoopMetrics discards every observation, used in tests.
type NoopMetrics struct{}

func (NoopMetrics) SetPeerCount(int)                       {}
func (NoopMetrics) IncICERestart()                         {}
func (NoopMetrics) IncGlare()                               {}
func (NoopMetrics) ObserveTrackClassifyMillis(float64)      {}
func (NoopMetrics) ObserveRTTMillis(string, float64)        {}

// NewSession constructs an idle Session bound to a transport, ICE
// configuration, local user id, and logger. Call Join to actually enter a
// channel.
func NewSession(transport Transport, iceCfg webrtc.Configuration, turn TURNCredentialsProvider, localUserID string, metrics SessionMetrics, log zerolog.Logger) *Session {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	s := &Session{
		state:       NewSessionState(),
		transport:   transport,
		media:       newMediaProvider(),
		turn:        turn,
		localUserID: localUserID,
		metrics:     metrics,
		log:         log.With().Str("component", "session").Logger(),
		visible:     true,
	}

	s.gate = newLocalGate(0.5,
		func() bool { return s.state.IsMuted },
		func() VoiceMode { return s.state.VoiceMode },
		func() bool { return s.state.PTTActive },
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.demux = NewDemuxer(log)
	s.demux.OnClassified = s.onTrackClassified

	s.registry = NewRegistry(ctx, iceCfg, PeerHooks{
		OnICECandidate:      func(peerID string, c webrtc.ICECandidateInit) { s.signaling.SendICECandidate(ctx, peerID, c) },
		OnTrack:             func(peerID string, t *webrtc.TrackRemote, r *webrtc.RTPReceiver) { s.onTrack(peerID, t, r) },
		OnConnState:         func(peerID string, st webrtc.ICEConnectionState) { s.onConnState(ctx, peerID, st) },
		OnNegotiationNeeded: func(peerID string) {},
	}, log)

	s.signaling = NewSignalingEngine(s.registry, transport, s.demux, localUserID, log)
	s.signaling.OnGlare = s.metrics.IncGlare
	s.fanout = NewFanout(s.registry, s.signaling, log)
	s.stats = NewStatsCollector(s.registry, metrics, log)

	s.keepAlive = newAudioKeepAlive(func() {})

	transport.On(EventUserJoinedVoice, s.handleUserJoined)
	transport.On(EventUserLeftVoice, s.handleUserLeft)
	transport.On(EventReceiveSignal, s.handleReceiveSignal)
	transport.On(EventVoiceSessionReplaced, s.handleSessionReplaced)
	transport.On(EventReconnected, s.handleReconnected)
	transport.On(EventWatchStreamRequested, s.handleWatchRequested)
	transport.On(EventStopWatchingRequest, s.handleStopWatching)

	return s
}

// State exposes the session's observable state for UI binding.
func (s *Session) State() *SessionState { return s.state }

// Join enters a voice channel: joins over signaling, fetches an
// authoritative participant snapshot, captures local media per current
// device selection, and starts the heartbeat/stats/keep-alive loops.
func (s *Session) Join(ctx context.Context, channelID string) error {
	if s.state.Active() {
		return ErrAlreadyInSession
	}

	if err := s.transport.JoinVoiceChannel(ctx, channelID, s.state.IsMuted, s.state.IsDeafened); err != nil {
		return fmt.Errorf("voice: join channel: %w", err)
	}

	s.state.withLock(func() {
		s.state.CurrentChannelID = channelID
		s.state.ConnectionState = ConnConnecting
	})

	s.mu.Lock()
	s.joinedAt = time.Now()
	s.mu.Unlock()

	s.captureLocalAudio()

	users, err := s.transport.GetVoiceChannelUsers(ctx, channelID)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to fetch voice channel snapshot")
	} else {
		s.reconcileSnapshot(ctx, users)
	}

	s.state.withLock(func() { s.state.ConnectionState = ConnConnected })

	go s.heartbeatLoop(ctx)
	go s.stats.Run(ctx, StatsInterval)
	go s.keepAlive.Run(ctx)
	if s.turn != nil {
		go s.watchTURNRenewal(ctx)
	}

	return nil
}

// Leave tears down every peer and local capture and notifies signaling.
func (s *Session) Leave(ctx context.Context) error {
	channelID := ""
	s.state.withLock(func() { channelID = s.state.CurrentChannelID })
	if channelID == "" {
		return ErrNoActiveSession
	}

	s.registry.RemoveAll()
	s.releaseLocalMedia()

	err := s.transport.LeaveVoiceChannel(ctx, channelID)

	s.state.withLock(func() {
		s.state.CurrentChannelID = ""
		s.state.ConnectionState = ConnDisconnected
		s.state.Participants = make(map[string]string)
		s.state.ActiveSharers = make(map[string]string)
		s.state.ActiveCameras = make(map[string]string)
		s.state.WatchingUserID = ""
	})

	if err != nil {
		return fmt.Errorf("voice: leave channel: %w", err)
	}
	return nil
}

// Close releases background goroutines; call on process shutdown.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) captureLocalAudio() {
	deviceID := s.state.InputDeviceID
	proc := s.state.AudioProcessing
	handle, err := s.media.CaptureMicrophone(deviceID, proc)
	if err != nil {
		s.log.Warn().Err(err).Msg("microphone capture unavailable, proceeding without local audio")
		return
	}
	s.mu.Lock()
	s.micHandle = handle
	s.mu.Unlock()
}

func (s *Session) releaseLocalMedia() {
	s.mu.Lock()
	mic, cam := s.micHandle, s.cameraHandle
	s.micHandle, s.cameraHandle = nil, nil
	s.mu.Unlock()
	if mic != nil && mic.Close != nil {
		mic.Close()
	}
	if cam != nil && cam.Close != nil {
		cam.Close()
	}
}

// reconcileSnapshot merges the authoritative participant list against
// any "user joined voice" events buffered during the initial window, then
// initiates a mesh peer (offerer role determined by user id ordering so
// exactly one side offers) for every participant not yet connected.
func (s *Session) reconcileSnapshot(ctx context.Context, users map[string]string) {
	s.state.withLock(func() {
		s.state.Participants = users
	})

	s.mu.Lock()
	buffered := s.bufferedJoins
	s.bufferedJoins = nil
	s.mu.Unlock()

	seen := make(map[string]bool, len(users))
	for peerID, name := range users {
		seen[peerID] = true
		s.ensurePeer(ctx, peerID, name)
	}
	for _, b := range buffered {
		if seen[b.peerID] {
			continue
		}
		if time.Since(b.at) > BufferedJoinWindow {
			continue
		}
		s.state.withLock(func() { s.state.Participants[b.peerID] = b.displayName })
		s.ensurePeer(ctx, b.peerID, b.displayName)
	}
}

// ensurePeer initiates an offer only from the lexicographically smaller
// user id, so exactly one side of every pair offers and the other waits
// for it; this mirrors the polite/impolite tiebreak signaling uses for
// glare so the two never disagree about who leads.
func (s *Session) ensurePeer(ctx context.Context, peerID, displayName string) {
	if s.registry.Get(peerID) != nil {
		return
	}
	if s.localUserID < peerID {
		if err := s.signaling.InitiateOffer(ctx, peerID, peerID); err != nil {
			s.log.Warn().Err(err).Str("peer", peerID).Msg("failed to initiate offer")
		}
	} else {
		if _, err := s.registry.Create(peerID, peerID); err != nil {
			s.log.Warn().Err(err).Str("peer", peerID).Msg("failed to pre-create peer")
		}
	}
}

func (s *Session) handleUserJoined(payload interface{}) {
	p, ok := payload.(UserJoinedVoicePayload)
	if !ok {
		return
	}

	s.mu.Lock()
	withinWindow := time.Since(s.joinedAt) < BufferedJoinWindow
	if withinWindow {
		s.bufferedJoins = append(s.bufferedJoins, bufferedJoin{peerID: p.UserID, displayName: p.DisplayName, at: time.Now()})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.state.withLock(func() { s.state.Participants[p.UserID] = p.DisplayName })
	s.ensurePeer(context.Background(), p.UserID, p.DisplayName)
}

func (s *Session) handleUserLeft(payload interface{}) {
	p, ok := payload.(UserLeftVoicePayload)
	if !ok {
		return
	}
	s.registry.Remove(p.UserID)
	s.state.withLock(func() {
		delete(s.state.Participants, p.UserID)
		delete(s.state.ActiveSharers, p.UserID)
		delete(s.state.ActiveCameras, p.UserID)
		delete(s.state.Speaking, p.UserID)
		if s.state.WatchingUserID == p.UserID {
			s.state.WatchingUserID = ""
		}
	})
}

func (s *Session) handleReceiveSignal(payload interface{}) {
	p, ok := payload.(ReceiveSignalPayload)
	if !ok {
		return
	}
	if err := s.signaling.HandleSignal(context.Background(), p.FromUserID, p.FromUserID, p.Payload); err != nil {
		s.log.Debug().Err(err).Str("from", p.FromUserID).Msg("signal handling error")
	}
}

func (s *Session) handleSessionReplaced(interface{}) {
	s.registry.RemoveAll()
	s.releaseLocalMedia()
	s.state.withLock(func() {
		s.state.CurrentChannelID = ""
		s.state.ConnectionState = ConnDisconnected
	})
}

func (s *Session) handleReconnected(interface{}) {
	s.mu.Lock()
	if s.rejoinProgress || !s.visible {
		s.mu.Unlock()
		return
	}
	s.rejoinProgress = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.rejoinProgress = false
		s.mu.Unlock()
	}()

	channelID := ""
	s.state.withLock(func() { channelID = s.state.CurrentChannelID })
	if channelID == "" {
		return
	}

	users, err := s.transport.GetVoiceChannelUsers(context.Background(), channelID)
	if err != nil {
		s.log.Warn().Err(err).Msg("reconnect reconciliation failed")
		return
	}
	s.reconcileSnapshot(context.Background(), users)
}

func (s *Session) handleWatchRequested(payload interface{}) {
	p, ok := payload.(SimplePayload)
	if !ok {
		return
	}
	s.fanout.AddViewer(context.Background(), p.UserID)
}

func (s *Session) handleStopWatching(payload interface{}) {
	p, ok := payload.(SimplePayload)
	if !ok {
		return
	}
	s.fanout.RemoveViewer(p.UserID)
}

func (s *Session) onTrack(peerID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	rec := s.registry.Get(peerID)
	if rec == nil {
		return
	}
	start := time.Now()
	s.demux.OnTrack(rec, track, receiver)
	s.metrics.ObserveTrackClassifyMillis(float64(time.Since(start).Milliseconds()))
}

func (s *Session) onTrackClassified(peerID string, trackType TrackType, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	rec := s.registry.Get(peerID)
	if rec == nil {
		return
	}
	switch trackType {
	case TrackMic:
		// Audio decode/gain/analyser wiring happens off the signaling
		// queue; RTP packets are read directly from track by the audio
		// pipeline goroutine started here.
		go s.pumpRemoteAudio(rec, track)
	case TrackCamera:
		rec.withLock(func() {
			rec.CameraVideoStreams[peerID] = &remoteVideoStream{Track: track}
		})
		s.state.withLock(func() { s.state.ActiveCameras[peerID] = s.state.Participants[peerID] })
	case TrackScreen, TrackScreenAudio:
		rec.withLock(func() {
			rec.ScreenVideoStreams[peerID] = &remoteVideoStream{Track: track}
		})
	}
}

// pumpRemoteAudio reads RTP packets off the remote track, resequences
// them through a jitter buffer to absorb network reordering, and feeds
// the resulting samples into the peer's analyser and gain chain. It
// runs for the lifetime of the remote track; read failures end the
// loop since the track itself has gone away.
func (s *Session) pumpRemoteAudio(rec *PeerRecord, track *webrtc.TrackRemote) {
	jb := NewJitterBuffer(DefaultJitterConfig())
	done := make(chan struct{})
	defer close(done)

	go s.drainJitterBuffer(rec, jb, done)

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		jb.Push(pkt.Payload, pkt.SequenceNumber, pkt.Timestamp)
	}
}

// drainJitterBuffer pops resequenced packets on AnalyserTick, the same
// cadence the gain chain ramps on, and publishes speaking state.
func (s *Session) drainJitterBuffer(rec *PeerRecord, jb *JitterBuffer, done <-chan struct{}) {
	ticker := time.NewTicker(AnalyserTick)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for {
				data := jb.Pop()
				if data == nil {
					break
				}
				samples := int16ToFloat32(bytesToInt16(data))
				rec.Analyser.Feed(samples)
				speaking := rec.Analyser.Speaking()
				s.state.withLock(func() {
					if speaking {
						s.state.Speaking[rec.PeerID] = true
					} else {
						delete(s.state.Speaking, rec.PeerID)
					}
				})
				rec.GainChain.SetTarget(s.state.VolumeFor(rec.PeerID))
			}
		}
	}
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

func (s *Session) onConnState(ctx context.Context, peerID string, state webrtc.ICEConnectionState) {
	s.signaling.HandleConnectionState(ctx, peerID, state)
	if state == webrtc.ICEConnectionStateFailed {
		s.metrics.IncICERestart()
	}
	s.metrics.SetPeerCount(s.registry.Count())
}

func (s *Session) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.transport.VoiceHeartbeat(ctx); err != nil {
				s.log.Warn().Err(err).Msg("heartbeat failed")
				continue
			}
			channelID := ""
			s.state.withLock(func() { channelID = s.state.CurrentChannelID })
			if channelID == "" {
				continue
			}
			users, err := s.transport.GetVoiceChannelUsers(ctx, channelID)
			if err != nil {
				continue
			}
			s.reconcileSnapshot(ctx, users)
		}
	}
}

func (s *Session) watchTURNRenewal(ctx context.Context) {
	ch := s.turn.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			s.log.Info().Msg("turn credentials renewed, restarting all peers")
			s.signaling.RestartAll(ctx)
		}
	}
}

// SetVisible is wired to ShellHooks.OnVisibilityChange; it gates the
// reconnect-driven reconciliation so a backgrounded window does not
// trigger a rejoin storm.
func (s *Session) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
}

// SetFocused is wired to ShellHooks.OnFocusChange; purely a UI affordance
// and never influences routing or gating.
func (s *Session) SetFocused(userID string) {
	s.state.withLock(func() { s.state.FocusedUserID = userID })
}

// SetMuted updates the local mute flag and notifies signaling so other
// participants' UI reflects it; deafening already implies muted, so
// un-muting while deafened is rejected.
func (s *Session) SetMuted(ctx context.Context, muted bool) error {
	deafened := false
	s.state.withLock(func() { deafened = s.state.IsDeafened })
	if deafened && !muted {
		return ErrDeafenedMuteLocked
	}
	s.state.withLock(func() { s.state.IsMuted = muted })
	return s.transport.UpdateVoiceState(ctx, muted, deafened)
}

// SetDeafened updates the local deafen flag; deafening forces mute.
func (s *Session) SetDeafened(ctx context.Context, deafened bool) error {
	muted := deafened
	s.state.withLock(func() {
		if deafened {
			s.state.IsMuted = true
		}
		s.state.IsDeafened = deafened
		muted = s.state.IsMuted
	})
	return s.transport.UpdateVoiceState(ctx, muted, deafened)
}

// SetVoiceMode switches between voice-activity and push-to-talk gating.
func (s *Session) SetVoiceMode(mode VoiceMode) {
	s.state.withLock(func() { s.state.VoiceMode = mode })
}

// SetPTTActive reports whether the push-to-talk key is currently held.
// Only meaningful in ModePushToTalk; harmless no-op otherwise.
func (s *Session) SetPTTActive(active bool) {
	s.state.withLock(func() { s.state.PTTActive = active })
}

// SetInputSensitivity adjusts the voice-activity RMS threshold live.
func (s *Session) SetInputSensitivity(sensitivity float64) {
	s.state.withLock(func() { s.state.InputSensitivity = sensitivity })
	s.gate.SetSensitivity(sensitivity)
}

// SetVolume adjusts local playback volume for one remote peer, 0..200
// percent; the running gain chain picks it up on its next tick.
func (s *Session) SetVolume(peerID string, percent int) {
	s.state.SetVolume(peerID, percent)
}

// SelectInputDevice re-resolves and re-opens the microphone capture on
// the chosen device, replacing any current capture in place.
func (s *Session) SelectInputDevice(deviceID string) error {
	resolved, err := ResolveDevice(deviceID, s.media.EnumerateDevices(), DeviceKindAudioInput)
	s.state.withLock(func() { s.state.InputDeviceID = resolved })
	if err != nil && !errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	if !s.state.Active() {
		return nil
	}
	s.releaseMic()
	s.captureLocalAudio()
	return nil
}

// SelectOutputDevice records the chosen playback device id; actual
// routing to hardware happens in the shell's audio output layer, which
// reads this back through State().
func (s *Session) SelectOutputDevice(deviceID string) error {
	resolved, err := ResolveDevice(deviceID, s.media.EnumerateDevices(), DeviceKindAudioOutput)
	s.state.withLock(func() { s.state.OutputDeviceID = resolved })
	if err != nil && !errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return nil
}

func (s *Session) releaseMic() {
	s.mu.Lock()
	mic := s.micHandle
	s.micHandle = nil
	s.mu.Unlock()
	if mic != nil && mic.Close != nil {
		mic.Close()
	}
}

// StartCamera captures the chosen camera device and publishes it to
// every currently connected peer.
func (s *Session) StartCamera(ctx context.Context, deviceID string) error {
	resolved, err := ResolveDevice(deviceID, s.media.EnumerateDevices(), DeviceKindVideoInput)
	if err != nil && !errors.Is(err, ErrDeviceUnavailable) {
		return fmt.Errorf("voice: resolve camera device: %w", err)
	}
	handle, err := s.media.CaptureCamera(resolved)
	if err != nil {
		return fmt.Errorf("voice: capture camera: %w", err)
	}

	s.mu.Lock()
	s.cameraHandle = handle
	s.mu.Unlock()
	s.state.withLock(func() { s.state.CameraDeviceID = resolved })

	s.fanout.SetLocalCameraTrack(handle.VideoTrack)
	s.fanout.PublishCameraToAll(ctx)
	channelID := ""
	s.state.withLock(func() { channelID = s.state.CurrentChannelID })
	return s.transport.NotifyCamera(ctx, channelID, true)
}

// StopCamera releases the local camera capture.
func (s *Session) StopCamera(ctx context.Context) error {
	s.mu.Lock()
	cam := s.cameraHandle
	s.cameraHandle = nil
	s.mu.Unlock()
	if cam != nil && cam.Close != nil {
		cam.Close()
	}
	s.fanout.SetLocalCameraTrack(nil)
	channelID := ""
	s.state.withLock(func() { channelID = s.state.CurrentChannelID })
	return s.transport.NotifyCamera(ctx, channelID, false)
}

// StartScreenShare publishes track as the local screen-share source;
// capture itself is the shell's responsibility (e.g. a frontend
// getDisplayMedia call bridged into a local webrtc track), since this
// package only manages mesh distribution of whatever track it is given.
func (s *Session) StartScreenShare(ctx context.Context, track webrtc.TrackLocal) error {
	s.fanout.SetLocalScreenTrack(track)
	channelID := ""
	s.state.withLock(func() { channelID = s.state.CurrentChannelID })
	return s.transport.NotifyScreenShare(ctx, channelID, true)
}

// StopScreenShare detaches the screen track from every current viewer.
func (s *Session) StopScreenShare(ctx context.Context) error {
	s.fanout.StopAll()
	channelID := ""
	s.state.withLock(func() { channelID = s.state.CurrentChannelID })
	return s.transport.NotifyScreenShare(ctx, channelID, false)
}

// RequestWatch asks to view sharerID's screen share.
func (s *Session) RequestWatch(ctx context.Context, sharerID string) error {
	return s.transport.RequestWatchStream(ctx, sharerID)
}

// StopWatch stops viewing the currently watched screen share, if any.
func (s *Session) StopWatch(ctx context.Context) error {
	sharerID := ""
	s.state.withLock(func() { sharerID = s.state.WatchingUserID })
	if sharerID == "" {
		return nil
	}
	s.state.SetWatching("")
	return s.transport.StopWatchingStream(ctx, sharerID)
}

// ToggleMuted flips the local mute flag and returns the new value. While
// deafened the flag is left unchanged and the unchanged state (still
// muted) is returned with ErrDeafenedMuteLocked, since deafening implies
// muted.
func (s *Session) ToggleMuted(ctx context.Context) (bool, error) {
	var muted bool
	s.state.withLock(func() { muted = s.state.IsMuted })
	next := !muted
	if err := s.SetMuted(ctx, next); err != nil {
		return muted, err
	}
	return next, nil
}

// ToggleDeafened flips the local deafen flag and returns the new value.
func (s *Session) ToggleDeafened(ctx context.Context) (bool, error) {
	var deafened bool
	s.state.withLock(func() { deafened = s.state.IsDeafened })
	next := !deafened
	if err := s.SetDeafened(ctx, next); err != nil {
		return deafened, err
	}
	return next, nil
}

// VoiceStatus is a flattened, JSON-friendly snapshot of session state for
// Wails bindings; unlike State() it never hands out the live, lock-guarded
// struct to the frontend bridge.
type VoiceStatus struct {
	ConnectionState string            `json:"connection_state"`
	ChannelID       string            `json:"channel_id"`
	Muted           bool              `json:"muted"`
	Deafened        bool              `json:"deafened"`
	VoiceMode       string            `json:"voice_mode"`
	Participants    map[string]string `json:"participants"`
	ActiveSharers   map[string]string `json:"active_sharers"`
	ActiveCameras   map[string]string `json:"active_cameras"`
	Speaking        []string          `json:"speaking"`
	WatchingUserID  string            `json:"watching_user_id"`
}

// GetStatus returns a point-in-time snapshot safe to hand to the frontend.
func (s *Session) GetStatus() VoiceStatus {
	var st VoiceStatus
	s.state.withLock(func() {
		st.ConnectionState = string(s.state.ConnectionState)
		st.ChannelID = s.state.CurrentChannelID
		st.Muted = s.state.IsMuted
		st.Deafened = s.state.IsDeafened
		st.VoiceMode = string(s.state.VoiceMode)
		st.Participants = cloneStringMap(s.state.Participants)
		st.ActiveSharers = cloneStringMap(s.state.ActiveSharers)
		st.ActiveCameras = cloneStringMap(s.state.ActiveCameras)
		st.WatchingUserID = s.state.WatchingUserID
		st.Speaking = make([]string, 0, len(s.state.Speaking))
		for id := range s.state.Speaking {
			st.Speaking = append(st.Speaking, id)
		}
	})
	return st
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
