package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warrenio/riftline/internal/voice"
)

// WSTransport adapts a Client's WebSocket connection to voice.Transport.
// It reuses the existing peer/channel machinery (join, leave, peer list,
// generic offer/answer/candidate forwarding) rather than a parallel
// protocol: a voice channel is a regular signaling channel and each
// participant's peer ID is its user ID, so one mesh peer connection
// exists per remote user.
type WSTransport struct {
	client      *Client
	serverID    string
	localUserID string
	displayName string
	avatarURL   string
	logger      zerolog.Logger

	mu       sync.Mutex
	handlers map[voice.EventType]voice.EventHandler

	usersMu sync.Mutex
	usersCh chan PeerListPayload

	// queryMu keeps GetVoiceChannelUsers to one query in flight.
	queryMu sync.Mutex
}

// NewWSTransport wires client into a voice.Transport for localUserID within
// serverID. Connect must already have been called (or be called afterward)
// on client.
func NewWSTransport(client *Client, serverID, localUserID, displayName, avatarURL string, logger zerolog.Logger) *WSTransport {
	t := &WSTransport{
		client:      client,
		serverID:    serverID,
		localUserID: localUserID,
		displayName: displayName,
		avatarURL:   avatarURL,
		logger:      logger.With().Str("component", "voice-transport").Logger(),
		handlers:    make(map[voice.EventType]voice.EventHandler),
	}
	t.wireHandlers()
	return t
}

func (t *WSTransport) wireHandlers() {
	t.client.On(SignalPeerJoined, func(sig *Signal) {
		var p JoinPayload
		if err := sig.DecodePayload(&p); err != nil {
			t.logger.Warn().Err(err).Msg("bad peer_joined payload")
			return
		}
		if p.UserID == t.localUserID {
			return
		}
		t.dispatch(voice.EventUserJoinedVoice, voice.UserJoinedVoicePayload{UserID: p.UserID, DisplayName: p.Username})
	})
	t.client.On(SignalPeerLeft, func(sig *Signal) {
		t.dispatch(voice.EventUserLeftVoice, voice.UserLeftVoicePayload{UserID: sig.From})
	})
	t.client.On(SignalPeerList, func(sig *Signal) {
		var p PeerListPayload
		if err := sig.DecodePayload(&p); err != nil {
			t.logger.Warn().Err(err).Msg("bad peer_list payload")
			return
		}
		t.usersMu.Lock()
		ch := t.usersCh
		t.usersCh = nil
		t.usersMu.Unlock()
		if ch != nil {
			ch <- p
			return
		}
		t.dispatch(voice.EventVoiceChannelUsers, peerListToUsers(p))
	})
	t.client.On(SignalVoiceSignal, func(sig *Signal) {
		var p VoiceSignalPayload
		if err := sig.DecodePayload(&p); err != nil {
			t.logger.Warn().Err(err).Msg("bad voice_signal payload")
			return
		}
		t.dispatch(voice.EventReceiveSignal, voice.ReceiveSignalPayload{FromUserID: sig.From, Payload: p.Payload})
	})
	t.client.On(SignalScreenShareState, func(sig *Signal) {
		var p ShareStatePayload
		if err := sig.DecodePayload(&p); err != nil {
			return
		}
		event := voice.EventScreenShareStopped
		if p.Active {
			event = voice.EventScreenShareStarted
		}
		t.dispatch(event, voice.NamedPayload{UserID: sig.From})
	})
	t.client.On(SignalCameraState, func(sig *Signal) {
		var p ShareStatePayload
		if err := sig.DecodePayload(&p); err != nil {
			return
		}
		event := voice.EventCameraStopped
		if p.Active {
			event = voice.EventCameraStarted
		}
		t.dispatch(event, voice.NamedPayload{UserID: sig.From})
	})
	t.client.On(SignalWatchRequest, func(sig *Signal) {
		t.dispatch(voice.EventWatchStreamRequested, voice.SimplePayload{UserID: sig.From})
	})
	t.client.On(SignalStopWatching, func(sig *Signal) {
		t.dispatch(voice.EventStopWatchingRequest, voice.SimplePayload{UserID: sig.From})
	})
	t.client.On(SignalVoiceSessionReplaced, func(sig *Signal) {
		var p SessionReplacedPayload
		_ = sig.DecodePayload(&p)
		t.dispatch(voice.EventVoiceSessionReplaced, voice.VoiceSessionReplacedPayload{Reason: p.Reason})
	})
}

func peerListToUsers(p PeerListPayload) map[string]string {
	users := make(map[string]string, len(p.Peers))
	for _, peer := range p.Peers {
		users[peer.UserID] = peer.Username
	}
	return users
}

func (t *WSTransport) dispatch(event voice.EventType, payload interface{}) {
	t.mu.Lock()
	handler := t.handlers[event]
	t.mu.Unlock()
	if handler != nil {
		handler(payload)
	}
}

func (t *WSTransport) On(event voice.EventType, handler voice.EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = handler
}

func (t *WSTransport) JoinVoiceChannel(ctx context.Context, channelID string, muted, deafened bool) error {
	return t.client.JoinChannel(t.serverID, channelID, JoinPayload{
		UserID:    t.localUserID,
		PeerID:    t.localUserID,
		Username:  t.displayName,
		AvatarURL: t.avatarURL,
		Muted:     muted,
		Deafened:  deafened,
	})
}

func (t *WSTransport) LeaveVoiceChannel(ctx context.Context, channelID string) error {
	return t.client.LeaveChannel(t.serverID, channelID, t.localUserID)
}

func (t *WSTransport) SendSignal(ctx context.Context, targetUserID string, payload json.RawMessage) error {
	sig, err := NewSignal(SignalVoiceSignal, t.localUserID, VoiceSignalPayload{ToUserID: targetUserID, Payload: payload})
	if err != nil {
		return err
	}
	sig.To = targetUserID
	return t.client.Send(sig)
}

func (t *WSTransport) ModerateVoiceState(ctx context.Context, target string, muted, deafened bool) error {
	sig, err := NewSignal(SignalModerateVoice, t.localUserID, ModerateVoicePayload{TargetUserID: target, Muted: muted, Deafened: deafened})
	if err != nil {
		return err
	}
	sig.To = target
	return t.client.Send(sig)
}

func (t *WSTransport) UpdateVoiceState(ctx context.Context, muted, deafened bool) error {
	sig, err := NewSignal(SignalPeerState, t.localUserID, PeerStatePayload{PeerID: t.localUserID, Muted: muted, Deafened: deafened})
	if err != nil {
		return err
	}
	return t.client.Send(sig)
}

func (t *WSTransport) NotifyScreenShare(ctx context.Context, channelID string, active bool) error {
	sig, err := NewSignal(SignalScreenShareState, t.localUserID, ShareStatePayload{Active: active})
	if err != nil {
		return err
	}
	sig.ChannelID = channelID
	return t.client.Send(sig)
}

func (t *WSTransport) NotifyCamera(ctx context.Context, channelID string, active bool) error {
	sig, err := NewSignal(SignalCameraState, t.localUserID, ShareStatePayload{Active: active})
	if err != nil {
		return err
	}
	sig.ChannelID = channelID
	return t.client.Send(sig)
}

func (t *WSTransport) RequestWatchStream(ctx context.Context, sharerID string) error {
	sig, err := NewSignal(SignalWatchRequest, t.localUserID, WatchRequestPayload{SharerID: sharerID})
	if err != nil {
		return err
	}
	sig.To = sharerID
	return t.client.Send(sig)
}

func (t *WSTransport) StopWatchingStream(ctx context.Context, sharerID string) error {
	sig, err := NewSignal(SignalStopWatching, t.localUserID, WatchRequestPayload{SharerID: sharerID})
	if err != nil {
		return err
	}
	sig.To = sharerID
	return t.client.Send(sig)
}

func (t *WSTransport) VoiceHeartbeat(ctx context.Context) error {
	sig, err := NewSignal(SignalVoiceHeartbeat, t.localUserID, nil)
	if err != nil {
		return err
	}
	return t.client.Send(sig)
}

// GetVoiceChannelUsers requests a fresh peer list and waits for the
// server's reply. The wire protocol carries no correlation id, so only
// one query may be in flight at a time; queryMu makes concurrent callers
// (Session queries from Join, heartbeatLoop and handleReconnected) wait
// their turn.
func (t *WSTransport) GetVoiceChannelUsers(ctx context.Context, channelID string) (map[string]string, error) {
	t.queryMu.Lock()
	defer t.queryMu.Unlock()

	ch := make(chan PeerListPayload, 1)
	t.usersMu.Lock()
	t.usersCh = ch
	t.usersMu.Unlock()

	sig, err := NewSignal(SignalVoiceChannelUsers, t.localUserID, nil)
	if err != nil {
		return nil, err
	}
	sig.ChannelID = channelID
	if err := t.client.Send(sig); err != nil {
		t.usersMu.Lock()
		t.usersCh = nil
		t.usersMu.Unlock()
		return nil, err
	}

	select {
	case p := <-ch:
		return peerListToUsers(p), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return nil, fmt.Errorf("signaling: voice channel users request timed out")
	}
}
