package voice

import (
	"context"
	"encoding/json"
)

// EventType identifies a signaling-transport event the core subscribes to.
type EventType string

const (
	EventUserJoinedVoice      EventType = "user_joined_voice"
	EventUserLeftVoice        EventType = "user_left_voice"
	EventReceiveSignal        EventType = "receive_signal"
	EventVoiceChannelUsers    EventType = "voice_channel_users"
	EventActiveSharers        EventType = "active_sharers"
	EventScreenShareStarted   EventType = "screen_share_started"
	EventScreenShareStopped   EventType = "screen_share_stopped"
	EventCameraStarted        EventType = "camera_started"
	EventCameraStopped        EventType = "camera_stopped"
	EventActiveCameras        EventType = "active_cameras"
	EventWatchStreamRequested EventType = "watch_stream_requested"
	EventStopWatchingRequest  EventType = "stop_watching_requested"
	EventVoiceSessionReplaced EventType = "voice_session_replaced"
	EventReconnected          EventType = "reconnected"
)

// UserJoinedVoicePayload is delivered with EventUserJoinedVoice.
type UserJoinedVoicePayload struct {
	UserID      string
	DisplayName string
}

// UserLeftVoicePayload is delivered with EventUserLeftVoice.
type UserLeftVoicePayload struct {
	UserID string
}

// ReceiveSignalPayload is delivered with EventReceiveSignal; Payload is the
// raw signal JSON (offer/answer/track-info/ICE candidate, per spec.md §6).
type ReceiveSignalPayload struct {
	FromUserID string
	Payload    json.RawMessage
}

// NamedPayload is delivered with EventScreenShareStarted/EventCameraStarted
// and their ActiveX siblings.
type NamedPayload struct {
	UserID      string
	DisplayName string
}

// SimplePayload carries a single user id, for stop events and watch
// requests.
type SimplePayload struct {
	UserID string
}

// VoiceSessionReplacedPayload is delivered with EventVoiceSessionReplaced.
type VoiceSessionReplacedPayload struct {
	Reason string
}

// EventHandler receives a decoded event payload (one of the *Payload types
// above, or map[string]string for VoiceChannelUsers/ActiveSharers/
// ActiveCameras snapshots).
type EventHandler func(payload interface{})

// Transport is the signaling channel the voice core consumes. It is a
// bidirectional, reliable, ordered RPC channel with reconnection
// semantics; its wire implementation is an external collaborator (per
// spec.md §1) — this interface is the only contract the core depends on.
type Transport interface {
	JoinVoiceChannel(ctx context.Context, channelID string, muted, deafened bool) error
	LeaveVoiceChannel(ctx context.Context, channelID string) error
	SendSignal(ctx context.Context, targetUserID string, payload json.RawMessage) error
	ModerateVoiceState(ctx context.Context, target string, muted, deafened bool) error
	UpdateVoiceState(ctx context.Context, muted, deafened bool) error
	NotifyScreenShare(ctx context.Context, channelID string, active bool) error
	NotifyCamera(ctx context.Context, channelID string, active bool) error
	RequestWatchStream(ctx context.Context, sharerID string) error
	StopWatchingStream(ctx context.Context, sharerID string) error
	VoiceHeartbeat(ctx context.Context) error
	GetVoiceChannelUsers(ctx context.Context, channelID string) (map[string]string, error)

	// On registers a handler for an event type. Registering again for the
	// same type replaces the previous handler.
	On(event EventType, handler EventHandler)
}

// TURNCredentials mirrors the TURN credential provider contract of
// spec.md §6.
type TURNCredentials struct {
	URLs       []string
	Username   string
	Credential string
}

// TURNCredentialsProvider supplies TURN REST credentials and notifies
// subscribers on renewal so the engine can apply fresh credentials to
// existing peers and trigger an ICE restart for all of them.
type TURNCredentialsProvider interface {
	Fetch(ctx context.Context) (TURNCredentials, error)
	Subscribe() <-chan TURNCredentials
}
