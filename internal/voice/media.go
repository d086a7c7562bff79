package voice

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// DeviceKind distinguishes the three capture categories a session
// resolves independently.
type DeviceKind string

const (
	DeviceKindAudioInput DeviceKind = "audioinput"
	DeviceKindAudioOutput DeviceKind = "audiooutput"
	DeviceKindVideoInput DeviceKind = "videoinput"
)

// Device describes one enumerated capture/playback endpoint. GroupID is
// frequently empty outside a browser host (most OS audio/video stacks do
// not expose a grouping concept); callers must tolerate that instead of
// depending on it always being populated.
type Device struct {
	ID      string
	Label   string
	GroupID string
	Kind    DeviceKind
}

const defaultDeviceID = "default"

// ResolveDevice implements the "default" pseudo-device resolution
// algorithm: when the requested id is the literal "default" pseudo-id,
// prefer a device sharing the current default's GroupID, then the first
// labeled non-default device, then simply the first non-default device.
// A concrete (non-"default") requested id that is present is returned
// unchanged; otherwise the same fallback applies as if "default" had been
// requested, and ErrDeviceUnavailable signals the caller to persist the
// fallback choice.
func ResolveDevice(requestedID string, devices []Device, kind DeviceKind) (string, error) {
	var ofKind []Device
	for _, d := range devices {
		if d.Kind == kind {
			ofKind = append(ofKind, d)
		}
	}
	if len(ofKind) == 0 {
		return defaultDeviceID, ErrDeviceUnavailable
	}

	var fallbackErr error
	if requestedID != "" && requestedID != defaultDeviceID {
		for _, d := range ofKind {
			if d.ID == requestedID {
				return d.ID, nil
			}
		}
		// Fall through: requested device vanished (unplugged). Resolve as
		// if "default" had been requested and report it.
		fallbackErr = ErrDeviceUnavailable
	}

	var defaultGroupID string
	for _, d := range ofKind {
		if d.ID == defaultDeviceID {
			defaultGroupID = d.GroupID
			break
		}
	}

	if defaultGroupID != "" {
		for _, d := range ofKind {
			if d.ID != defaultDeviceID && d.GroupID == defaultGroupID {
				return d.ID, fallbackErr
			}
		}
	}

	for _, d := range ofKind {
		if d.ID != defaultDeviceID && d.Label != "" {
			return d.ID, fallbackErr
		}
	}

	for _, d := range ofKind {
		if d.ID != defaultDeviceID {
			return d.ID, fallbackErr
		}
	}

	if requestedID != "" && requestedID != defaultDeviceID {
		return defaultDeviceID, ErrDeviceUnavailable
	}
	return defaultDeviceID, nil
}

// LocalMediaHandle is the result of a successful capture attempt: the
// local tracks that were added to a PeerConnection, and a Close that
// releases the underlying hardware.
type LocalMediaHandle struct {
	AudioTrack webrtc.TrackLocal
	VideoTrack webrtc.TrackLocal
	Close      func()
}

// mediaProvider is implemented per-platform (media_linux.go / media_other.go)
// and supplies device enumeration plus capture. The Local Media Manager
// (session.go) depends only on this interface, never on pion/mediadevices
// directly, so platform dispatch stays confined to the two build-tagged
// files.
type mediaProvider interface {
	EnumerateDevices() []Device
	CaptureMicrophone(deviceID string, proc AudioProcessing) (*LocalMediaHandle, error)
	CaptureCamera(deviceID string) (*LocalMediaHandle, error)
}

// noCaptureProvider is used whenever platform capture is unavailable
// (build without hardware drivers, or capture attempts exhausted); every
// call fails with ErrDeviceUnavailable so callers fall back to
// receive-only, matching goop2's media_other.go behavior.
type noCaptureProvider struct{}

func (noCaptureProvider) EnumerateDevices() []Device { return nil }

func (noCaptureProvider) CaptureMicrophone(string, AudioProcessing) (*LocalMediaHandle, error) {
	return nil, fmt.Errorf("%w: no microphone capture backend", ErrDeviceUnavailable)
}

func (noCaptureProvider) CaptureCamera(string) (*LocalMediaHandle, error) {
	return nil, fmt.Errorf("%w: no camera capture backend", ErrDeviceUnavailable)
}

// addRecvOnlyTransceivers configures pc to receive remote audio/video
// without publishing any local track, used when local capture fails
// entirely so the mesh connection still carries inbound media.
func addRecvOnlyTransceivers(pc *webrtc.PeerConnection) error {
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fmt.Errorf("voice: add recvonly audio transceiver: %w", err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fmt.Errorf("voice: add recvonly video transceiver: %w", err)
	}
	return nil
}
