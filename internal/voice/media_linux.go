//go:build linux

package voice

import (
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// mediadevicesProvider captures local audio/video via V4L2 and malgo
// (pion/mediadevices), the only platform with working hardware drivers
// in this stack today.
type mediadevicesProvider struct {
	codecSelector *mediadevices.CodecSelector
}

func newMediaProvider() mediaProvider {
	opusParams, err := opus.NewParams()
	if err != nil {
		return noCaptureProvider{}
	}
	return &mediadevicesProvider{
		codecSelector: mediadevices.NewCodecSelector(
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}
}

func (p *mediadevicesProvider) EnumerateDevices() []Device {
	var out []Device
	for _, d := range mediadevices.EnumerateDevices() {
		kind := DeviceKindAudioInput
		if d.Kind == mediadevices.VideoInput {
			kind = DeviceKindVideoInput
		}
		out = append(out, Device{
			ID:    d.DeviceID,
			Label: d.Label,
			Kind:  kind,
		})
	}
	return out
}

func (p *mediadevicesProvider) CaptureMicrophone(deviceID string, proc AudioProcessing) (*LocalMediaHandle, error) {
	constraints := mediadevices.MediaStreamConstraints{Codec: p.codecSelector}
	constraints.Audio = func(c *mediadevices.MediaTrackConstraints) {
		if deviceID != "" && deviceID != defaultDeviceID {
			c.DeviceID = prop.String(deviceID)
		}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: GetUserMedia audio: %v", ErrDeviceUnavailable, err)
	}
	tracks := stream.GetTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no audio track produced", ErrDeviceUnavailable)
	}
	track := tracks[0]
	return &LocalMediaHandle{
		AudioTrack: track.(webrtc.TrackLocal),
		Close:      func() { track.Close() },
	}, nil
}

func (p *mediadevicesProvider) CaptureCamera(deviceID string) (*LocalMediaHandle, error) {
	constraints := mediadevices.MediaStreamConstraints{Codec: p.codecSelector}
	constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
		if deviceID != "" && deviceID != defaultDeviceID {
			c.DeviceID = prop.String(deviceID)
		}
		// Exclude MJPEG: some cameras expose a V4L2 MJPEG node that emits
		// malformed frames and poisons downstream encoding.
		c.FrameFormat = prop.FrameFormatOneOf{
			frame.FormatYUYV,
			frame.FormatI420,
			frame.FormatI444,
			frame.FormatRGBA,
		}
		c.Width = prop.IntRanged{Max: 1280}
		c.Height = prop.IntRanged{Max: 720}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: GetUserMedia video: %v", ErrDeviceUnavailable, err)
	}
	tracks := stream.GetTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no video track produced", ErrDeviceUnavailable)
	}
	track := tracks[0]
	return &LocalMediaHandle{
		VideoTrack: track.(webrtc.TrackLocal),
		Close:      func() { track.Close() },
	}, nil
}
