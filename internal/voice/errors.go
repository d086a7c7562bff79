package voice

import "errors"

// Error taxonomy per spec.md §7. Callers distinguish these with errors.Is;
// everything else is an unclassified failure that propagates as-is.
var (
	// ErrPermissionDenied means the OS/runtime denied mic/camera/screen
	// capture. Surfaced to the user; join fails cleanly and fully reverts.
	ErrPermissionDenied = errors.New("voice: permission denied")

	// ErrCaptureCancelled means the user dismissed a capture picker
	// (screen-share dialog). Silent; no session change.
	ErrCaptureCancelled = errors.New("voice: capture cancelled by user")

	// ErrStaleSignal means a signaling message arrived for a generation
	// that no longer applies (answer while not have-local-offer, ICE
	// candidate with an unknown ufrag). Silently ignored.
	ErrStaleSignal = errors.New("voice: stale signaling message")

	// ErrDeviceUnavailable means device validation failed; the caller
	// should fall back to "default" and continue.
	ErrDeviceUnavailable = errors.New("voice: device unavailable")

	// ErrSessionReplaced means the server reported this session replaced
	// by another device. Terminal: full local teardown + notification.
	ErrSessionReplaced = errors.New("voice: session replaced by another device")

	// ErrNoActiveSession is returned by operations that require a joined
	// session when none is active.
	ErrNoActiveSession = errors.New("voice: no active session")

	// ErrAlreadyInSession is returned by Join when a session is already
	// active on this client.
	ErrAlreadyInSession = errors.New("voice: already in a voice session")

	// ErrPeerNotFound is returned when an operation targets an unknown
	// peer id.
	ErrPeerNotFound = errors.New("voice: peer not found")

	// ErrDeafenedMuteLocked is returned by SetMuted(false) while deafened,
	// since deafening implies muted until the caller explicitly undeafens.
	ErrDeafenedMuteLocked = errors.New("voice: cannot unmute while deafened")
)
