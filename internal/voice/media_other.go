//go:build !linux

package voice

// newMediaProvider returns a provider with no working capture backend on
// platforms without a wired hardware driver (mirrors goop2's
// media_other.go receive-only fallback). Peers still connect and receive
// remote media; they simply add recvonly transceivers instead of local
// tracks.
func newMediaProvider() mediaProvider {
	return noCaptureProvider{}
}
