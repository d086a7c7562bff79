package voice

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	defaultTurnPort      = 3478
	defaultTurnTLSPort   = 5349
	minCredentialTTL     = 5 * time.Minute
	defaultCredentialTTL = 12 * time.Hour
	openRelayUsername    = "openrelayproject"
	openRelayCredential  = "openrelayproject"
)

// ICEServer represents a single ICE server entry for WebRTC peers.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ICEConfigResponse is returned to the frontend with STUN/TURN configuration.
type ICEConfigResponse struct {
	Servers    []ICEServer `json:"servers"`
	TTLSeconds int64       `json:"ttl_seconds"`
	ExpiresAt  int64       `json:"expires_at"`
}

// ICECredentialsProvider generates TURN REST credentials for browser peers.
type ICECredentialsProvider struct {
	turnHost      string
	turnPort      int
	turnTLSPort   int
	turnSecret    string
	credentialTTL time.Duration

	publicHost string
	renewals   chan TURNCredentials
}

// NewICECredentialsProvider creates a provider using TURN server settings.
func NewICECredentialsProvider(turnHost string, turnPort, turnTLSPort int, turnSecret string, credentialTTL time.Duration) *ICECredentialsProvider {
	turnHost = strings.TrimSpace(turnHost)
	turnSecret = strings.TrimSpace(turnSecret)
	if turnPort <= 0 {
		turnPort = defaultTurnPort
	}
	if turnTLSPort <= 0 {
		turnTLSPort = defaultTurnTLSPort
	}
	if credentialTTL < minCredentialTTL {
		credentialTTL = defaultCredentialTTL
	}

	return &ICECredentialsProvider{
		turnHost:      turnHost,
		turnPort:      turnPort,
		turnTLSPort:   turnTLSPort,
		turnSecret:    turnSecret,
		credentialTTL: credentialTTL,
		renewals:      make(chan TURNCredentials, 1),
	}
}

// SetPublicHost records the fallback host used when no explicit TURN host
// is configured, matching BuildConfig's own fallback.
func (p *ICECredentialsProvider) SetPublicHost(host string) {
	p.publicHost = host
}

// Fetch implements TURNCredentialsProvider by adapting BuildConfig's
// richer ICEConfigResponse into the engine's narrower TURNCredentials
// shape: only the first TURN entry (the self-hosted one, when enabled)
// is surfaced, since that is the one whose renewal needs propagating.
func (p *ICECredentialsProvider) Fetch(ctx context.Context) (TURNCredentials, error) {
	resp := p.BuildConfig("", p.publicHost)
	for _, s := range resp.Servers {
		if s.Username != "" {
			return TURNCredentials{URLs: s.URLs, Username: s.Username, Credential: s.Credential}, nil
		}
	}
	return TURNCredentials{}, nil
}

// Subscribe returns a channel that receives fresh credentials whenever
// StartRenewalLoop mints a new set ahead of the previous set's expiry.
func (p *ICECredentialsProvider) Subscribe() <-chan TURNCredentials {
	return p.renewals
}

// StartRenewalLoop re-mints TURN credentials shortly before they expire
// and publishes them to Subscribe, until ctx is cancelled. The engine
// reacts to a renewal by restarting ICE on every peer so new credentials
// take effect without a full rejoin.
func (p *ICECredentialsProvider) StartRenewalLoop(ctx context.Context) {
	if !p.Enabled() {
		return
	}
	renewAfter := p.credentialTTL - p.credentialTTL/10
	if renewAfter <= 0 {
		renewAfter = p.credentialTTL
	}
	ticker := time.NewTicker(renewAfter)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			creds, err := p.Fetch(ctx)
			if err != nil {
				continue
			}
			select {
			case p.renewals <- creds:
			default:
			}
		}
	}
}

// Enabled returns true when TURN credentials can be generated.
func (p *ICECredentialsProvider) Enabled() bool {
	return p != nil && p.turnSecret != ""
}

// BuildConfig returns STUN defaults and TURN credentials when configured.
func (p *ICECredentialsProvider) BuildConfig(userID, publicHost string) ICEConfigResponse {
	resp := ICEConfigResponse{
		Servers: []ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{URLs: []string{"stun:stun1.l.google.com:19302"}},
		},
	}

	if !p.Enabled() {
		return resp
	}

	turnHost := normalizeHost(p.turnHost)
	if turnHost == "" {
		turnHost = normalizeHost(publicHost)
	}
	if turnHost == "" {
		return resp
	}

	ttl := p.credentialTTL
	if ttl < minCredentialTTL {
		ttl = minCredentialTTL
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl).Unix()
	cleanUserID := sanitizeUserID(userID)
	username := fmt.Sprintf("%d:%s", expiresAt, cleanUserID)

	mac := hmac.New(sha1.New, []byte(p.turnSecret))
	_, _ = mac.Write([]byte(username))
	credential := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	turnURLs := []string{
		"stun:" + turnHost + ":" + strconv.Itoa(p.turnPort),
		"turn:" + turnHost + ":" + strconv.Itoa(p.turnPort) + "?transport=udp",
		"turn:" + turnHost + ":" + strconv.Itoa(p.turnPort) + "?transport=tcp",
	}
	if p.turnTLSPort > 0 {
		turnURLs = append(turnURLs, "turns:"+turnHost+":"+strconv.Itoa(p.turnTLSPort)+"?transport=tcp")
	}

	resp.Servers = append(resp.Servers, ICEServer{
		URLs:       turnURLs,
		Username:   username,
		Credential: credential,
	})

	// Keep a public relay fallback available for server-mode browser clients.
	// This mirrors the fallback already used in the P2P voice engine and helps
	// when self-hosted TURN is unreachable from remote NATs.
	resp.Servers = append(resp.Servers, ICEServer{
		URLs: []string{
			"turn:openrelay.metered.ca:80",
			"turn:openrelay.metered.ca:443",
			"turns:openrelay.metered.ca:443",
		},
		Username:   openRelayUsername,
		Credential: openRelayCredential,
	})
	resp.TTLSeconds = int64(ttl.Seconds())
	resp.ExpiresAt = expiresAt
	return resp
}

// WebRTCConfiguration converts the response's server list into a
// pion/webrtc configuration suitable for Registry.
func (resp ICEConfigResponse) WebRTCConfiguration() webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(resp.Servers))
	for _, s := range resp.Servers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return webrtc.Configuration{ICEServers: servers}
}

func sanitizeUserID(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "anonymous"
	}
	userID = strings.ReplaceAll(userID, ":", "_")
	return userID
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		host = strings.TrimPrefix(strings.TrimPrefix(host, "http://"), "https://")
	}

	if parsedHost, _, err := net.SplitHostPort(host); err == nil {
		host = parsedHost
	}

	host = strings.Trim(host, "[]")
	return strings.TrimSpace(host)
}
