package voice

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// PeerStats is a snapshot of one peer's transport quality, sampled from
// pion's GetStats() report.
type PeerStats struct {
	PeerID          string
	RTTMillis       float64
	PacketsLost     uint64
	PacketsReceived uint64
	JitterSeconds   float64
	SampledAt       time.Time
}

// StatsCollector periodically samples WebRTC stats for every peer and
// republishes them as metrics; it holds no authoritative state of its
// own beyond the most recent sample per peer, so a peer that disappears
// between ticks is simply skipped on the next one.
type StatsCollector struct {
	registry *Registry
	metrics  SessionMetrics
	log      zerolog.Logger

	latest map[string]PeerStats
}

// NewStatsCollector constructs a StatsCollector bound to registry.
func NewStatsCollector(registry *Registry, metrics SessionMetrics, log zerolog.Logger) *StatsCollector {
	return &StatsCollector{
		registry: registry,
		metrics:  metrics,
		log:      log.With().Str("component", "stats").Logger(),
		latest:   make(map[string]PeerStats),
	}
}

// Run samples every interval until ctx is cancelled.
func (c *StatsCollector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sampleAll()
		}
	}
}

func (c *StatsCollector) sampleAll() {
	for _, rec := range c.registry.All() {
		stats := c.sampleOne(rec)
		c.latest[rec.PeerID] = stats
		c.metrics.ObserveRTTMillis(rec.PeerID, stats.RTTMillis)
	}
}

func (c *StatsCollector) sampleOne(rec *PeerRecord) PeerStats {
	report := rec.PC.GetStats()
	out := PeerStats{PeerID: rec.PeerID, SampledAt: time.Now()}

	for _, raw := range report {
		switch s := raw.(type) {
		case webrtc.InboundRTPStreamStats:
			out.PacketsReceived = uint64(s.PacketsReceived)
			out.PacketsLost = uint64(s.PacketsLost)
			out.JitterSeconds = s.Jitter
		case webrtc.CandidatePairStats:
			if s.Nominated {
				out.RTTMillis = s.CurrentRoundTripTime * 1000
			}
		}
	}
	return out
}

// Latest returns the most recent sample for peerID, or the zero value if
// none has been taken yet.
func (c *StatsCollector) Latest(peerID string) PeerStats {
	return c.latest[peerID]
}
