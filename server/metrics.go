package server

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dungeonsync/protocol"
)

// Metrics counts what the server did. The atomic fields back the JSON
// /admin/stats view; the collectors back /metrics.
type Metrics struct {
	FramesIn      int64
	FramesOut     int64
	Malformed     int64 // frames dropped for bad fields
	Rejected      int64 // frames dropped by a handler
	Teardowns     int64 // connections closed for an undecodable frame
	SlowPeers     int64
	Accepted      int64
	Refused       int64 // connections turned away at the player limit
	ItemsSpawned  int64
	ItemsPickedUp int64
	Deaths        int64

	reg           *prometheus.Registry
	framesIn      *prometheus.CounterVec
	framesOut     prometheus.Counter
	dropped       *prometheus.CounterVec
	connections   prometheus.Gauge
	playersOnline prometheus.Gauge
	floorItems    prometheus.Gauge
}

// NewMetrics registers the collectors on a private registry so several
// servers can live in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		framesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dungeonsync",
			Name:      "frames_received_total",
			Help:      "Frames received, by command.",
		}, []string{"command"}),
		framesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dungeonsync",
			Name:      "frames_sent_total",
			Help:      "Frames written to clients.",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dungeonsync",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped, by reason.",
		}, []string{"reason"}),
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dungeonsync",
			Name:      "connections",
			Help:      "Open client connections.",
		}),
		playersOnline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dungeonsync",
			Name:      "players_online",
			Help:      "Players past the Online handshake.",
		}),
		floorItems: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dungeonsync",
			Name:      "floor_items",
			Help:      "Items lying on the floor.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) IncFrameIn(cmd protocol.Command) {
	atomic.AddInt64(&m.FramesIn, 1)
	m.framesIn.WithLabelValues(cmd.String()).Inc()
}

func (m *Metrics) IncFrameOut() {
	atomic.AddInt64(&m.FramesOut, 1)
	m.framesOut.Inc()
}

func (m *Metrics) IncMalformed() {
	atomic.AddInt64(&m.Malformed, 1)
	m.dropped.WithLabelValues("malformed").Inc()
}

func (m *Metrics) IncRejected() {
	atomic.AddInt64(&m.Rejected, 1)
	m.dropped.WithLabelValues("rejected").Inc()
}

func (m *Metrics) IncTeardown() {
	atomic.AddInt64(&m.Teardowns, 1)
	m.dropped.WithLabelValues("bad_discriminant").Inc()
}

func (m *Metrics) IncSlowPeer() {
	atomic.AddInt64(&m.SlowPeers, 1)
	m.dropped.WithLabelValues("slow_peer").Inc()
}

func (m *Metrics) IncAccepted() {
	atomic.AddInt64(&m.Accepted, 1)
	m.connections.Inc()
}

func (m *Metrics) ConnClosed() { m.connections.Dec() }

func (m *Metrics) IncRefused() { atomic.AddInt64(&m.Refused, 1) }

func (m *Metrics) IncSpawned() { atomic.AddInt64(&m.ItemsSpawned, 1) }

func (m *Metrics) IncPickedUp() { atomic.AddInt64(&m.ItemsPickedUp, 1) }

func (m *Metrics) IncDeaths() { atomic.AddInt64(&m.Deaths, 1) }

func (m *Metrics) SetPlayersOnline(n int) { m.playersOnline.Set(float64(n)) }

func (m *Metrics) SetFloorItems(n int) { m.floorItems.Set(float64(n)) }

// Snapshot returns a read-only copy for the admin API.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"frames_in":       atomic.LoadInt64(&m.FramesIn),
		"frames_out":      atomic.LoadInt64(&m.FramesOut),
		"malformed":       atomic.LoadInt64(&m.Malformed),
		"rejected":        atomic.LoadInt64(&m.Rejected),
		"teardowns":       atomic.LoadInt64(&m.Teardowns),
		"slow_peers":      atomic.LoadInt64(&m.SlowPeers),
		"accepted":        atomic.LoadInt64(&m.Accepted),
		"refused":         atomic.LoadInt64(&m.Refused),
		"items_spawned":   atomic.LoadInt64(&m.ItemsSpawned),
		"items_picked_up": atomic.LoadInt64(&m.ItemsPickedUp),
		"deaths":          atomic.LoadInt64(&m.Deaths),
	}
}
