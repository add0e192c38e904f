// Package metrics exposes prometheus instruments for the voice client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActivePeerLinks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicemesh_active_peer_links",
		Help: "Number of currently tracked peer links.",
	})

	SignalReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicemesh_signal_reconnects_total",
		Help: "Times the signaling transport dropped and re-entered the dial loop.",
	})

	SignalDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicemesh_signal_dropped_total",
		Help: "Outbound signaling messages dropped because the transport was not open.",
	})

	SignalMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicemesh_signal_messages_total",
		Help: "Signaling messages by direction and type.",
	}, []string{"direction", "type"})

	NegotiationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicemesh_negotiation_failures_total",
		Help: "SDP/ICE operations that failed and degraded a single peer link.",
	})
)
