// Package metrics defines prometheus metric types and provides convenience
// methods to add accounting to various parts of the overlay node.
//
// When defining new operations or metrics, these are helpful values to track:
//  - things coming into or go out of the system: RPCs, events, packets.
//  - the success or error status of any of the above.
//  - the distribution of processing latency.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCsReceived counts inbound RPCs by kind and outcome ("ok",
	// "decode_error", "dropped", "accepted", "forwarded", "delivered").
	//
	// Provides metrics:
	//   overlay_rpcs_received_total
	// Example usage:
	//   metrics.RPCsReceived.With(prometheus.Labels{"kind": "hrtbt", "outcome": "ok"}).Inc()
	RPCsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlay_rpcs_received_total",
			Help: "Number of RPCs received, by kind and outcome.",
		}, []string{"kind", "outcome"})

	// RPCsSent counts outbound RPCs by kind and outcome ("ok", "encode_error",
	// "transport_error").
	RPCsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlay_rpcs_sent_total",
			Help: "Number of RPCs sent, by kind and outcome.",
		}, []string{"kind", "outcome"})

	// EventsEmitted counts locally originated events by kind.
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlay_events_emitted_total",
			Help: "Number of events originated locally, by kind.",
		}, []string{"kind"})

	// EventsDispatched counts events handed to the reactor by kind.
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlay_events_dispatched_total",
			Help: "Number of events dispatched to the reactor, by kind.",
		}, []string{"kind"})

	// NeighborTableOccupancy reports the current number of entries held in
	// the neighbor table.
	NeighborTableOccupancy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "overlay_neighbor_table_occupancy",
			Help: "Current number of entries in the neighbor table.",
		})
)

// init() prints a log message to let the user know that the package has been
// loaded and the metrics registered. The metrics are auto-registered, which
// means they are registered as soon as this package is loaded, and the exact
// time this occurs (and whether this occurs at all in a given context) can be
// opaque.
func init() {
	log.Println("Prometheus metrics in overlay.metrics are registered.")
}
