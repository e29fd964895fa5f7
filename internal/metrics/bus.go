// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BusDroppedTotal counts host events that never reached a subscriber.
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wxbridge_bus_dropped_total",
		Help: "Total number of in-memory bus message drops by topic and reason",
	}, []string{"topic", "reason"})

	// BusPublishedTotal counts published host events.
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wxbridge_bus_published_total",
		Help: "Total number of messages published on the in-memory bus",
	}, []string{"topic"})
)

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}
