// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statePhase = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wxbridge_bridge_state",
		Help: "Connection phase (0 disconnected, 1 connecting, 2 connected, 3 reconnecting)",
	})

	connectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wxbridge_bridge_connect_attempts_total",
		Help: "Connection attempts by port and result (open, timeout, error)",
	}, []string{"port", "result"})

	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wxbridge_bridge_frames_total",
		Help: "Frames by direction and type",
	}, []string{"direction", "type"})

	droppedResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wxbridge_bridge_responses_dropped_total",
		Help: "api_response frames not delivered, by reason",
	}, []string{"reason"})

	callsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wxbridge_bridge_calls_in_flight",
		Help: "api_calls currently being answered",
	})
)
