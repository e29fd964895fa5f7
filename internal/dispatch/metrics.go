// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dispatch

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wxbridge_dispatch_calls_total",
		Help: "Dispatched api_calls by key and response code",
	}, []string{"key", "code"})

	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wxbridge_dispatch_call_duration_seconds",
		Help:    "Time from api_call receipt to response, including the capability wait",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"key"})
)

// keyLabel bounds label cardinality to the known keys.
func keyLabel(key string) string {
	switch key {
	case KeyContactList, KeyFeedList, KeyFeedProfile:
		return key
	default:
		return "other"
	}
}

func codeLabel(code int) string {
	return strconv.Itoa(code)
}
