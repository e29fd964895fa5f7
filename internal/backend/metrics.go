// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package backend

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wxbridge_backend_requests_total",
		Help: "Backend HTTP requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wxbridge_backend_request_duration_seconds",
		Help:    "Backend HTTP request latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"endpoint"})
)

func observe(endpoint string, err error, start time.Time) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelled):
		outcome = "cancelled"
	case errors.Is(err, ErrNoAddress):
		outcome = "no_address"
	default:
		outcome = "error"
	}
	requestsTotal.WithLabelValues(endpoint, outcome).Inc()
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
