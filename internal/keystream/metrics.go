// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package keystream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	derivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wxbridge_keystream_derivations_total",
		Help: "Keystream derivations by result (generated, cached, shared, error)",
	}, []string{"result"})

	generateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wxbridge_keystream_generate_seconds",
		Help:    "Time spent running the keystream generator",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wxbridge_keystream_cache_entries",
		Help: "Number of seeds held in the keystream cache",
	})
)
