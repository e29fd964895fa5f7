// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wxbridge_batch_runs_total",
		Help: "Finished download runs by outcome",
	}, []string{"outcome"}) // completed, cancelled

	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wxbridge_batch_items_total",
		Help: "Download attempts by result",
	}, []string{"result"}) // ok, skipped, failed

	runActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wxbridge_batch_run_active",
		Help: "1 while a download run is in progress",
	})

	itemDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wxbridge_batch_item_duration_seconds",
		Help:    "Time the backend took to answer one download_video request",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 180, 600},
	})
)
