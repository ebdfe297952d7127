// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rtmp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	controlRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restream_rtmp_control_requests_total",
		Help: "Calls to nginx-rtmp control endpoint candidates by outcome",
	}, []string{
		"operation", // stat|drop
		"result",    // success|failure
	})

	controlRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restream_rtmp_control_request_duration_seconds",
		Help:    "Latency of nginx-rtmp control endpoint calls",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4},
	}, []string{"operation"})
)

func observeRequest(op string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	controlRequestsTotal.WithLabelValues(op, result).Inc()
	controlRequestDuration.WithLabelValues(op).Observe(d.Seconds())
}
