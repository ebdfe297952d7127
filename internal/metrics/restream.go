// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the restreamd Prometheus collectors that are shared
// across packages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/health"
)

var (
	healthWarnings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "restream_health_warnings",
		Help: "Warnings in the last health evaluation by level",
	}, []string{"level"})

	healthEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restream_health_evaluations_total",
		Help: "Health evaluations by outcome",
	}, []string{"result"}) // result=ok|stats_unavailable

	streamActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "restream_stream_active",
		Help: "Whether the ingest or live stream was seen in the last evaluation",
	}, []string{"stream"}) // stream=ingest|live

	cpuUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restream_cpu_usage_percent",
		Help: "Host CPU usage at the last sample",
	})
	memoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restream_memory_used_percent",
		Help: "Host memory usage at the last sample",
	})
	diskUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restream_disk_used_percent",
		Help: "Data volume usage at the last sample",
	})
	networkMbps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "restream_network_mbps",
		Help: "Host network throughput at the last sample",
	}, []string{"direction"}) // direction=rx|tx

	publishEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restream_publish_events_total",
		Help: "nginx publish callbacks by event",
	}, []string{"event"}) // event=publish|publish_done|denied

	applyRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restream_apply_runs_total",
		Help: "Apply script runs by result",
	}, []string{"result"})
	applyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restream_apply_duration_seconds",
		Help:    "Apply script wall time",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restream_reconnects_total",
		Help: "Reconnect triggers by result",
	}, []string{"result"})

	configReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restream_config_reloads_total",
		Help: "Daemon configuration reloads by result",
	}, []string{"result"})
)

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveHealth publishes the warning counts, stream presence and resource
// readings of one report.
func ObserveHealth(r health.Report) {
	if r.Supported {
		healthEvaluations.WithLabelValues("ok").Inc()
	} else {
		healthEvaluations.WithLabelValues("stats_unavailable").Inc()
	}

	counts := map[health.Severity]int{health.SeverityInfo: 0, health.SeverityWarning: 0, health.SeverityCritical: 0}
	for _, w := range r.Warnings {
		counts[w.Level]++
	}
	for level, n := range counts {
		healthWarnings.WithLabelValues(string(level)).Set(float64(n))
	}

	streamActive.WithLabelValues("ingest").Set(boolGauge(r.Ingest.Active))
	streamActive.WithLabelValues("live").Set(boolGauge(r.Live.Active))

	m := r.Metrics
	if !m.Supported {
		return
	}
	if m.CPU.UsagePct != nil {
		cpuUsage.Set(*m.CPU.UsagePct)
	}
	if m.Memory.UsedPct != nil {
		memoryUsage.Set(*m.Memory.UsedPct)
	}
	if m.Disk.UsedPct != nil {
		diskUsage.Set(*m.Disk.UsedPct)
	}
	if m.Network.RxMbps != nil {
		networkMbps.WithLabelValues("rx").Set(*m.Network.RxMbps)
	}
	if m.Network.TxMbps != nil {
		networkMbps.WithLabelValues("tx").Set(*m.Network.TxMbps)
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// IncPublishEvent counts an nginx publish callback.
func IncPublishEvent(event string) {
	publishEvents.WithLabelValues(event).Inc()
}

// ObserveApply records one apply script run.
func ObserveApply(ok bool, d time.Duration) {
	applyRuns.WithLabelValues(result(ok)).Inc()
	applyDuration.Observe(d.Seconds())
}

// IncReconnect counts a reconnect trigger.
func IncReconnect(ok bool) {
	reconnects.WithLabelValues(result(ok)).Inc()
}

// IncConfigReload counts a configuration reload.
func IncConfigReload(ok bool) {
	configReloads.WithLabelValues(result(ok)).Inc()
}
