// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sysmetrics samples host resource usage for the admin dashboard and
// the health report.
package sysmetrics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/normalize"
)

// minInterval floors the time between two network samples so rapid repeated
// calls cannot blow up the rate.
const minInterval = time.Millisecond

// CPU is the processor usage since the previous sample.
type CPU struct {
	UsagePct *float64 `json:"usage_pct"`
}

// Memory is the current memory usage.
type Memory struct {
	TotalMB *float64 `json:"total_mb"`
	UsedMB  *float64 `json:"used_mb"`
	UsedPct *float64 `json:"used_pct"`
}

// Disk is the usage of the volume holding the data directory.
type Disk struct {
	TotalGB *float64 `json:"total_gb"`
	UsedGB  *float64 `json:"used_gb"`
	UsedPct *float64 `json:"used_pct"`
}

// Network is the aggregate throughput of every non-loopback interface.
type Network struct {
	RxMbps  *float64 `json:"rx_mbps"`
	TxMbps  *float64 `json:"tx_mbps"`
	RxBytes *uint64  `json:"rx_bytes"`
	TxBytes *uint64  `json:"tx_bytes"`
}

// Metrics is one sample. Every leaf is nil when it could not be determined.
type Metrics struct {
	Supported bool      `json:"supported"`
	CPU       CPU       `json:"cpu"`
	Memory    Memory    `json:"memory"`
	Disk      Disk      `json:"disk"`
	Network   Network   `json:"network"`
	UptimeSec *int64    `json:"uptime_sec"`
	LoadAvg   []float64 `json:"loadavg"`
}

// MarshalJSON renders unsupported samples as {"supported":false}.
func (m Metrics) MarshalJSON() ([]byte, error) {
	if !m.Supported {
		return []byte(`{"supported":false}`), nil
	}
	type plain Metrics
	return json.Marshal(plain(m))
}

type cpuSample struct {
	total, idle float64
}

type netSample struct {
	rx, tx uint64
	at     time.Time
}

// Sampler turns point-in-time counters into rates. It keeps the previous
// counters, so the first sample after startup has no CPU usage or network
// rates. Samples are serialized.
type Sampler struct {
	mu       sync.Mutex
	src      Source
	diskPath string
	now      func() time.Time
	logger   zerolog.Logger

	prevCPU *cpuSample
	prevNet *netSample
}

// NewSampler returns a Sampler reading src. A nil src reports every sample
// as unsupported.
func NewSampler(src Source, diskPath string) *Sampler {
	return &Sampler{
		src:      src,
		diskPath: diskPath,
		now:      time.Now,
		logger:   xglog.WithComponent("sysmetrics"),
	}
}

// Sample reads every counter. A failing counter only blanks its own fields.
func (s *Sampler) Sample(ctx context.Context) Metrics {
	if s == nil || s.src == nil {
		return Metrics{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := xglog.WithContext(ctx, s.logger)
	now := s.now()
	m := Metrics{Supported: true}

	if c, err := s.src.CPU(); err != nil {
		logger.Debug().Err(err).Msg("cpu counters unavailable")
	} else {
		if prev := s.prevCPU; prev != nil {
			totalDelta := c.Total - prev.total
			idleDelta := c.Idle - prev.idle
			if totalDelta > 0 {
				usage := normalize.ClampFloat(100*(totalDelta-idleDelta)/totalDelta, 0, 100)
				m.CPU.UsagePct = &usage
			}
		}
		s.prevCPU = &cpuSample{total: c.Total, idle: c.Idle}
	}

	if mem, err := s.src.Memory(); err != nil {
		logger.Debug().Err(err).Msg("memory counters unavailable")
	} else if mem.TotalKB > 0 {
		used := float64(mem.TotalKB) - float64(mem.AvailableKB)
		m.Memory = Memory{
			TotalMB: ptr(normalize.Round(float64(mem.TotalKB)/1024, 1)),
			UsedMB:  ptr(normalize.Round(used/1024, 1)),
			UsedPct: ptr(normalize.Round(used/float64(mem.TotalKB)*100, 1)),
		}
	}

	if d, err := s.src.Disk(s.diskPath); err != nil {
		logger.Debug().Err(err).Str(xglog.FieldPath, s.diskPath).Msg("disk usage unavailable")
	} else {
		const gib = 1 << 30
		total := float64(d.TotalBytes) / gib
		used := float64(d.UsedBytes) / gib
		m.Disk = Disk{TotalGB: ptr(normalize.Round(total, 1)), UsedGB: ptr(normalize.Round(used, 1))}
		if total > 0 {
			m.Disk.UsedPct = ptr(normalize.Round(used/total*100, 1))
		}
	}

	if n, err := s.src.Network(); err != nil {
		logger.Debug().Err(err).Msg("network counters unavailable")
	} else {
		m.Network.RxBytes, m.Network.TxBytes = &n.RxBytes, &n.TxBytes
		if prev := s.prevNet; prev != nil {
			seconds := max(now.Sub(prev.at), minInterval).Seconds()
			m.Network.RxMbps = ptr(mbps(prev.rx, n.RxBytes, seconds))
			m.Network.TxMbps = ptr(mbps(prev.tx, n.TxBytes, seconds))
		}
		s.prevNet = &netSample{rx: n.RxBytes, tx: n.TxBytes, at: now}
	}

	if up, err := s.src.Uptime(); err != nil {
		logger.Debug().Err(err).Msg("uptime unavailable")
	} else {
		sec := int64(up.Seconds())
		m.UptimeSec = &sec
	}

	if load, err := s.src.LoadAvg(); err != nil {
		logger.Debug().Err(err).Msg("load average unavailable")
	} else {
		m.LoadAvg = []float64{
			normalize.Round(load[0], 2),
			normalize.Round(load[1], 2),
			normalize.Round(load[2], 2),
		}
	}

	return m
}

// mbps converts a byte counter delta to megabits per second. Counter resets
// show up as negative rates for one sample.
func mbps(prev, cur uint64, seconds float64) float64 {
	delta := float64(cur) - float64(prev)
	return normalize.Round(delta*8/(1_000_000*seconds), 2)
}

func ptr[T any](v T) *T { return &v }
