// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sysmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	cpu     CPUCounters
	cpuErr  error
	mem     MemoryCounters
	memErr  error
	disk    DiskUsage
	diskErr error
	net     NetCounters
	netErr  error
	uptime  time.Duration
	load    [3]float64
	loadErr error
}

func (f *fakeSource) CPU() (CPUCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cpu, f.cpuErr
}

func (f *fakeSource) Memory() (MemoryCounters, error) { return f.mem, f.memErr }
func (f *fakeSource) Disk(string) (DiskUsage, error)  { return f.disk, f.diskErr }

func (f *fakeSource) Network() (NetCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.net, f.netErr
}

func (f *fakeSource) Uptime() (time.Duration, error) { return f.uptime, nil }
func (f *fakeSource) LoadAvg() ([3]float64, error)   { return f.load, f.loadErr }

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time { return c.t }

func newTestSampler(src Source) (*Sampler, *stepClock) {
	clock := &stepClock{t: time.Unix(1_700_000_000, 0)}
	s := NewSampler(src, "/data")
	s.now = clock.now
	return s, clock
}

func TestSampleFirstCallHasNoRates(t *testing.T) {
	src := &fakeSource{
		cpu: CPUCounters{Total: 1000, Idle: 900},
		net: NetCounters{RxBytes: 10, TxBytes: 20},
	}
	s, _ := newTestSampler(src)

	m := s.Sample(context.Background())

	require.True(t, m.Supported)
	assert.Nil(t, m.CPU.UsagePct)
	assert.Nil(t, m.Network.RxMbps)
	assert.Nil(t, m.Network.TxMbps)
	require.NotNil(t, m.Network.RxBytes)
	assert.Equal(t, uint64(10), *m.Network.RxBytes)
}

func TestSampleSecondCallComputesDeltas(t *testing.T) {
	src := &fakeSource{
		cpu: CPUCounters{Total: 1000, Idle: 900},
		net: NetCounters{RxBytes: 0, TxBytes: 0},
	}
	s, clock := newTestSampler(src)
	s.Sample(context.Background())

	src.cpu = CPUCounters{Total: 1100, Idle: 980}
	src.net = NetCounters{RxBytes: 2_500_000, TxBytes: 125_000}
	clock.t = clock.t.Add(2 * time.Second)
	m := s.Sample(context.Background())

	require.NotNil(t, m.CPU.UsagePct)
	assert.Equal(t, 20.0, *m.CPU.UsagePct)
	require.NotNil(t, m.Network.RxMbps)
	assert.Equal(t, 10.0, *m.Network.RxMbps)
	assert.Equal(t, 0.5, *m.Network.TxMbps)
}

func TestSampleCPUWithoutProgressIsUnknown(t *testing.T) {
	src := &fakeSource{cpu: CPUCounters{Total: 500, Idle: 400}}
	s, _ := newTestSampler(src)
	s.Sample(context.Background())

	m := s.Sample(context.Background())
	assert.Nil(t, m.CPU.UsagePct)
}

func TestSampleNetworkIntervalIsFloored(t *testing.T) {
	src := &fakeSource{}
	s, _ := newTestSampler(src)
	s.Sample(context.Background())

	src.net = NetCounters{RxBytes: 1000}
	m := s.Sample(context.Background())

	require.NotNil(t, m.Network.RxMbps)
	assert.Equal(t, 8.0, *m.Network.RxMbps)
}

func TestSampleFailuresAreIsolated(t *testing.T) {
	src := &fakeSource{
		cpuErr:  errors.New("no stat"),
		mem:     MemoryCounters{TotalKB: 2048 * 1024, AvailableKB: 512 * 1024},
		diskErr: errors.New("no statfs"),
		netErr:  errors.New("no netdev"),
		uptime:  90*time.Second + 500*time.Millisecond,
		load:    [3]float64{0.123, 1.5, 2.999},
	}
	s, _ := newTestSampler(src)

	m := s.Sample(context.Background())

	require.True(t, m.Supported)
	assert.Nil(t, m.CPU.UsagePct)
	assert.Nil(t, m.Disk.TotalGB)
	assert.Nil(t, m.Network.RxBytes)
	require.NotNil(t, m.Memory.UsedPct)
	assert.Equal(t, 2048.0, *m.Memory.TotalMB)
	assert.Equal(t, 1536.0, *m.Memory.UsedMB)
	assert.Equal(t, 75.0, *m.Memory.UsedPct)
	require.NotNil(t, m.UptimeSec)
	assert.Equal(t, int64(90), *m.UptimeSec)
	assert.Equal(t, []float64{0.12, 1.5, 3.0}, m.LoadAvg)
}

func TestSampleDiskRounding(t *testing.T) {
	src := &fakeSource{disk: DiskUsage{TotalBytes: 100 << 30, UsedBytes: 25 << 30}}
	s, _ := newTestSampler(src)

	m := s.Sample(context.Background())

	require.NotNil(t, m.Disk.UsedPct)
	assert.Equal(t, 100.0, *m.Disk.TotalGB)
	assert.Equal(t, 25.0, *m.Disk.UsedGB)
	assert.Equal(t, 25.0, *m.Disk.UsedPct)
}

func TestUnsupportedSampler(t *testing.T) {
	s := NewSampler(nil, "/")
	m := s.Sample(context.Background())
	assert.False(t, m.Supported)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"supported":false}`, string(data))
}

func TestSupportedJSONKeepsNullLeaves(t *testing.T) {
	s, _ := newTestSampler(&fakeSource{loadErr: errors.New("nope")})

	data, err := json.Marshal(s.Sample(context.Background()))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["supported"])
	assert.Contains(t, decoded, "loadavg")
	assert.Nil(t, decoded["loadavg"])
	assert.Equal(t, map[string]any{"usage_pct": nil}, decoded["cpu"])
}

func TestConcurrentSamplesNeverGoNegative(t *testing.T) {
	src := &fakeSource{}
	s, _ := newTestSampler(src)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src.mu.Lock()
			src.cpu.Total += 10
			src.cpu.Idle += 5
			src.net.RxBytes += 1000
			src.mu.Unlock()
			m := s.Sample(context.Background())
			if m.CPU.UsagePct != nil {
				assert.GreaterOrEqual(t, *m.CPU.UsagePct, 0.0)
				assert.LessOrEqual(t, *m.CPU.UsagePct, 100.0)
			}
			if m.Network.RxMbps != nil {
				assert.GreaterOrEqual(t, *m.Network.RxMbps, 0.0)
			}
		}()
	}
	wg.Wait()
}
