// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sysmetrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/procfs"
)

// ErrNoMemInfo is returned when /proc/meminfo lacks MemTotal or MemAvailable.
var ErrNoMemInfo = errors.New("meminfo incomplete")

// CPUCounters are cumulative processor times. Units only need to be
// consistent between samples.
type CPUCounters struct {
	Total float64
	Idle  float64
}

// MemoryCounters are in kibibytes, as reported by the kernel.
type MemoryCounters struct {
	TotalKB     uint64
	AvailableKB uint64
}

// DiskUsage of one filesystem in bytes.
type DiskUsage struct {
	TotalBytes uint64
	UsedBytes  uint64
}

// NetCounters are cumulative byte counters summed over non-loopback
// interfaces.
type NetCounters struct {
	RxBytes uint64
	TxBytes uint64
}

// Source supplies point-in-time counters to a Sampler.
type Source interface {
	CPU() (CPUCounters, error)
	Memory() (MemoryCounters, error)
	Disk(path string) (DiskUsage, error)
	Network() (NetCounters, error)
	Uptime() (time.Duration, error)
	LoadAvg() ([3]float64, error)
}

// ProcSource reads counters from a procfs mount.
type ProcSource struct {
	fs  procfs.FS
	now func() time.Time
}

// NewProcSource opens the procfs mounted at mountPoint (procfs.DefaultMountPoint
// when empty). It fails on hosts without a readable /proc/stat, which the
// caller treats as "metrics unsupported".
func NewProcSource(mountPoint string) (*ProcSource, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	if _, err := fs.Stat(); err != nil {
		return nil, fmt.Errorf("read %s/stat: %w", mountPoint, err)
	}
	return &ProcSource{fs: fs, now: time.Now}, nil
}

// CPU sums every time column of the aggregate cpu line; idle includes iowait.
func (p *ProcSource) CPU() (CPUCounters, error) {
	st, err := p.fs.Stat()
	if err != nil {
		return CPUCounters{}, err
	}
	c := st.CPUTotal
	idle := c.Idle + c.Iowait
	total := c.User + c.Nice + c.System + idle + c.IRQ + c.SoftIRQ + c.Steal + c.Guest + c.GuestNice
	return CPUCounters{Total: total, Idle: idle}, nil
}

func (p *ProcSource) Memory() (MemoryCounters, error) {
	mi, err := p.fs.Meminfo()
	if err != nil {
		return MemoryCounters{}, err
	}
	if mi.MemTotal == nil || mi.MemAvailable == nil {
		return MemoryCounters{}, ErrNoMemInfo
	}
	return MemoryCounters{TotalKB: *mi.MemTotal, AvailableKB: *mi.MemAvailable}, nil
}

func (p *ProcSource) Disk(path string) (DiskUsage, error) {
	return statDisk(path)
}

func (p *ProcSource) Network() (NetCounters, error) {
	dev, err := p.fs.NetDev()
	if err != nil {
		return NetCounters{}, err
	}
	var n NetCounters
	for name, line := range dev {
		if name == "lo" {
			continue
		}
		n.RxBytes += line.RxBytes
		n.TxBytes += line.TxBytes
	}
	return n, nil
}

// Uptime is derived from the boot time in /proc/stat.
func (p *ProcSource) Uptime() (time.Duration, error) {
	st, err := p.fs.Stat()
	if err != nil {
		return 0, err
	}
	boot := time.Unix(int64(st.BootTime), 0)
	return max(p.now().Sub(boot), 0), nil
}

func (p *ProcSource) LoadAvg() ([3]float64, error) {
	l, err := p.fs.LoadAvg()
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{l.Load1, l.Load5, l.Load15}, nil
}
