// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sysmetrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProcFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"stat": "cpu  100 0 50 800 50 0 0 0 0 0\n" +
			"cpu0 100 0 50 800 50 0 0 0 0 0\n" +
			"btime 1700000000\n",
		"meminfo": "MemTotal:       16384000 kB\n" +
			"MemFree:         4096000 kB\n" +
			"MemAvailable:    8192000 kB\n",
		"loadavg": "0.50 0.40 0.30 1/200 12345\n",
		"net/dev": "Inter-|   Receive                                                |  Transmit\n" +
			" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n" +
			"    lo:    1000      10    0    0    0     0          0         0     1000      10    0    0    0     0       0          0\n" +
			"  eth0:    5000      50    0    0    0     0          0         0     7000      70    0    0    0     0       0          0\n" +
			"  eth1:     500       5    0    0    0     0          0         0      300       3    0    0    0     0       0          0\n",
	}
	for name, body := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func TestProcSourceReadsCounters(t *testing.T) {
	src, err := NewProcSource(writeProcFixture(t))
	require.NoError(t, err)
	src.now = func() time.Time { return time.Unix(1_700_000_123, 0) }

	mem, err := src.Memory()
	require.NoError(t, err)
	assert.Equal(t, MemoryCounters{TotalKB: 16384000, AvailableKB: 8192000}, mem)

	net, err := src.Network()
	require.NoError(t, err)
	assert.Equal(t, NetCounters{RxBytes: 5500, TxBytes: 7300}, net)

	load, err := src.LoadAvg()
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0.5, 0.4, 0.3}, load)

	up, err := src.Uptime()
	require.NoError(t, err)
	assert.Equal(t, 123*time.Second, up)

	cpu, err := src.CPU()
	require.NoError(t, err)
	assert.InDelta(t, 10.0, cpu.Total, 1e-9)
	assert.InDelta(t, 8.5, cpu.Idle, 1e-9)
}

func TestNewProcSourceWithoutStat(t *testing.T) {
	_, err := NewProcSource(t.TempDir())
	assert.Error(t, err)
}

func TestStatDiskOnTempDir(t *testing.T) {
	d, err := statDisk(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, d.TotalBytes)
	assert.LessOrEqual(t, d.UsedBytes, d.TotalBytes)
}
