// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux || darwin || freebsd

package sysmetrics

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func statDisk(path string) (DiskUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return DiskUsage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	total := uint64(st.Blocks) * bsize
	free := uint64(st.Bfree) * bsize
	return DiskUsage{TotalBytes: total, UsedBytes: total - free}, nil
}
