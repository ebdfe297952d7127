// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

// Package procgroup runs child processes in their own process group so a
// cancelled command takes its children down with it.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
)

// Set configures cmd to start in a new process group.
func Set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Kill sends sig to the process group of cmd. A process that already exited
// is not an error.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	if err := syscall.Kill(-pgid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

// Terminate is an exec.Cmd.Cancel hook that stops the whole group with
// SIGTERM; pair it with cmd.WaitDelay for escalation.
func Terminate(cmd *exec.Cmd) func() error {
	return func() error {
		return Kill(cmd, syscall.SIGTERM)
	}
}
