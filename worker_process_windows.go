//go:build windows

// SPDX-License-Identifier: MPL-2.0

package threadbare

import "os/exec"

// processStatus has no signal concept on Windows: a terminated process
// simply reports its exit code, never "killed".
func processStatus(cmd *exec.Cmd, name string) workerStatus {
	status := workerStatus{Name: name}
	if cmd.Process != nil {
		status.Pid = cmd.Process.Pid
	}
	if cmd.ProcessState == nil {
		status.Alive = true
		return status
	}
	status.ExitCode = cmd.ProcessState.ExitCode()
	return status
}

// stillAlive has no cheap signal-0 probe on Windows; Wait having
// returned is taken as authoritative.
func stillAlive(pid int) bool {
	return false
}

// killProcess forcibly terminates a worker process that is still alive
// after its result was already collected.
func killProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
