//go:build windows

package cli

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setSysProcAttr is a no-op on Windows. For production deployments, use a
// Windows service wrapper such as NSSM or run the server in the foreground.
func setSysProcAttr(cmd *exec.Cmd) {}

// isProcessRunning checks whether a process with the given PID is alive.
// On Windows FindProcess opens a real handle and fails for unknown pids;
// the zero signal then distinguishes an exited process whose handle is
// still valid.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return !errors.Is(proc.Signal(syscall.Signal(0)), os.ErrProcessDone)
}

// stopProcess kills the process on Windows (no graceful SIGTERM support).
func stopProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
