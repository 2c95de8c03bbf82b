package process

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrPermissionDenied indicates the OS rejected a signal send. Elevating
// privileges is the only recovery; retrying is pointless.
var ErrPermissionDenied = errors.New("permission denied")

// ErrProcessGone indicates the target process no longer exists.
var ErrProcessGone = errors.New("process no longer exists")

// protectedPIDs lists PIDs that must never be signaled.
var protectedPIDs = map[int]bool{
	0: true,
	1: true,
}

// Manager sends signals to processes and checks their liveness.
type Manager interface {
	Signal(pid int, sig syscall.Signal) error
	IsRunning(pid int) bool
}

// RealManager implements Manager with real system calls.
type RealManager struct{}

// NewRealManager creates a process manager.
func NewRealManager() *RealManager {
	return &RealManager{}
}

// Signal sends sig to pid. It refuses protected PIDs and maps the OS
// errnos onto the package's sentinel errors so callers can branch with
// errors.Is.
func (m *RealManager) Signal(pid int, sig syscall.Signal) error {
	if protectedPIDs[pid] {
		return fmt.Errorf("refusing to signal protected PID %d", pid)
	}

	err := syscall.Kill(pid, sig)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ESRCH):
		return fmt.Errorf("signal %d to PID %d: %w", sig, pid, ErrProcessGone)
	case errors.Is(err, syscall.EPERM):
		return fmt.Errorf("signal %d to PID %d: %w", sig, pid, ErrPermissionDenied)
	default:
		return fmt.Errorf("failed to send signal %d to PID %d: %w", sig, pid, err)
	}
}

// IsRunning reports whether a process with the given PID exists. Signal
// zero probes existence without delivering anything; EPERM still means
// the process is there, just owned by someone else.
func (m *RealManager) IsRunning(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
