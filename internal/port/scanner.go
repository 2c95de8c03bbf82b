package port

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Scanner discovers TCP sockets and the processes bound to them.
type Scanner interface {
	ListListeners(ctx context.Context) ([]Entry, error)
	FindByPort(ctx context.Context, port int) ([]Entry, error)
	Listening(ctx context.Context, port int) (bool, error)
}

// LsofScanner implements Scanner using lsof. It is read-only: every
// call is a fresh snapshot of the kernel's socket table.
type LsofScanner struct {
	runner CmdRunner
}

// NewLsofScanner creates a new scanner backed by lsof.
func NewLsofScanner(runner CmdRunner) *LsofScanner {
	return &LsofScanner{runner: runner}
}

// ListListeners returns all TCP sockets in the LISTEN state, IPv4 and
// IPv6 alike.
func (s *LsofScanner) ListListeners(ctx context.Context) ([]Entry, error) {
	out, err := s.runner.Run(ctx, "lsof", "-iTCP", "-sTCP:LISTEN", "-P", "-n")
	if err != nil {
		if isNoMatches(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to run lsof: %w", err)
	}
	return ParseLsofOutput(string(out)), nil
}

// FindByPort returns all TCP sockets whose local port equals port,
// regardless of state. Callers filter with Entry.IsListening.
func (s *LsofScanner) FindByPort(ctx context.Context, port int) ([]Entry, error) {
	out, err := s.runner.Run(ctx, "lsof", fmt.Sprintf("-iTCP:%d", port), "-P", "-n")
	if err != nil {
		if isNoMatches(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to run lsof for port %d: %w", port, err)
	}

	var matched []Entry
	for _, e := range ParseLsofOutput(string(out)) {
		if e.Port == port {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// Listening reports whether any socket is still bound to port in the
// LISTEN state. The terminator polls this to observe port release.
func (s *LsofScanner) Listening(ctx context.Context, port int) (bool, error) {
	entries, err := s.FindByPort(ctx, port)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsListening() {
			return true, nil
		}
	}
	return false, nil
}

// isNoMatches detects lsof's exit status 1, which it uses for "no
// matching sockets" rather than a real failure.
func isNoMatches(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
