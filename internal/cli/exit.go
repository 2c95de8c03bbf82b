package cli

import (
	"errors"
	"fmt"

	"github.com/Kade-Heyborne/port-manager/internal/port"
	"github.com/Kade-Heyborne/port-manager/internal/process"
	"github.com/Kade-Heyborne/port-manager/internal/terminate"
)

// Exit codes form the scripting contract: each failure class gets its
// own code so callers can branch on the result.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitInvalidPort      = 2
	ExitNotFound         = 3
	ExitPermissionDenied = 4
	ExitTimeout          = 5
)

// exitError carries a specific exit code alongside its message.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// ExitCode maps an error returned from Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	var invalid *port.InvalidPortError
	switch {
	case errors.As(err, &invalid):
		return ExitInvalidPort
	case errors.Is(err, port.ErrNoListener):
		return ExitNotFound
	case errors.Is(err, process.ErrPermissionDenied):
		return ExitPermissionDenied
	}
	return ExitError
}

// outcomeError converts a failed termination outcome into the error that
// selects its exit code. Successful outcomes map to nil.
func outcomeError(o terminate.Outcome, portNum int) error {
	switch o {
	case terminate.OutcomePermissionDenied:
		return &exitError{
			code: ExitPermissionDenied,
			msg:  fmt.Sprintf("permission denied signaling the process on port %d (try sudo)", portNum),
		}
	case terminate.OutcomeTimedOutGraceful:
		return &exitError{
			code: ExitTimeout,
			msg:  fmt.Sprintf("timed out waiting for port %d to be released after SIGTERM", portNum),
		}
	case terminate.OutcomeTimedOutForceful:
		return &exitError{
			code: ExitTimeout,
			msg:  fmt.Sprintf("port %d is still bound after SIGKILL; the process may be stuck in the kernel", portNum),
		}
	case terminate.OutcomeNotFound:
		return &exitError{
			code: ExitNotFound,
			msg:  fmt.Sprintf("no process listening on port %d", portNum),
		}
	}
	return nil
}
