// Package terminate implements the staged shutdown protocol for a
// process bound to a TCP port: graceful signal, bounded poll for port
// release, forceful escalation, bounded poll again. All OS state is
// treated as a snapshot that may be stale, so liveness is re-verified
// before every signal send.
package terminate

import (
	"context"
	"errors"
	"syscall"
	"time"

	"github.com/Kade-Heyborne/port-manager/internal/process"
)

// Outcome is the terminal result of one termination attempt. It is
// produced exactly once and never mutated.
type Outcome string

const (
	OutcomeAlreadyGone          Outcome = "already_gone"
	OutcomeTerminatedGracefully Outcome = "terminated_gracefully"
	OutcomeTerminatedForcefully Outcome = "terminated_forcefully"
	OutcomeTimedOutGraceful     Outcome = "timed_out_graceful"
	OutcomeTimedOutForceful     Outcome = "timed_out_forceful"
	OutcomePermissionDenied     Outcome = "permission_denied"
	OutcomeNotFound             Outcome = "not_found"
)

// Success reports whether the outcome means the user's goal was reached.
func (o Outcome) Success() bool {
	switch o {
	case OutcomeAlreadyGone, OutcomeTerminatedGracefully, OutcomeTerminatedForcefully:
		return true
	}
	return false
}

// Stage identifies which escalation stage the machine is in.
type Stage int

const (
	StageGraceful Stage = iota
	StageForceful
)

func (s Stage) String() string {
	if s == StageForceful {
		return "forceful"
	}
	return "graceful"
}

// Signal returns the OS signal the stage sends.
func (s Stage) Signal() syscall.Signal {
	if s == StageForceful {
		return syscall.SIGKILL
	}
	return syscall.SIGTERM
}

// Config holds the four independent durations governing the state
// machine, plus the success policy for the "process exited but port
// still bound" case.
type Config struct {
	GracefulWait    time.Duration
	ForcefulWait    time.Duration
	PortReleaseWait time.Duration
	PollInterval    time.Duration

	// ProcessExitIsSuccess makes a confirmed process exit count as
	// success even if the kernel still reports the port bound when the
	// port-release window closes. Default is off: port-free is the
	// success criterion.
	ProcessExitIsSuccess bool
}

// DefaultConfig returns the stock timeouts.
func DefaultConfig() Config {
	return Config{
		GracefulWait:    5 * time.Second,
		ForcefulWait:    5 * time.Second,
		PortReleaseWait: 3 * time.Second,
		PollInterval:    250 * time.Millisecond,
	}
}

// normalized replaces non-positive durations with defaults and clamps
// the poll interval so it never exceeds the waits it paces.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.GracefulWait <= 0 {
		c.GracefulWait = def.GracefulWait
	}
	if c.ForcefulWait <= 0 {
		c.ForcefulWait = def.ForcefulWait
	}
	if c.PortReleaseWait <= 0 {
		c.PortReleaseWait = def.PortReleaseWait
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	for _, wait := range []time.Duration{c.GracefulWait, c.ForcefulWait, c.PortReleaseWait} {
		if c.PollInterval > wait {
			c.PollInterval = wait
		}
	}
	return c
}

// Observer is invoked at every poll tick so the presentation layer can
// show progress without the core knowing how it is rendered.
type Observer interface {
	Tick(stage Stage, elapsed time.Duration)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(stage Stage, elapsed time.Duration)

func (f ObserverFunc) Tick(stage Stage, elapsed time.Duration) { f(stage, elapsed) }

// NopObserver discards all ticks.
type NopObserver struct{}

func (NopObserver) Tick(Stage, time.Duration) {}

// ProcessController is the process-table capability the terminator
// consumes. process.RealManager implements it.
type ProcessController interface {
	IsRunning(pid int) bool
	Signal(pid int, sig syscall.Signal) error
}

// PortProber reports whether a port is still bound in the LISTEN state.
// port.LsofScanner implements it.
type PortProber interface {
	Listening(ctx context.Context, port int) (bool, error)
}

// Terminator drives the termination state machine. It holds no state of
// its own between calls.
type Terminator struct {
	procs ProcessController
	ports PortProber
}

// NewTerminator creates a Terminator over the given OS capabilities.
func NewTerminator(procs ProcessController, ports PortProber) *Terminator {
	return &Terminator{procs: procs, ports: ports}
}

// Terminate runs the staged shutdown protocol against handle, observing
// portNum for release. With forceOnly the graceful stage is skipped
// entirely. A non-nil error is returned only for environmental failures
// (context cancellation, probe errors); every protocol result is an
// Outcome.
func (t *Terminator) Terminate(ctx context.Context, handle process.Handle, portNum int, forceOnly bool, cfg Config, obs Observer) (Outcome, error) {
	cfg = cfg.normalized()
	if obs == nil {
		obs = NopObserver{}
	}

	if !t.procs.IsRunning(handle.PID) {
		return OutcomeAlreadyGone, nil
	}

	if !forceOnly {
		switch err := t.procs.Signal(handle.PID, StageGraceful.Signal()); {
		case err == nil:
		case errors.Is(err, process.ErrPermissionDenied):
			// Escalating will not help: permission is not size-dependent.
			return OutcomePermissionDenied, nil
		case errors.Is(err, process.ErrProcessGone):
			// Exited between the liveness check and the send.
			return t.settle(ctx, StageGraceful, portNum, cfg, obs, OutcomeAlreadyGone, OutcomeTimedOutGraceful)
		default:
			return "", err
		}

		res, err := t.poll(ctx, StageGraceful, handle.PID, portNum, cfg.GracefulWait, cfg, obs)
		if err != nil {
			return "", err
		}
		if res.portFree {
			return OutcomeTerminatedGracefully, nil
		}
		if res.procGone {
			// The process obeyed SIGTERM but the kernel may hold the
			// socket a little longer. Escalating is pointless; wait out
			// the port-release window instead.
			return t.settle(ctx, StageGraceful, portNum, cfg, obs, OutcomeTerminatedGracefully, OutcomeTimedOutGraceful)
		}
		// Graceful window exhausted with the process still alive:
		// escalate exactly once.
	}

	if !t.procs.IsRunning(handle.PID) {
		success := OutcomeTerminatedGracefully
		timeout := OutcomeTimedOutGraceful
		if forceOnly {
			// No signal was ever sent by us.
			success = OutcomeAlreadyGone
			timeout = OutcomeTimedOutForceful
		}
		return t.settle(ctx, StageForceful, portNum, cfg, obs, success, timeout)
	}

	switch err := t.procs.Signal(handle.PID, StageForceful.Signal()); {
	case err == nil:
	case errors.Is(err, process.ErrPermissionDenied):
		return OutcomePermissionDenied, nil
	case errors.Is(err, process.ErrProcessGone):
		// Died (to the earlier SIGTERM, or on its own) just before the kill.
		success := OutcomeTerminatedGracefully
		if forceOnly {
			success = OutcomeAlreadyGone
		}
		return t.settle(ctx, StageForceful, portNum, cfg, obs, success, OutcomeTimedOutForceful)
	default:
		return "", err
	}

	res, err := t.poll(ctx, StageForceful, handle.PID, portNum, cfg.ForcefulWait, cfg, obs)
	if err != nil {
		return "", err
	}
	if res.portFree {
		return OutcomeTerminatedForcefully, nil
	}
	if res.procGone {
		// A killed process's port release is kernel-timed, not
		// process-timed; the port-release wait is the binding constraint.
		return t.settle(ctx, StageForceful, portNum, cfg, obs, OutcomeTerminatedForcefully, OutcomeTimedOutForceful)
	}
	// Port still bound and process still alive after SIGKILL: likely a
	// stuck kernel-level state. Reported prominently by the caller.
	return OutcomeTimedOutForceful, nil
}

type pollResult struct {
	portFree bool
	procGone bool
}

// poll sleeps in PollInterval steps for up to window, checking after
// each step whether the port was released or the process exited. A pid
// of zero disables the process check.
func (t *Terminator) poll(ctx context.Context, stage Stage, pid, portNum int, window time.Duration, cfg Config, obs Observer) (pollResult, error) {
	start := time.Now()
	deadline := start.Add(window)
	for {
		select {
		case <-ctx.Done():
			return pollResult{}, ctx.Err()
		case <-time.After(cfg.PollInterval):
		}

		obs.Tick(stage, time.Since(start))

		listening, err := t.ports.Listening(ctx, portNum)
		if err != nil {
			return pollResult{}, err
		}
		if !listening {
			return pollResult{portFree: true}, nil
		}
		if pid > 0 && !t.procs.IsRunning(pid) {
			return pollResult{procGone: true}, nil
		}
		if !time.Now().Before(deadline) {
			return pollResult{}, nil
		}
	}
}

// settle handles the "process confirmed gone" tail: success once the
// port is observed free, the timeout outcome if the port-release window
// closes with the port still bound (unless policy says a confirmed exit
// is enough).
func (t *Terminator) settle(ctx context.Context, stage Stage, portNum int, cfg Config, obs Observer, success, timeout Outcome) (Outcome, error) {
	listening, err := t.ports.Listening(ctx, portNum)
	if err != nil {
		return "", err
	}
	if !listening {
		return success, nil
	}

	res, err := t.poll(ctx, stage, 0, portNum, cfg.PortReleaseWait, cfg, obs)
	if err != nil {
		return "", err
	}
	if res.portFree || cfg.ProcessExitIsSuccess {
		return success, nil
	}
	return timeout, nil
}
