package process

import (
	"context"
	"fmt"
	"sort"

	"github.com/Kade-Heyborne/port-manager/internal/port"
)

// portFinder is the slice of the scanner the resolver needs.
type portFinder interface {
	FindByPort(ctx context.Context, port int) ([]port.Entry, error)
}

// describer turns a PID into a Handle with live metadata.
type describer interface {
	Describe(ctx context.Context, pid int) (Handle, error)
}

// Resolver maps a port number to the distinct live processes listening
// on it. Read-only: it never touches the processes it finds.
type Resolver struct {
	finder    portFinder
	inspector describer
}

// NewResolver creates a Resolver over the given scanner.
func NewResolver(finder portFinder, inspector describer) *Resolver {
	return &Resolver{finder: finder, inspector: inspector}
}

// Resolve returns the set of processes with a LISTEN socket on portNum,
// in ascending PID order. Dual-stack bindings from the same process
// collapse to one handle. Sockets whose owner exited between the socket
// scan and the metadata lookup are dropped: that is transient OS state,
// not a failure. Returns port.ErrNoListener when nothing remains.
func (r *Resolver) Resolve(ctx context.Context, portNum int) ([]Handle, error) {
	if err := port.Validate(portNum); err != nil {
		return nil, err
	}

	entries, err := r.finder.FindByPort(ctx, portNum)
	if err != nil {
		return nil, fmt.Errorf("failed to scan port %d: %w", portNum, err)
	}

	seen := make(map[int]bool)
	var pids []int
	for _, e := range entries {
		if !e.IsListening() || seen[e.PID] {
			continue
		}
		seen[e.PID] = true
		pids = append(pids, e.PID)
	}
	sort.Ints(pids)

	var handles []Handle
	for _, pid := range pids {
		h, err := r.inspector.Describe(ctx, pid)
		if err != nil {
			continue
		}
		handles = append(handles, h)
	}

	if len(handles) == 0 {
		return nil, fmt.Errorf("port %d: %w", portNum, port.ErrNoListener)
	}
	return handles, nil
}
