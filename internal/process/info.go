package process

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Handle identifies a live OS process bound to a port. It is a snapshot
// reference: the process may exit between resolution and use, so callers
// must re-verify liveness before acting on it.
type Handle struct {
	PID     int
	Name    string
	Command string // full command line
	User    string
}

func (h Handle) String() string {
	return fmt.Sprintf("%s (PID %d)", h.Name, h.PID)
}

// Detail holds extended information about a running process, used by the
// info views.
type Detail struct {
	Handle
	PPID       int
	StartTime  time.Time
	CPUPercent float64
	MemRSS     int64 // bytes
	Children   []int
}

// Inspector reads process metadata from the process table.
type Inspector struct{}

// NewInspector creates an Inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// Describe returns a Handle for pid, querying metadata at the moment of
// the call. It fails if the process no longer exists.
func (i *Inspector) Describe(ctx context.Context, pid int) (Handle, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Handle{}, fmt.Errorf("process %d not found: %w", pid, err)
	}

	h := Handle{PID: pid}

	name, err := p.NameWithContext(ctx)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to read name of process %d: %w", pid, err)
	}
	// Some platforms report the full executable path.
	parts := strings.Split(name, "/")
	h.Name = parts[len(parts)-1]

	// Command line and owner are best-effort: zombies and other users'
	// processes may refuse them.
	if cmdline, err := p.CmdlineWithContext(ctx); err == nil && cmdline != "" {
		h.Command = cmdline
	} else {
		h.Command = h.Name
	}
	if user, err := p.UsernameWithContext(ctx); err == nil {
		h.User = user
	}

	return h, nil
}

// Inspect returns extended detail for pid.
func (i *Inspector) Inspect(ctx context.Context, pid int) (*Detail, error) {
	h, err := i.Describe(ctx, pid)
	if err != nil {
		return nil, err
	}

	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d not found: %w", pid, err)
	}

	d := &Detail{Handle: h}

	if ppid, err := p.PpidWithContext(ctx); err == nil {
		d.PPID = int(ppid)
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil && created > 0 {
		d.StartTime = time.UnixMilli(created)
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		d.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		d.MemRSS = int64(mem.RSS)
	}
	if children, err := p.ChildrenWithContext(ctx); err == nil {
		for _, c := range children {
			d.Children = append(d.Children, int(c.Pid))
		}
	}

	return d, nil
}
