package process

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Kade-Heyborne/port-manager/internal/port"
)

type fakeFinder struct {
	entries []port.Entry
	err     error
	calls   int
}

func (f *fakeFinder) FindByPort(_ context.Context, _ int) ([]port.Entry, error) {
	f.calls++
	return f.entries, f.err
}

type fakeDescriber struct {
	handles map[int]Handle // missing PID means the process is gone
}

func (f *fakeDescriber) Describe(_ context.Context, pid int) (Handle, error) {
	h, ok := f.handles[pid]
	if !ok {
		return Handle{}, fmt.Errorf("process %d not found", pid)
	}
	return h, nil
}

func listenEntry(portNum, pid int, name string) port.Entry {
	return port.Entry{Port: portNum, Protocol: port.TCP, PID: pid, Process: name, State: "LISTEN"}
}

func TestResolve_InvalidPortBeforeAnyQuery(t *testing.T) {
	finder := &fakeFinder{}
	r := NewResolver(finder, &fakeDescriber{})

	for _, p := range []int{0, -5, 65536} {
		_, err := r.Resolve(context.Background(), p)
		var invalid *port.InvalidPortError
		if !errors.As(err, &invalid) {
			t.Errorf("Resolve(%d): expected InvalidPortError, got %v", p, err)
		}
	}

	if finder.calls != 0 {
		t.Errorf("invalid ports must be rejected before any OS query, got %d calls", finder.calls)
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := NewResolver(&fakeFinder{}, &fakeDescriber{})

	_, err := r.Resolve(context.Background(), 8000)
	if !errors.Is(err, port.ErrNoListener) {
		t.Fatalf("expected ErrNoListener, got %v", err)
	}
}

func TestResolve_DedupesDualStackBindings(t *testing.T) {
	// PIDs {A, A, B} on the same port resolve to exactly {A, B}.
	finder := &fakeFinder{entries: []port.Entry{
		listenEntry(8000, 4321, "python3"),
		listenEntry(8000, 4321, "python3"),
		listenEntry(8000, 9876, "node"),
	}}
	desc := &fakeDescriber{handles: map[int]Handle{
		4321: {PID: 4321, Name: "python3", User: "kade"},
		9876: {PID: 9876, Name: "node", User: "kade"},
	}}
	r := NewResolver(finder, desc)

	handles, err := r.Resolve(context.Background(), 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(handles) != 2 {
		t.Fatalf("expected 2 distinct handles, got %d", len(handles))
	}
	if handles[0].PID != 4321 || handles[1].PID != 9876 {
		t.Errorf("expected PIDs [4321 9876], got [%d %d]", handles[0].PID, handles[1].PID)
	}
}

func TestResolve_IgnoresNonListeningSockets(t *testing.T) {
	finder := &fakeFinder{entries: []port.Entry{
		{Port: 8000, Protocol: port.TCP, PID: 7777, Process: "curl", State: "ESTABLISHED"},
	}}
	r := NewResolver(finder, &fakeDescriber{})

	_, err := r.Resolve(context.Background(), 8000)
	if !errors.Is(err, port.ErrNoListener) {
		t.Fatalf("expected ErrNoListener for established-only port, got %v", err)
	}
}

func TestResolve_DropsExitedOwnersSilently(t *testing.T) {
	finder := &fakeFinder{entries: []port.Entry{
		listenEntry(8000, 4321, "python3"),
		listenEntry(8000, 5555, "ghost"),
	}}
	// PID 5555 exited between the socket scan and the metadata lookup.
	desc := &fakeDescriber{handles: map[int]Handle{
		4321: {PID: 4321, Name: "python3"},
	}}
	r := NewResolver(finder, desc)

	handles, err := r.Resolve(context.Background(), 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(handles) != 1 || handles[0].PID != 4321 {
		t.Fatalf("expected only the live PID 4321, got %v", handles)
	}
}

func TestResolve_AllOwnersExited(t *testing.T) {
	finder := &fakeFinder{entries: []port.Entry{
		listenEntry(8000, 5555, "ghost"),
	}}
	r := NewResolver(finder, &fakeDescriber{})

	_, err := r.Resolve(context.Background(), 8000)
	if !errors.Is(err, port.ErrNoListener) {
		t.Fatalf("expected ErrNoListener when every owner exited, got %v", err)
	}
}

func TestResolve_ScanErrorPropagates(t *testing.T) {
	finder := &fakeFinder{err: errors.New("lsof blew up")}
	r := NewResolver(finder, &fakeDescriber{})

	_, err := r.Resolve(context.Background(), 8000)
	if err == nil || errors.Is(err, port.ErrNoListener) {
		t.Fatalf("expected scan error to propagate, got %v", err)
	}
}
