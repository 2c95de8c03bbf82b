package port

import (
	"errors"
	"fmt"
)

// Protocol represents a network protocol.
type Protocol string

const (
	TCP Protocol = "TCP"
	UDP Protocol = "UDP"
)

// MaxPort is the highest valid TCP port number.
const MaxPort = 65535

// ErrNoListener indicates no process is listening on the requested port.
var ErrNoListener = errors.New("no listening process found")

// InvalidPortError is returned for port numbers outside 1-65535.
type InvalidPortError struct {
	Port int
}

func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid port %d: must be between 1 and %d", e.Port, MaxPort)
}

// Validate rejects port numbers outside the valid range. It must be
// called before any OS-facing query is issued.
func Validate(port int) error {
	if port < 1 || port > MaxPort {
		return &InvalidPortError{Port: port}
	}
	return nil
}

// Entry represents a single socket bound by a process, as reported by
// the socket table at the instant of enumeration. It is a point-in-time
// snapshot: the owning process may exit at any moment after the scan.
type Entry struct {
	Port     int
	Protocol Protocol
	PID      int
	Process  string // short process name
	User     string // owner
	Command  string // full command path
	State    string // LISTEN, ESTABLISHED, etc.
	FD       string // file descriptor
}

// String returns a human-readable representation of the entry.
func (e Entry) String() string {
	return fmt.Sprintf("%d/%s (PID %d, %s)", e.Port, e.Protocol, e.PID, e.Process)
}

// IsListening reports whether the entry is a bound server socket rather
// than an established or closing connection.
func (e Entry) IsListening() bool {
	return e.State == "LISTEN"
}
