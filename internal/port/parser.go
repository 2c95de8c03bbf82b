package port

import (
	"strconv"
	"strings"
)

// ParseLsofOutput parses the columnar output of lsof -iTCP -P -n.
// Each line after the header has fields: COMMAND PID USER FD TYPE DEVICE SIZE/OFF NODE NAME
func ParseLsofOutput(output string) []Entry {
	lines := strings.Split(output, "\n")
	if len(lines) < 2 {
		return nil
	}

	var entries []Entry
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		entry, ok := parseLsofLine(line)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// parseLsofLine parses a single lsof output line into an Entry.
// Format: COMMAND  PID  USER  FD  TYPE  DEVICE  SIZE/OFF  NODE  NAME
func parseLsofLine(line string) (Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return Entry{}, false
	}

	pid, err := strconv.Atoi(fields[1])
	if err != nil {
		return Entry{}, false
	}

	proto := parseProtocol(fields[7])
	portNum, state := parseNameField(fields[8])
	if portNum < 0 {
		return Entry{}, false
	}

	return Entry{
		Port:     portNum,
		Protocol: proto,
		PID:      pid,
		Process:  fields[0],
		User:     fields[2],
		Command:  fields[0], // enriched later from the process table
		State:    state,
		FD:       fields[3],
	}, true
}

// parseProtocol converts the NODE field to a Protocol.
func parseProtocol(node string) Protocol {
	if strings.Contains(strings.ToUpper(node), "UDP") {
		return UDP
	}
	return TCP
}

// parseNameField extracts the local port number and connection state
// from the NAME field. NAME formats:
//   - "*:8080" or "127.0.0.1:8080" (LISTEN implied)
//   - "[::1]:8080" (IPv6 listener)
//   - "127.0.0.1:8080->127.0.0.1:54321" (ESTABLISHED)
//   - "*:8080 (LISTEN)" or similar with state in parentheses
func parseNameField(name string) (int, string) {
	state := ""

	if idx := strings.LastIndex(name, "("); idx != -1 {
		closeParen := strings.LastIndex(name, ")")
		if closeParen > idx {
			state = name[idx+1 : closeParen]
			name = strings.TrimSpace(name[:idx])
		}
	}

	// The local address is the left side of "->" for connections.
	local := name
	if idx := strings.Index(name, "->"); idx != -1 {
		local = name[:idx]
		if state == "" {
			state = "ESTABLISHED"
		}
	}

	portStr := local
	if idx := strings.LastIndex(local, ":"); idx != -1 {
		portStr = local[idx+1:]
	}

	if portStr == "*" {
		return -1, ""
	}

	portNum, err := strconv.Atoi(portStr)
	if err != nil {
		return -1, ""
	}

	if state == "" {
		state = "LISTEN"
	}

	return portNum, state
}
