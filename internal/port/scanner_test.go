package port

import (
	"context"
	"os/exec"
	"testing"
)

const lsofPort8000 = `COMMAND     PID      USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
python3    4321      kade    3u  IPv4 0x1234567890      0t0  TCP *:8000 (LISTEN)
python3    4321      kade    4u  IPv6 0x1234567891      0t0  TCP *:8000 (LISTEN)
curl       7777      kade   12u  IPv4 0x1234567892      0t0  TCP 127.0.0.1:55555->127.0.0.1:8000 (ESTABLISHED)
`

func TestFindByPort_FiltersToRequestedPort(t *testing.T) {
	runner := &MockCmdRunner{Output: []byte(lsofPort8000)}
	scanner := NewLsofScanner(runner)

	entries, err := scanner.FindByPort(context.Background(), 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries on port 8000, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Port != 8000 {
			t.Errorf("entry on wrong port: %v", e)
		}
	}
}

func TestFindByPort_NoMatches(t *testing.T) {
	// lsof exits 1 when nothing matches the selector.
	runner := &MockCmdRunner{Err: &exec.ExitError{}}
	scanner := NewLsofScanner(runner)

	entries, err := scanner.FindByPort(context.Background(), 8000)
	if err != nil {
		t.Fatalf("exit status 1 should not surface as error, got %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestListening(t *testing.T) {
	runner := &MockCmdRunner{Output: []byte(lsofPort8000)}
	scanner := NewLsofScanner(runner)

	listening, err := scanner.Listening(context.Background(), 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !listening {
		t.Error("expected port 8000 to be listening")
	}
}

func TestListening_OnlyEstablished(t *testing.T) {
	// A connection to the port without a bound server does not count.
	input := `COMMAND     PID      USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
curl       7777      kade   12u  IPv4 0x1234567892      0t0  TCP 127.0.0.1:8000->10.0.0.1:443 (ESTABLISHED)
`
	runner := &MockCmdRunner{Output: []byte(input)}
	scanner := NewLsofScanner(runner)

	listening, err := scanner.Listening(context.Background(), 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listening {
		t.Error("established-only port should not report as listening")
	}
}

func TestListening_Free(t *testing.T) {
	runner := &MockCmdRunner{Err: &exec.ExitError{}}
	scanner := NewLsofScanner(runner)

	listening, err := scanner.Listening(context.Background(), 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listening {
		t.Error("expected free port")
	}
}

func TestListListeners_UsesListenSelector(t *testing.T) {
	runner := &MultiMockCmdRunner{
		Responses: map[string]MockResponse{
			"lsof -iTCP -sTCP:LISTEN -P -n": {Output: []byte(lsofPort8000)},
		},
	}
	scanner := NewLsofScanner(runner)

	entries, err := scanner.ListListeners(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 parsed entries, got %d", len(entries))
	}
	if len(runner.Invoked) != 1 || runner.Invoked[0] != "lsof -iTCP -sTCP:LISTEN -P -n" {
		t.Errorf("unexpected commands invoked: %v", runner.Invoked)
	}
}
