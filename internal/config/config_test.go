package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def := Default()
	if *cfg != *def {
		t.Errorf("got %+v, want defaults %+v", cfg, def)
	}
}

func TestLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `graceful_wait: 10s
poll_interval: 100ms
process_exit_is_success: true
color_enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if time.Duration(cfg.GracefulWait) != 10*time.Second {
		t.Errorf("graceful_wait: got %v", time.Duration(cfg.GracefulWait))
	}
	if time.Duration(cfg.PollInterval) != 100*time.Millisecond {
		t.Errorf("poll_interval: got %v", time.Duration(cfg.PollInterval))
	}
	if !cfg.ProcessExitIsSuccess {
		t.Error("process_exit_is_success not applied")
	}
	if cfg.ColorEnabled {
		t.Error("color_enabled not applied")
	}

	// Fields absent from the file keep their defaults.
	if time.Duration(cfg.ForcefulWait) != time.Duration(Default().ForcefulWait) {
		t.Errorf("forceful_wait should keep default, got %v", time.Duration(cfg.ForcefulWait))
	}
}

func TestLoadFrom_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("graceful_wait: banana\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error for invalid duration")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.GracefulWait = Duration(2 * time.Second)
	cfg.ProcessExitIsSuccess = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch: got %+v, want %+v", loaded, cfg)
	}
}

func TestTimeouts(t *testing.T) {
	cfg := Default()
	cfg.ProcessExitIsSuccess = true

	tc := cfg.Timeouts()
	if tc.GracefulWait != time.Duration(cfg.GracefulWait) {
		t.Errorf("graceful: got %v", tc.GracefulWait)
	}
	if !tc.ProcessExitIsSuccess {
		t.Error("policy flag not carried over")
	}
}
