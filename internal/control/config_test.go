package control

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hardenedlabs/secadm/internal/fsx"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(fsx.NewReal(), "")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "secadmd.conf")

	contents := `{
  // local development setup
  "socket_path": "/tmp/secadmd-dev.sock",
  "log_level": "debug",
}`

	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(fsx.NewReal(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.SocketPath != "/tmp/secadmd-dev.sock" {
		t.Errorf("socket path = %q", cfg.SocketPath)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}

	// Unset fields keep their defaults.
	if cfg.LockPath != DefaultConfig().LockPath {
		t.Errorf("lock path = %q, want default", cfg.LockPath)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.conf")
	if err := os.WriteFile(bad, []byte("{not hujson"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	empty := filepath.Join(dir, "empty-socket.conf")
	if err := os.WriteFile(empty, []byte(`{"socket_path": ""}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"missing file", filepath.Join(dir, "missing.conf"), ErrConfigNotFound},
		{"malformed file", bad, ErrConfigInvalid},
		{"empty socket path", empty, ErrConfigInvalid},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadConfig(fsx.NewReal(), testCase.path)
			if !errors.Is(err, testCase.wantErr) {
				t.Errorf("LoadConfig(%q) = %v, want %v", testCase.path, err, testCase.wantErr)
			}
		})
	}
}
