package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/tailscale/hujson"

	"github.com/hardenedlabs/secadm/internal/fsx"
)

// Config holds the daemon's configuration.
type Config struct {
	SocketPath string `json:"socket_path"` //nolint:tagliatelle // snake_case for config file
	LockPath   string `json:"lock_path"`   //nolint:tagliatelle
	LogLevel   string `json:"log_level"`   //nolint:tagliatelle
}

// Configuration errors.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigInvalid  = errors.New("invalid config file")
)

// DefaultConfig returns the built-in daemon configuration.
func DefaultConfig() Config {
	return Config{
		SocketPath: "/var/run/secadmd.sock",
		LockPath:   "/var/run/secadmd.lock",
		LogLevel:   "info",
	}
}

// LoadConfig reads a HuJSON config file and overlays it on the defaults.
// An empty path returns the defaults unchanged; a named file must exist
// and parse.
func LoadConfig(filesystem fsx.FS, path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	raw, err := filesystem.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}

		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
	}

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, path, err)
	}

	if cfg.SocketPath == "" {
		return Config{}, fmt.Errorf("%w: %s: socket_path cannot be empty", ErrConfigInvalid, path)
	}

	return cfg, nil
}
