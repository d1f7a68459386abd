// Package xdg provides XDG Base Directory Specification compliant paths
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir returns the XDG config directory for vortex
// Priority: XDG_CONFIG_HOME > ~/.config/vortex
func ConfigDir() (string, error) {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vortex"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "vortex"), nil
}

// DataDir returns the XDG data directory for vortex
// Priority: XDG_DATA_HOME > ~/.local/share/vortex
func DataDir() (string, error) {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "vortex"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "share", "vortex"), nil
}

// StateDir returns the XDG state directory for vortex
// Priority: XDG_STATE_HOME > ~/.local/state/vortex
func StateDir() (string, error) {
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, "vortex"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "state", "vortex"), nil
}

// RuntimeDir returns the XDG runtime directory for vortex
// Priority: XDG_RUNTIME_DIR > /tmp/vortex-$UID
func RuntimeDir() (string, error) {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "vortex"), nil
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("vortex-%d", os.Getuid())), nil
}

// EnsureDir creates the given directory with standard permissions if missing
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
