// Package config provides the global vortex configuration
package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"vortex/internal/constants"
	"vortex/internal/types"
	"vortex/internal/xdg"
)

// GlobalConfig represents the global vortex configuration, read from
// config.toml in the XDG config directory.
type GlobalConfig struct {
	Server  ServerConfig  `toml:"server"`
	Backend BackendConfig `toml:"backend"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	// Port is the daemon API port
	Port int `toml:"port"`
}

type BackendConfig struct {
	// Kind selects the hypervisor backend; empty means auto-detect
	Kind types.BackendKind `toml:"kind"`
	// MemoryMiB is the default guest memory for new VMs
	MemoryMiB int `toml:"memory_mib"`
	// CPUs is the default vCPU count for new VMs
	CPUs int `toml:"cpus"`
}

type StorageConfig struct {
	// WorkspacesPath overrides where imported workspace files live
	WorkspacesPath string `toml:"workspaces_path"`
	// DatabasePath overrides the session database location
	DatabasePath string `toml:"database_path"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultGlobalConfig returns the default global configuration
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Server: ServerConfig{
			Port: constants.DefaultServerPort,
		},
		Backend: BackendConfig{
			MemoryMiB: constants.DefaultVMMemoryMiB,
			CPUs:      constants.DefaultVMCPUs,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigPath returns the location of the global config file
func ConfigPath() (string, error) {
	configDir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadGlobalConfig loads the global configuration, falling back to
// defaults when the file does not exist. Missing values are filled from
// defaults so a partial file stays valid.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultGlobalConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config GlobalConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	defaults := DefaultGlobalConfig()
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Backend.MemoryMiB == 0 {
		config.Backend.MemoryMiB = defaults.Backend.MemoryMiB
	}
	if config.Backend.CPUs == 0 {
		config.Backend.CPUs = defaults.Backend.CPUs
	}
	if config.Logging.Level == "" {
		config.Logging.Level = defaults.Logging.Level
	}

	return &config, nil
}

// Save writes the configuration to the global config file
func (c *GlobalConfig) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), constants.DirPermissions); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, constants.FilePermissions)
}
