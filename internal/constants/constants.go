// Package constants defines application-wide constants to avoid magic numbers
package constants

import "time"

// VM Naming
const (
	// VMNamespacePrefix is prepended to every VM name created by vortex so
	// managed VMs can be told apart from unrelated processes in a backend list
	VMNamespacePrefix = "vortex-"
)

// Network and Port Constants
const (
	// DefaultServerPort is the default port for the vortex daemon API
	DefaultServerPort = 7420

	// MinPortNumber is the minimum valid TCP port number
	MinPortNumber = 1

	// MaxPortNumber is the maximum valid TCP port number
	MaxPortNumber = 65535

	// MaxPortAllocationAttempts bounds the port collision search before the
	// resolver reports an allocation failure
	MaxPortAllocationAttempts = 100
)

// File System Permissions
const (
	// DirPermissions is the standard directory permissions for vortex directories
	DirPermissions = 0755

	// FilePermissions is the standard file permissions for vortex config files
	FilePermissions = 0644
)

// Discovery
const (
	// DefaultScanDepth bounds how deep the discovery scanner descends
	DefaultScanDepth = 2
)

// VM Defaults
const (
	// DefaultVMMemoryMiB is the default guest memory for a service VM
	DefaultVMMemoryMiB = 2048

	// DefaultVMCPUs is the default vCPU count for a service VM
	DefaultVMCPUs = 2
)

// Timing and Timeouts
const (
	// DefaultReadinessTimeout bounds how long the orchestrator polls the
	// backend for a VM to appear after start
	DefaultReadinessTimeout = 60 * time.Second

	// DefaultReadinessPollInterval is the delay between readiness polls
	DefaultReadinessPollInterval = 500 * time.Millisecond

	// DefaultHookTimeout bounds post-start hook execution
	DefaultHookTimeout = 120 * time.Second

	// DefaultCopyTimeout bounds workspace storage copy verification
	DefaultCopyTimeout = 120 * time.Second

	// DefaultBackendCallTimeout bounds individual backend CLI invocations
	DefaultBackendCallTimeout = 60 * time.Second
)

// Database Configuration
const (
	// DefaultMaxOpenConnections is the default maximum number of database connections
	DefaultMaxOpenConnections = 25

	// DefaultMaxIdleConnections is the default maximum number of idle database connections
	DefaultMaxIdleConnections = 5

	// DefaultConnectionLifetime is the default database connection lifetime
	DefaultConnectionLifetime = 5 * time.Minute

	// DefaultIdleTimeout is the default database idle connection timeout
	DefaultIdleTimeout = 1 * time.Minute
)

// HTTP Configuration
const (
	// DefaultServerShutdownTimeout is the default server graceful shutdown timeout
	DefaultServerShutdownTimeout = 30 * time.Second
)
