// Package types provides common type definitions shared across vortex packages
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ServiceType classifies what role a service plays in a workspace
type ServiceType string

const (
	ServiceTypeFrontend ServiceType = "frontend"
	ServiceTypeBackend  ServiceType = "backend"
	ServiceTypeWorker   ServiceType = "worker"
	ServiceTypeDatabase ServiceType = "database"
	ServiceTypeCache    ServiceType = "cache"
	ServiceTypeQueue    ServiceType = "queue"
	ServiceTypeUnknown  ServiceType = "unknown"
)

// StartTier returns the dependency tier for workspace startup ordering.
// Lower tiers start first; services in the same tier start concurrently.
func (s ServiceType) StartTier() int {
	switch s {
	case ServiceTypeDatabase, ServiceTypeCache, ServiceTypeQueue:
		return 0
	case ServiceTypeBackend, ServiceTypeWorker:
		return 1
	case ServiceTypeFrontend:
		return 2
	default:
		return 1
	}
}

// Language identifies the implementation language detected for a service
type Language string

const (
	LanguageNode    Language = "node"
	LanguagePython  Language = "python"
	LanguageGo      Language = "go"
	LanguageRust    Language = "rust"
	LanguagePhp     Language = "php"
	LanguageRuby    Language = "ruby"
	LanguageScala   Language = "scala"
	LanguageJava    Language = "java"
	LanguageUnknown Language = "unknown"
)

// BackendKind identifies the hypervisor backend of a workspace
type BackendKind string

const (
	BackendKrunVm      BackendKind = "krunvm"
	BackendFirecracker BackendKind = "firecracker"
	// BackendNone marks a configuration-only workspace; lifecycle operations
	// are rejected but compilation and editing still work
	BackendNone BackendKind = "none"
)

// Origin records how a workspace specification came to exist
type Origin string

const (
	OriginScanned  Origin = "scanned"
	OriginImported Origin = "imported"
	OriginTemplate Origin = "template"
)

// SessionState tracks a session through its lifecycle. Every transition
// is confirmed by a backend call before the record advances.
type SessionState string

const (
	SessionPlanned  SessionState = "planned"
	SessionCreating SessionState = "creating"
	SessionCreated  SessionState = "created"
	SessionStarting SessionState = "starting"
	SessionRunning  SessionState = "running"
	SessionAttached SessionState = "attached"
	SessionStopping SessionState = "stopping"
	SessionStopped  SessionState = "stopped"
	SessionDeleting SessionState = "deleting"
	SessionDeleted  SessionState = "deleted"
	SessionFailed   SessionState = "failed"
)

// Active reports whether the session currently owns a backend VM
func (s SessionState) Active() bool {
	switch s {
	case SessionCreated, SessionStarting, SessionRunning, SessionAttached, SessionStopping:
		return true
	}
	return false
}

// PortMapping is a host:guest TCP port pair
type PortMapping struct {
	Host  int `toml:"host" json:"host"`
	Guest int `toml:"guest" json:"guest"`
}

// String renders the mapping in HOST:GUEST form
func (p PortMapping) String() string {
	return fmt.Sprintf("%d:%d", p.Host, p.Guest)
}

// ParsePortMapping parses a HOST:GUEST pair; a bare port maps to itself
func ParsePortMapping(s string) (PortMapping, error) {
	parts := strings.SplitN(s, ":", 2)
	host, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return PortMapping{}, fmt.Errorf("invalid host port %q: %w", parts[0], err)
	}
	guest := host
	if len(parts) == 2 {
		guest, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return PortMapping{}, fmt.Errorf("invalid guest port %q: %w", parts[1], err)
		}
	}
	return PortMapping{Host: host, Guest: guest}, nil
}

// VolumeMount is a host-path:guest-path pair
type VolumeMount struct {
	HostPath  string `toml:"host_path" json:"host_path"`
	GuestPath string `toml:"guest_path" json:"guest_path"`
}

// String renders the mount in HOST:GUEST form
func (v VolumeMount) String() string {
	return v.HostPath + ":" + v.GuestPath
}
