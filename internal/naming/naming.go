// Package naming derives stable VM identities and conflict-free port
// assignments. It operates on pure data and has no side effects.
package naming

import (
	"strings"

	"vortex/internal/constants"
	"vortex/internal/errors"
	"vortex/internal/types"
)

// VMIdentity derives the deterministic VM name for a service within a
// workspace: vortex-{workspace}-{service}.
func VMIdentity(workspaceName, serviceName string) string {
	return constants.VMNamespacePrefix + sanitize(workspaceName) + "-" + sanitize(serviceName)
}

// SessionIdentity derives the VM name for a standalone single-VM session.
func SessionIdentity(sessionName string) string {
	return constants.VMNamespacePrefix + sanitize(sessionName)
}

// IsManaged reports whether a backend-listed VM name carries the vortex
// namespace prefix, i.e. was created by this system.
func IsManaged(vmName string) bool {
	return strings.HasPrefix(vmName, constants.VMNamespacePrefix)
}

// sanitize lowercases a name and replaces characters a hypervisor may reject
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// languagePorts maps each language to its conventional dev-server port
var languagePorts = map[types.Language]int{
	types.LanguageNode:   3000,
	types.LanguagePython: 8000,
	types.LanguageGo:     8080,
	types.LanguageRust:   8080,
	types.LanguagePhp:    9000,
	types.LanguageRuby:   3000,
	types.LanguageScala:  9000,
	types.LanguageJava:   8080,
}

// servicePorts overrides the language default for infrastructure services
// whose port is fixed by the software they run, not the language
var servicePorts = map[types.ServiceType]int{
	types.ServiceTypeDatabase: 5432,
	types.ServiceTypeCache:    6379,
	types.ServiceTypeQueue:    4222,
}

// DefaultPort returns the suggested guest port for a (language, service type)
// pair, or 0 when no suggestion exists.
func DefaultPort(lang types.Language, st types.ServiceType) int {
	if port, ok := servicePorts[st]; ok {
		return port
	}
	if port, ok := languagePorts[lang]; ok {
		return port
	}
	return 0
}

// languageImages maps each language to its suggested base image
var languageImages = map[types.Language]string{
	types.LanguageNode:   "node:18-alpine",
	types.LanguagePython: "python:3.11-slim",
	types.LanguageGo:     "golang:1.21-alpine",
	types.LanguageRust:   "rust:1.70",
	types.LanguagePhp:    "php:8.2-fpm-alpine",
	types.LanguageRuby:   "ruby:3.2-alpine",
	types.LanguageScala:  "sbtscala/scala-sbt:eclipse-temurin-17.0.8.1_1.9.6_3.3.1",
	types.LanguageJava:   "openjdk:17-alpine",
}

// serviceImages overrides the language default for infrastructure services
var serviceImages = map[types.ServiceType]string{
	types.ServiceTypeDatabase: "postgres:16-alpine",
	types.ServiceTypeCache:    "redis:7-alpine",
	types.ServiceTypeQueue:    "nats:2.10-alpine",
}

// DefaultImage returns the suggested image for a (language, service type)
// pair, falling back to a language-agnostic base image.
func DefaultImage(lang types.Language, st types.ServiceType) string {
	if img, ok := serviceImages[st]; ok {
		return img
	}
	if img, ok := languageImages[lang]; ok {
		return img
	}
	return "ubuntu:22.04"
}

// PortAllocator hands out conflict-free host ports within one workspace
type PortAllocator struct {
	claimed map[int]bool
}

// NewPortAllocator creates an empty allocator
func NewPortAllocator() *PortAllocator {
	return &PortAllocator{claimed: make(map[int]bool)}
}

// Claim reserves the requested host port, or the next free port above it if
// taken. The search is bounded; exhaustion is an allocation failure, never an
// unbounded loop.
func (a *PortAllocator) Claim(serviceName string, requested int) (int, error) {
	if requested < constants.MinPortNumber || requested > constants.MaxPortNumber {
		return 0, errors.InvalidPort(requested, "outside valid range")
	}

	port := requested
	for attempt := 0; attempt < constants.MaxPortAllocationAttempts; attempt++ {
		if port > constants.MaxPortNumber {
			break
		}
		if !a.claimed[port] {
			a.claimed[port] = true
			return port, nil
		}
		port++
	}
	return 0, errors.PortAllocationFailed(serviceName, port)
}

// Claimed reports whether a host port is already reserved
func (a *PortAllocator) Claimed(port int) bool {
	return a.claimed[port]
}
