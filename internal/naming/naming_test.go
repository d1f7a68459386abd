package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vortex/internal/errors"
	"vortex/internal/types"
)

func TestVMIdentity(t *testing.T) {
	tests := []struct {
		name      string
		workspace string
		service   string
		expected  string
	}{
		{"simple", "myapp", "frontend", "vortex-myapp-frontend"},
		{"uppercase", "MyApp", "API", "vortex-myapp-api"},
		{"special chars", "my app!", "front_end", "vortex-my-app-front-end"},
		{"leading trailing", "-myapp-", "api", "vortex-myapp-api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, VMIdentity(tt.workspace, tt.service))
		})
	}
}

func TestIsManaged(t *testing.T) {
	assert.True(t, IsManaged("vortex-myapp-frontend"))
	assert.True(t, IsManaged(SessionIdentity("scratch")))
	assert.False(t, IsManaged("fedora-dev"))
	assert.False(t, IsManaged("myapp-frontend"))
}

func TestDefaultPort(t *testing.T) {
	tests := []struct {
		lang     types.Language
		st       types.ServiceType
		expected int
	}{
		{types.LanguageNode, types.ServiceTypeFrontend, 3000},
		{types.LanguagePython, types.ServiceTypeBackend, 8000},
		{types.LanguageGo, types.ServiceTypeBackend, 8080},
		{types.LanguageRust, types.ServiceTypeBackend, 8080},
		{types.LanguagePhp, types.ServiceTypeBackend, 9000},
		{types.LanguageRuby, types.ServiceTypeBackend, 3000},
		{types.LanguageJava, types.ServiceTypeBackend, 8080},
		// service type wins over language for infrastructure
		{types.LanguageUnknown, types.ServiceTypeDatabase, 5432},
		{types.LanguageGo, types.ServiceTypeCache, 6379},
		{types.LanguageUnknown, types.ServiceTypeQueue, 4222},
		{types.LanguageUnknown, types.ServiceTypeUnknown, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DefaultPort(tt.lang, tt.st),
			"lang=%s type=%s", tt.lang, tt.st)
	}
}

func TestDefaultImage(t *testing.T) {
	assert.Equal(t, "node:18-alpine", DefaultImage(types.LanguageNode, types.ServiceTypeFrontend))
	assert.Equal(t, "python:3.11-slim", DefaultImage(types.LanguagePython, types.ServiceTypeBackend))
	assert.Equal(t, "postgres:16-alpine", DefaultImage(types.LanguageUnknown, types.ServiceTypeDatabase))
	assert.Equal(t, "redis:7-alpine", DefaultImage(types.LanguageGo, types.ServiceTypeCache))
	assert.Equal(t, "ubuntu:22.04", DefaultImage(types.LanguageUnknown, types.ServiceTypeUnknown))
}

func TestPortAllocatorClaim(t *testing.T) {
	a := NewPortAllocator()

	port, err := a.Claim("frontend", 8080)
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	// Second claim of the same port moves to the next free one
	port, err = a.Claim("backend", 8080)
	require.NoError(t, err)
	assert.Equal(t, 8081, port)

	port, err = a.Claim("worker", 8080)
	require.NoError(t, err)
	assert.Equal(t, 8082, port)

	assert.True(t, a.Claimed(8080))
	assert.True(t, a.Claimed(8081))
	assert.False(t, a.Claimed(8090))
}

func TestPortAllocatorBounded(t *testing.T) {
	a := NewPortAllocator()
	for i := 0; i < 100; i++ {
		_, err := a.Claim("svc", 9000)
		require.NoError(t, err)
	}

	// Every port in the search window is taken now
	_, err := a.Claim("svc", 9000)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrPortAllocation))
}

func TestPortAllocatorInvalidPort(t *testing.T) {
	a := NewPortAllocator()
	_, err := a.Claim("svc", 0)
	assert.Error(t, err)
	_, err = a.Claim("svc", 70000)
	assert.Error(t, err)
}

func TestPortAllocatorStopsAtMaxPort(t *testing.T) {
	a := NewPortAllocator()
	port, err := a.Claim("svc", 65535)
	require.NoError(t, err)
	assert.Equal(t, 65535, port)

	_, err = a.Claim("svc", 65535)
	assert.True(t, errors.HasCode(err, errors.ErrPortAllocation))
}
