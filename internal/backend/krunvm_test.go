package backend

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vortex/internal/types"
)

// recordingExecutor captures every spawned command and substitutes a
// harmless local process for krunvm.
type recordingExecutor struct {
	calls  [][]string
	script string
}

func (r *recordingExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	r.calls = append(r.calls, append([]string{name}, args...))
	script := r.script
	if script == "" {
		script = "true"
	}
	return exec.CommandContext(ctx, "sh", "-c", script)
}

func (r *recordingExecutor) lastCall() []string {
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func testHandle() *VmHandle {
	return &VmHandle{Name: "vortex-demo-api", Kind: types.BackendKrunVm}
}

func TestCreateArgs(t *testing.T) {
	rec := &recordingExecutor{}
	b := NewKrunvmBackend(rec)

	handle, err := b.Create(context.Background(), CreateConfig{
		Name:      "vortex-demo-api",
		Image:     "alpine",
		MemoryMiB: 2048,
		CPUs:      2,
		Ports:     []types.PortMapping{{Host: 8080, Guest: 8080}},
		Volumes:   []types.VolumeMount{{HostPath: "/srv/api", GuestPath: "/workspace"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"krunvm", "create", "docker.io/library/alpine:latest",
		"--name", "vortex-demo-api",
		"--mem", "2048",
		"--cpus", "2",
		"--port", "8080:8080",
		"-v", "/srv/api:/workspace",
	}, rec.lastCall())

	assert.Equal(t, "vortex-demo-api", handle.Name)
	assert.Equal(t, types.BackendKrunVm, handle.Kind)
	assert.Equal(t, []types.VolumeMount{{HostPath: "/srv/api", GuestPath: "/workspace"}}, handle.Volumes)
}

func TestCreateValidation(t *testing.T) {
	b := NewKrunvmBackend(&recordingExecutor{})
	_, err := b.Create(context.Background(), CreateConfig{Image: "alpine"})
	require.Error(t, err)
	_, err = b.Create(context.Background(), CreateConfig{Name: "x"})
	require.Error(t, err)
}

func TestCreateFailureIncludesStderr(t *testing.T) {
	rec := &recordingExecutor{script: "echo boom >&2; exit 1"}
	b := NewKrunvmBackend(rec)
	_, err := b.Create(context.Background(), CreateConfig{Name: "x", Image: "alpine"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestStartPlainCommand(t *testing.T) {
	rec := &recordingExecutor{}
	b := NewKrunvmBackend(rec)

	handle := testHandle()
	handle.Command = "npm start"
	require.NoError(t, b.Start(context.Background(), handle))

	assert.Equal(t, []string{"krunvm", "start", "vortex-demo-api", "--", "npm", "start"}, rec.lastCall())
}

func TestStartShellMetachars(t *testing.T) {
	rec := &recordingExecutor{}
	b := NewKrunvmBackend(rec)

	handle := testHandle()
	handle.Command = "make build && make run"
	require.NoError(t, b.Start(context.Background(), handle))

	assert.Equal(t, []string{
		"krunvm", "start", "vortex-demo-api", "--", "sh", "-c", "make build && make run",
	}, rec.lastCall())
}

func TestStartFoldsEnvIntoShellLine(t *testing.T) {
	rec := &recordingExecutor{}
	b := NewKrunvmBackend(rec)

	handle := testHandle()
	handle.Command = "npm start"
	handle.Env = map[string]string{"PORT": "3000", "DEBUG": "1"}
	require.NoError(t, b.Start(context.Background(), handle))

	// env keys are exported in sorted order so the line is stable
	assert.Equal(t, []string{
		"krunvm", "start", "vortex-demo-api", "--", "sh", "-c",
		`export DEBUG="1"; export PORT="3000"; exec npm start`,
	}, rec.lastCall())
}

func TestStartWithoutCommand(t *testing.T) {
	rec := &recordingExecutor{}
	b := NewKrunvmBackend(rec)
	require.NoError(t, b.Start(context.Background(), testHandle()))
	assert.Equal(t, []string{"krunvm", "start", "vortex-demo-api"}, rec.lastCall())
}

func TestStopDelegatesToDelete(t *testing.T) {
	rec := &recordingExecutor{}
	b := NewKrunvmBackend(rec)
	require.NoError(t, b.Stop(context.Background(), testHandle()))
	assert.Equal(t, []string{"krunvm", "delete", "vortex-demo-api"}, rec.lastCall())
}

func TestDeleteSwallowsFailure(t *testing.T) {
	rec := &recordingExecutor{script: "exit 1"}
	b := NewKrunvmBackend(rec)
	assert.NoError(t, b.Delete(context.Background(), testHandle()))
}

func TestListParsesNames(t *testing.T) {
	rec := &recordingExecutor{script: `printf 'vortex-demo-api\n CPUs: 2\n RAM (MiB): 2048\n DNS server: 1.1.1.1\n Buildah container: abc\n Workdir: /\n Mapped ports:\n  8080:8080\nvortex-demo-web\n CPUs: 1\n'`}
	b := NewKrunvmBackend(rec)

	names, err := b.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"vortex-demo-api", "vortex-demo-web"}, names)
}

func TestParseVMList(t *testing.T) {
	out := "vm-one\n  CPUs: 2\n  RAM (MiB): 1024\n  Mapped ports:\n    8080:8080\nvm-two\n  Buildah container: xyz\n\n"
	assert.Equal(t, []string{"vm-one", "vm-two"}, parseVMList(out))
	assert.Empty(t, parseVMList(""))
}

func TestExecCapturesExitCode(t *testing.T) {
	rec := &recordingExecutor{script: "echo out; echo err >&2; exit 3"}
	b := NewKrunvmBackend(rec)

	result, err := b.Exec(context.Background(), testHandle(), []string{"false"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "out\n", string(result.Stdout))
	assert.Equal(t, "err\n", string(result.Stderr))
}

func TestExecSuccess(t *testing.T) {
	rec := &recordingExecutor{script: "echo hello"}
	b := NewKrunvmBackend(rec)

	result, err := b.Exec(context.Background(), testHandle(), []string{"echo", "hello"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, []string{"krunvm", "start", "vortex-demo-api", "--", "echo", "hello"}, rec.lastCall())
}

func TestExecEmptyCommand(t *testing.T) {
	b := NewKrunvmBackend(&recordingExecutor{})
	_, err := b.Exec(context.Background(), testHandle(), nil)
	require.Error(t, err)
}

func TestAttachTreatsInterruptAsClean(t *testing.T) {
	rec := &recordingExecutor{script: "exit 130"}
	b := NewKrunvmBackend(rec)
	assert.NoError(t, b.Attach(context.Background(), testHandle(), AttachOptions{}))

	rec = &recordingExecutor{script: "exit 129"}
	b = NewKrunvmBackend(rec)
	assert.NoError(t, b.Attach(context.Background(), testHandle(), AttachOptions{}))

	rec = &recordingExecutor{script: "exit 7"}
	b = NewKrunvmBackend(rec)
	assert.Error(t, b.Attach(context.Background(), testHandle(), AttachOptions{}))
}

func TestAttachUsesShellWrapper(t *testing.T) {
	rec := &recordingExecutor{}
	b := NewKrunvmBackend(rec)
	require.NoError(t, b.Attach(context.Background(), testHandle(), AttachOptions{Command: "bash"}))
	assert.Equal(t, []string{
		"krunvm", "start", "vortex-demo-api", "--",
		"sh", "-c", "export TERM=vt100; stty sane; exec bash",
	}, rec.lastCall())
}

func TestHostPathFor(t *testing.T) {
	handle := testHandle()
	handle.Volumes = []types.VolumeMount{
		{HostPath: "/srv/ws", GuestPath: "/workspace"},
		{HostPath: "/var/cache", GuestPath: "/cache"},
	}

	host, err := handle.hostPathFor("/workspace/src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "/srv/ws/src/main.go", host)

	host, err = handle.hostPathFor("/cache")
	require.NoError(t, err)
	assert.Equal(t, "/var/cache", host)

	_, err = handle.hostPathFor("/etc/passwd")
	require.Error(t, err)
}

func TestNormalizeImageName(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"alpine", "docker.io/library/alpine:latest"},
		{"ubuntu", "docker.io/library/ubuntu:latest"},
		{"debian", "docker.io/library/debian:latest"},
		{"node:18-alpine", "docker.io/library/node:18-alpine"},
		{"ghcr.io/owner/image:tag", "ghcr.io/owner/image:tag"},
		{"docker.io/library/postgres:16", "docker.io/library/postgres:16"},
		{"myimage", "docker.io/library/myimage:latest"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, NormalizeImageName(tt.in), tt.in)
	}
}
