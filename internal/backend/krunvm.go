package backend

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"vortex/internal/errors"
	"vortex/internal/logger"
	"vortex/internal/types"
)

// KrunvmBackend implements Backend on top of the krunvm CLI
type KrunvmBackend struct {
	executor CommandExecutor
}

// NewKrunvmBackend creates a krunvm-backed backend
func NewKrunvmBackend(executor CommandExecutor) *KrunvmBackend {
	if executor == nil {
		executor = &DefaultCommandExecutor{}
	}
	return &KrunvmBackend{executor: executor}
}

// Kind returns the backend kind
func (b *KrunvmBackend) Kind() types.BackendKind {
	return types.BackendKrunVm
}

// Available checks whether the krunvm binary works on this system
func (b *KrunvmBackend) Available(ctx context.Context) bool {
	cmd := b.executor.CommandContext(ctx, "krunvm", "--help")
	return cmd.Run() == nil
}

// Create provisions a VM via `krunvm create`
func (b *KrunvmBackend) Create(ctx context.Context, cfg CreateConfig) (*VmHandle, error) {
	if cfg.Name == "" {
		return nil, errors.ValidationFailed("name", "", "vm name is required")
	}
	if cfg.Image == "" {
		return nil, errors.ValidationFailed("image", "", "vm image is required")
	}

	args := []string{"create", NormalizeImageName(cfg.Image),
		"--name", cfg.Name,
		"--mem", strconv.Itoa(cfg.MemoryMiB),
		"--cpus", strconv.Itoa(cfg.CPUs),
	}
	for _, pm := range cfg.Ports {
		args = append(args, "--port", pm.String())
	}
	for _, vol := range cfg.Volumes {
		args = append(args, "-v", vol.HostPath+":"+vol.GuestPath)
	}

	cmd := b.executor.CommandContext(ctx, "krunvm", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.BackendCallFailed("create", cfg.Name,
			fmt.Errorf("krunvm create failed: %s: %w", strings.TrimSpace(stderr.String()), err))
	}

	return &VmHandle{
		Name:    cfg.Name,
		Kind:    types.BackendKrunVm,
		Command: cfg.Command,
		Env:     cfg.Env,
		Volumes: cfg.Volumes,
	}, nil
}

// Start boots the VM. krunvm runs the VM in the foreground, so the
// launched process is held in the background and a successful launch
// counts as started; the VM then shows up in List until deleted.
func (b *KrunvmBackend) Start(ctx context.Context, handle *VmHandle) error {
	args := []string{"start", handle.Name}
	if shellCmd := handle.startCommand(); shellCmd != "" {
		args = append(args, "--")
		if needsShell(shellCmd) || len(handle.Env) > 0 {
			args = append(args, "sh", "-c", shellCmd)
		} else {
			args = append(args, strings.Fields(shellCmd)...)
		}
	}

	cmd := b.executor.CommandContext(ctx, "krunvm", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return errors.BackendCallFailed("start", handle.Name,
			fmt.Errorf("krunvm start failed: %s: %w", strings.TrimSpace(stderr.String()), err))
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			logger.WithFields(logger.Fields{
				"vm":    handle.Name,
				"error": err.Error(),
			}).Debug("VM process exited")
		}
	}()

	return nil
}

// Stop halts the VM. krunvm has no stop primitive separate from
// deletion, so stopping tears the VM down; workspace files survive in
// storage because they live on the host side of the volume mounts.
func (b *KrunvmBackend) Stop(ctx context.Context, handle *VmHandle) error {
	if err := b.Delete(ctx, handle); err != nil {
		return errors.BackendCallFailed("stop", handle.Name, err)
	}
	return nil
}

// Delete removes the VM. A failure from krunvm is logged and swallowed
// because the VM may already be gone.
func (b *KrunvmBackend) Delete(ctx context.Context, handle *VmHandle) error {
	cmd := b.executor.CommandContext(ctx, "krunvm", "delete", handle.Name)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		logger.WithFields(logger.Fields{
			"vm":     handle.Name,
			"stderr": strings.TrimSpace(stderr.String()),
		}).Warn("krunvm delete failed (VM may already be deleted)")
	}
	return nil
}

// List returns the names of all VMs krunvm knows about
func (b *KrunvmBackend) List(ctx context.Context) ([]string, error) {
	cmd := b.executor.CommandContext(ctx, "krunvm", "list")
	output, err := cmd.Output()
	if err != nil {
		return nil, errors.BackendCallFailed("list", "", fmt.Errorf("krunvm list failed: %w", err))
	}
	return parseVMList(string(output)), nil
}

// Attach connects an interactive shell to the VM and blocks until the
// session ends. Clean user-initiated exits (Ctrl+C, hangup) are not
// errors.
func (b *KrunvmBackend) Attach(ctx context.Context, handle *VmHandle, opts AttachOptions) error {
	shell := opts.Command
	if shell == "" {
		shell = "sh"
	}

	cmd := b.executor.CommandContext(ctx, "krunvm", "start", handle.Name, "--",
		"sh", "-c", fmt.Sprintf("export TERM=vt100; stty sane; exec %s", shell))
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	}
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	switch exitCode(err) {
	case 129, 130:
		// SIGHUP / SIGINT, a normal way to leave an interactive session
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	return errors.BackendCallFailed("attach", handle.Name, err)
}

// Exec runs a command inside the VM and captures its outcome
func (b *KrunvmBackend) Exec(ctx context.Context, handle *VmHandle, command []string) (*ExecResult, error) {
	if len(command) == 0 {
		return nil, errors.ValidationFailed("command", "", "exec command is required")
	}

	args := append([]string{"start", handle.Name, "--"}, command...)
	cmd := b.executor.CommandContext(ctx, "krunvm", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &ExecResult{
		ExitCode: 0,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
	if err != nil {
		code := exitCode(err)
		if code < 0 {
			return nil, errors.BackendCallFailed("exec", handle.Name, err)
		}
		result.ExitCode = code
	}
	return result, nil
}

// CopyIn copies a host path into the VM through its shared volume
// mounts; krunvm volumes are virtiofs shares, so writing to the host
// side of a mount makes the files appear in the guest.
func (b *KrunvmBackend) CopyIn(ctx context.Context, handle *VmHandle, hostPath, guestPath string) error {
	target, err := handle.hostPathFor(guestPath)
	if err != nil {
		return errors.BackendCallFailed("copy-in", handle.Name, err)
	}
	if err := copyPath(ctx, hostPath, target); err != nil {
		return errors.BackendCallFailed("copy-in", handle.Name, err)
	}
	return nil
}

// CopyOut copies a guest path out of the VM through its shared volume
// mounts.
func (b *KrunvmBackend) CopyOut(ctx context.Context, handle *VmHandle, guestPath, hostPath string) error {
	source, err := handle.hostPathFor(guestPath)
	if err != nil {
		return errors.BackendCallFailed("copy-out", handle.Name, err)
	}
	if err := copyPath(ctx, source, hostPath); err != nil {
		return errors.BackendCallFailed("copy-out", handle.Name, err)
	}
	return nil
}

// startCommand folds the handle's env into its command so both survive
// transport to the guest as a single shell line.
func (h *VmHandle) startCommand() string {
	if len(h.Env) == 0 {
		return h.Command
	}

	keys := make([]string, 0, len(h.Env))
	for k := range h.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "export %s=%q; ", k, h.Env[k])
	}
	if h.Command != "" {
		sb.WriteString("exec " + h.Command)
	} else {
		sb.WriteString("exec sh")
	}
	return sb.String()
}

// hostPathFor resolves a guest path to its host-side location via the
// handle's volume mounts.
func (h *VmHandle) hostPathFor(guestPath string) (string, error) {
	for _, vol := range h.Volumes {
		rel, err := filepath.Rel(vol.GuestPath, guestPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return filepath.Join(vol.HostPath, rel), nil
	}
	return "", fmt.Errorf("guest path %s is not under any shared volume", guestPath)
}

func needsShell(command string) bool {
	return strings.ContainsAny(command, "&|;<>$")
}

func exitCode(err error) int {
	type coder interface{ ExitCode() int }
	var c coder
	if stderrors.As(err, &c) {
		return c.ExitCode()
	}
	return -1
}

// parseVMList extracts VM names from `krunvm list` output, which prints
// one name per VM followed by indented detail lines.
func parseVMList(output string) []string {
	names := []string{}
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != line {
			// detail lines are indented under the VM name
			continue
		}
		if trimmed == "" ||
			strings.Contains(trimmed, "CPUs:") ||
			strings.Contains(trimmed, "RAM") ||
			strings.Contains(trimmed, "DNS") ||
			strings.Contains(trimmed, "Buildah") ||
			strings.Contains(trimmed, "Workdir") ||
			strings.Contains(trimmed, "Mapped") {
			continue
		}
		names = append(names, trimmed)
	}
	return names
}
