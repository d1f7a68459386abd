package errors

import "fmt"

// Discovery and compilation errors

func ValidationFailed(field, value, reason string) *VortexError {
	return NewWithDetails(ErrValidationFailed, "Validation failed",
		fmt.Sprintf("Field: %s, Value: %s, Reason: %s", field, value, reason))
}

func PortAllocationFailed(service string, port int) *VortexError {
	return NewWithDetails(ErrPortAllocation, "Could not allocate a free host port",
		fmt.Sprintf("Service: %s, last attempted port: %d", service, port))
}

// Import errors

func ImportIncomplete(reason string) *VortexError {
	return NewWithDetails(ErrImportIncomplete, "Descriptor import incomplete", reason)
}

func ImportCopyFailed(cause error) *VortexError {
	return Wrap(ErrImportIncomplete, "Workspace storage copy failed verification", cause)
}

// Backend errors

func BackendUnavailable(kind string) *VortexError {
	return NewWithDetails(ErrBackendUnavailable, "No usable VM backend",
		fmt.Sprintf("Backend: %s", kind))
}

func BackendCallFailed(operation, vmName string, cause error) *VortexError {
	return WrapWithDetails(ErrBackendCallFailed, "Backend call failed",
		fmt.Sprintf("Operation: %s, VM: %s", operation, vmName), cause)
}

func VMNameInUse(vmName string) *VortexError {
	return NewWithDetails(ErrVMNameInUse, "A VM with this name already exists",
		fmt.Sprintf("VM: %s", vmName))
}

func OrphanDetected(vmName string) *VortexError {
	return NewWithDetails(ErrOrphanDetected, "Backend reports a vortex VM with no session record",
		fmt.Sprintf("VM: %s", vmName))
}

func TemplateNotFound(name string) *VortexError {
	return NewWithDetails(ErrNotFound, "Template not found", fmt.Sprintf("Template: %s", name))
}

// Workspace and session errors

func WorkspaceNotFound(name string) *VortexError {
	return NewWithDetails(ErrWorkspaceNotFound, "Workspace not found", fmt.Sprintf("Workspace: %s", name))
}

func SessionNotFound(id string) *VortexError {
	return NewWithDetails(ErrSessionNotFound, "Session not found", fmt.Sprintf("Session: %s", id))
}

func InvalidState(subject, state, operation string) *VortexError {
	return NewWithDetails(ErrInvalidState, "Operation not permitted in current state",
		fmt.Sprintf("Subject: %s, State: %s, Operation: %s", subject, state, operation))
}

// Configuration errors

func ConfigNotFound(path string) *VortexError {
	return NewWithDetails(ErrConfigNotFound, "Configuration file not found", fmt.Sprintf("Path: %s", path))
}

func ConfigParseError(cause error) *VortexError {
	return Wrap(ErrConfigParse, "Failed to parse configuration", cause)
}

// Validation errors

func InvalidPath(path interface{}, reason string) *VortexError {
	return NewWithDetails(ErrInvalidPath, "Invalid path",
		fmt.Sprintf("Path: %v, Reason: %s", path, reason))
}

func InvalidPort(port interface{}, reason string) *VortexError {
	return NewWithDetails(ErrInvalidPort, "Invalid port",
		fmt.Sprintf("Port: %v, Reason: %s", port, reason))
}

// Timeout errors

func Timeout(operation string) *VortexError {
	return NewWithDetails(ErrTimeout, "Operation timed out", fmt.Sprintf("Operation: %s", operation))
}
