package model

import "time"

// ExecOptions contains options for executing a command through a runtime.
type ExecOptions struct {
	// WorkingDir is the directory to run the command in (optional).
	WorkingDir string
	// Env contains additional environment variables for this exec. They are
	// merged over the backend's base environment, never replacing it.
	Env map[string]string
	// TimeoutSeconds bounds the execution, implemented as cancellation after
	// the given duration. Zero means no timeout.
	TimeoutSeconds int
}

// FileStat describes a file on the target filesystem. Permission bits are
// deliberately not exposed: callers must not rely on executable-bit checks
// through this contract.
type FileStat struct {
	// SizeBytes is the file size in bytes.
	SizeBytes int64
	// ModTime is the last modification time.
	ModTime time.Time
	// IsDir reports whether the path is a directory.
	IsDir bool
}
