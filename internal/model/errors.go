package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrPermissionDenied is returned when the target filesystem denies an operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrSpawn is returned when a process (or the hook executable) cannot be spawned.
	ErrSpawn = errors.New("could not spawn process")
	// ErrPathOutsideWorkspace is returned when a path escapes the workspace working
	// directory. This is a security boundary: callers should request permission
	// instead of retrying.
	ErrPathOutsideWorkspace = errors.New("path is outside the workspace")
	// ErrFileTooLarge is returned when a file exceeds the edit pipeline size ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrTransformationRejected is returned by edit transformations for domain
	// failures (e.g. search string not found), as opposed to infrastructure errors.
	ErrTransformationRejected = errors.New("transformation rejected")
	// ErrHookTimeout is returned when a hook phase times out. The phase is
	// carried in the HookResult and in the wrapping message.
	ErrHookTimeout = errors.New("hook timed out")
	// ErrHookExitedNonZero is returned when the hook process exits with a
	// nonzero code. This is hook failure, distinct from tool failure.
	ErrHookExitedNonZero = errors.New("hook exited with nonzero code")
	// ErrPlanModeRestricted is returned when a plan-mode session tries to edit
	// anything other than the plan file.
	ErrPlanModeRestricted = errors.New("plan mode only allows editing the plan file")
)
