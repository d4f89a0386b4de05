package model

// HookPhase identifies which phase of the hook protocol an event belongs to.
type HookPhase string

const (
	// HookPhaseNone means no phase (e.g. no timeout occurred).
	HookPhaseNone HookPhase = ""
	// HookPhasePre is the phase between spawn and the readiness marker.
	HookPhasePre HookPhase = "pre"
	// HookPhasePost is the phase between result delivery and hook exit.
	HookPhasePost HookPhase = "post"
)

// HookContext is the information handed to a hook executable. Read-only once
// passed into the engine.
type HookContext struct {
	// ToolName is the name of the wrapped tool.
	ToolName string
	// ToolInput is the serialized tool input.
	ToolInput string
	// WorkspaceID identifies the workspace the tool runs against.
	WorkspaceID string
	// ProjectDir is the workspace project directory.
	ProjectDir string
	// ExtraEnv contains caller-supplied extra environment variables.
	ExtraEnv map[string]string
}

// HookResult is the single value returned to callers of the hook engine,
// regardless of which failure mode occurred.
type HookResult struct {
	// Success is true iff the hook process exited with code 0 and no phase
	// timed out.
	Success bool
	// ToolExecuted reports whether the wrapped tool actually ran.
	ToolExecuted bool
	// PreToolOutput is the hook stdout captured before the readiness marker.
	PreToolOutput string
	// PostToolOutput is the hook stdout captured after the readiness marker.
	PostToolOutput string
	// Stderr is the hook stderr, captured for diagnostics only. Timeout
	// diagnostics are appended here.
	Stderr string
	// ExitCode is the hook process exit code (-1 when it never ran or was killed).
	ExitCode int
	// TimedOutPhase names the phase that timed out, if any.
	TimedOutPhase HookPhase
}
