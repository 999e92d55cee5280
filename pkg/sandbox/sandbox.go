// Package sandbox defines the interface to the ephemeral execution
// environment a run's tool calls operate in.
package sandbox

import (
	"context"
	"fmt"
)

// ProvisionError indicates the sandbox provider could not create a sandbox.
// Fatal for the run.
type ProvisionError struct {
	Template string
	Err      error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning sandbox from %q: %v", e.Template, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// OutputSinks receives command output incrementally as it is produced.
type OutputSinks struct {
	OnStdout func(string)
	OnStderr func(string)
}

// CommandResult captures a finished command. A non-zero exit code is not an
// error: callers inspect the buffers. Errors are reserved for infrastructure
// failures reaching the sandbox.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Client provisions and drives sandboxes. One sandbox serves exactly one run
// and is never reused across runs; cleanup happens via idle timeout, not
// explicit destroy.
type Client interface {
	// Create provisions a sandbox from the given template (image) and
	// returns its id. Fails with *ProvisionError.
	Create(ctx context.Context, template string) (string, error)

	// Run executes a shell command, streaming output to sinks if non-nil.
	// Returns even on non-zero exit.
	Run(ctx context.Context, sandboxID, command string, sinks *OutputSinks) (CommandResult, error)

	// WriteFile writes content at a path relative to the sandbox work dir.
	WriteFile(ctx context.Context, sandboxID, path, content string) error

	// ReadFile reads a file at a path relative to the sandbox work dir.
	ReadFile(ctx context.Context, sandboxID, path string) (string, error)

	// PublicURL derives an externally reachable URL for a port the sandbox
	// listens on.
	PublicURL(ctx context.Context, sandboxID string, port int) (string, error)
}
