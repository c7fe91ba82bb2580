// Package command abstracts external command execution.
// The abstraction exists so unit tests can substitute fakes for the real
// processes the application drives.
package command

import (
	"context"
	"os/exec"
)

// Executor defines an interface for running external commands.
type Executor interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// RunCombined executes a command and returns its combined standard output
	// and standard error.
	RunCombined(ctx context.Context, name string, args ...string) ([]byte, error)
	// RunBlocking executes a command with no context attached. It exists for
	// calls that must never be cancelled mid-flight; any deadline is imposed
	// by the caller from outside the running process.
	RunBlocking(name string, args ...string) ([]byte, error)
}

// System implements the Executor interface using the standard os/exec package.
// This is the implementation used in the production application.
type System struct{}

// Run is the production implementation for executing a command.
func (executor *System) Run(
	ctx context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// RunCombined is the production implementation for executing a command and
// capturing all output.
func (executor *System) RunCombined(
	ctx context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// RunBlocking is the production implementation for executing a command that
// must run to completion on its own terms.
func (executor *System) RunBlocking(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}
