// Package dispatch abstracts "run one task to completion in an isolated
// environment and return its result and changed files". Two providers
// exist: local containers with bind-mounted workdirs, and remote
// task-runner containers that exchange work via git branches. The
// orchestrator treats both identically.
package dispatch

import (
	"context"

	"github.com/calder/worldmind/internal/models"
)

// Request carries everything a provider needs to run one task.
type Request struct {
	Task           models.Task
	ProjectContext string
	ProjectPath    string
	GitRemote      string
	RuntimeTag     string
	ReasoningLevel string
}

// Result is the outcome of one dispatch. Worker-reported failure is a task
// outcome carried in Task.Status, not an error; Execute returns a non-nil
// error only for infrastructure failures the provider could not encode.
type Result struct {
	// Task is the input task with observed status, files-affected and
	// elapsed time filled in.
	Task models.Task

	// Container references the worker container that ran the task.
	Container models.ContainerInfo

	// Output is the raw agent output.
	Output string
}

// Dispatcher runs one task to completion. Execute blocks until the task
// completes, fails, or exceeds its timeout; a timeout surfaces as a failed
// task result, not an error.
type Dispatcher interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}
