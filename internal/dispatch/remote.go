package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calder/worldmind/internal/gitws"
	"github.com/calder/worldmind/internal/models"
)

// RemoteDispatcher runs workers on a remote task platform. Work is
// exchanged via git branches: the runner clones the remote, executes the
// task, and pushes the task branch; the dispatcher then fetches the branch
// and diffs it against origin/main to observe the changed files.
type RemoteDispatcher struct {
	// RunnerPath is the task-runner submission binary.
	RunnerPath string

	// Image is the worker image the platform should launch.
	Image string

	// Timeout bounds one task execution including queueing.
	Timeout time.Duration

	// Runner executes the submission command. Defaults to
	// ExecCommandRunner.
	Runner CommandRunner

	// Workspace fetches and diffs task branches after completion.
	Workspace *gitws.Workspace
}

// NewRemoteDispatcher creates a remote provider submitting via runnerPath.
func NewRemoteDispatcher(runnerPath, image string, timeout time.Duration, ws *gitws.Workspace) *RemoteDispatcher {
	return &RemoteDispatcher{
		RunnerPath: runnerPath,
		Image:      image,
		Timeout:    timeout,
		Runner:     ExecCommandRunner{},
		Workspace:  ws,
	}
}

// BuildArgs constructs the submission command for a request.
func (d *RemoteDispatcher) BuildArgs(req Request) []string {
	args := []string{
		"submit",
		"--wait",
		"--image", d.Image,
		"--task-id", req.Task.ID,
		"--role", string(req.Task.Role),
		"--branch", gitws.TaskBranch(req.Task.ID),
		"--remote", req.GitRemote,
	}
	if req.RuntimeTag != "" {
		args = append(args, "--runtime", req.RuntimeTag)
	}
	if req.ReasoningLevel != "" {
		args = append(args, "--reasoning", req.ReasoningLevel)
	}
	args = append(args, "--prompt", workerPrompt(req))
	return args
}

// Execute submits the task and blocks until the platform reports
// completion.
func (d *RemoteDispatcher) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.GitRemote == "" {
		return nil, errors.New("remote dispatch requires a git remote")
	}
	runner := d.Runner
	if runner == nil {
		runner = ExecCommandRunner{}
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	task := req.Task
	task.Status = models.TaskExecuting
	started := nowMillis()

	output, exitCode, err := runner.Run(ctx, d.RunnerPath, d.BuildArgs(req)...)
	completed := nowMillis()

	task.ElapsedMS = completed - started
	container := models.ContainerInfo{
		ID:          fmt.Sprintf("remote-%s-%d", req.Task.ID, started),
		TaskID:      task.ID,
		Image:       d.Image,
		StartedAt:   started,
		CompletedAt: completed,
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			task.Status = models.TaskFailed
			return &Result{Task: task, Container: container, Output: "task timed out: " + err.Error()}, nil
		}
		return nil, fmt.Errorf("failed to submit remote task: %w", err)
	}

	task.Status = observedStatus(output, exitCode)
	if task.Status == models.TaskPassed && d.Workspace != nil {
		if changes, diffErr := d.Workspace.TaskBranchChanges(ctx, req.Task.ID); diffErr == nil {
			task.FilesAffected = changes
		}
	}

	return &Result{Task: task, Container: container, Output: output}, nil
}
