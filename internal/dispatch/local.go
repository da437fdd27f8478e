package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/calder/worldmind/internal/gitws"
	"github.com/calder/worldmind/internal/models"
)

// LocalDispatcher runs worker containers on the local daemon with the
// project directory bind-mounted into the container.
type LocalDispatcher struct {
	// DockerPath overrides the container binary (default "docker").
	DockerPath string

	// Image is the worker container image.
	Image string

	// Network optionally attaches workers to a container network.
	Network string

	// Timeout bounds one task execution.
	Timeout time.Duration

	// Runner executes the container command. Defaults to ExecCommandRunner.
	Runner CommandRunner

	// Git diffs the bind-mounted workdir after the run to observe changed
	// files. Defaults to gitws.ExecRunner.
	Git gitws.Runner
}

// NewLocalDispatcher creates a local provider for the given image.
func NewLocalDispatcher(image, network string, timeout time.Duration) *LocalDispatcher {
	return &LocalDispatcher{
		Image:   image,
		Network: network,
		Timeout: timeout,
		Runner:  ExecCommandRunner{},
		Git:     &gitws.ExecRunner{},
	}
}

// containerName builds a unique, inspectable container name for a task run.
func containerName(taskID string) string {
	return fmt.Sprintf("worldmind-%s-%d", strings.ToLower(taskID), time.Now().Unix())
}

// BuildArgs constructs the container invocation for a request. Exported for
// tests; the worker contract (env names, mount point) is part of it.
func (d *LocalDispatcher) BuildArgs(req Request, name string) []string {
	args := []string{"run", "--rm", "--name", name}
	if req.ProjectPath != "" {
		args = append(args, "-v", req.ProjectPath+":/workspace", "-w", "/workspace")
	}
	if d.Network != "" {
		args = append(args, "--network", d.Network)
	}
	args = append(args,
		"-e", "WORLDMIND_TASK_ID="+req.Task.ID,
		"-e", "WORLDMIND_ROLE="+string(req.Task.Role),
	)
	if req.GitRemote != "" {
		args = append(args, "-e", "WORLDMIND_GIT_REMOTE="+req.GitRemote)
	}
	if req.RuntimeTag != "" {
		args = append(args, "-e", "WORLDMIND_RUNTIME="+req.RuntimeTag)
	}
	if req.ReasoningLevel != "" {
		args = append(args, "-e", "WORLDMIND_REASONING="+req.ReasoningLevel)
	}
	args = append(args, d.Image, "--prompt", workerPrompt(req))
	return args
}

// Execute runs the task in a local container and observes its file delta
// through the bind mount.
func (d *LocalDispatcher) Execute(ctx context.Context, req Request) (*Result, error) {
	runner := d.Runner
	if runner == nil {
		runner = ExecCommandRunner{}
	}
	git := d.Git
	if git == nil {
		git = &gitws.ExecRunner{}
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	name := containerName(req.Task.ID)
	docker := d.DockerPath
	if docker == "" {
		docker = "docker"
	}

	task := req.Task
	task.Status = models.TaskExecuting
	started := nowMillis()

	output, exitCode, err := runner.Run(ctx, docker, d.BuildArgs(req, name)...)
	completed := nowMillis()

	task.ElapsedMS = completed - started
	container := models.ContainerInfo{
		ID:          name,
		TaskID:      task.ID,
		Image:       d.Image,
		StartedAt:   started,
		CompletedAt: completed,
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// Timeouts are dispatch failures, not errors.
			task.Status = models.TaskFailed
			return &Result{Task: task, Container: container, Output: "task timed out: " + err.Error()}, nil
		}
		return nil, fmt.Errorf("failed to run worker container: %w", err)
	}

	task.Status = observedStatus(output, exitCode)
	if req.ProjectPath != "" {
		if stat, diffErr := git.Run(ctx, req.ProjectPath, "diff", "--stat", "--summary", "HEAD"); diffErr == nil {
			task.FilesAffected = gitws.ParseDiffStat(stat)
		}
	}

	return &Result{Task: task, Container: container, Output: output}, nil
}

// workerPrompt assembles the prompt handed to the coding agent, including
// the advisory target files the planner assigned.
func workerPrompt(req Request) string {
	var sb strings.Builder
	if len(req.Task.TargetFiles) > 0 {
		sb.WriteString("## Target Files (REQUIRED)\n\n")
		sb.WriteString("You MUST create/modify these exact files:\n")
		for _, f := range req.Task.TargetFiles {
			fmt.Fprintf(&sb, "- `%s`\n", f)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(req.Task.Description)
	if req.Task.InputContext != "" {
		sb.WriteString("\n\n## Context\n\n")
		sb.WriteString(req.Task.InputContext)
	}
	if req.Task.SuccessCriteria != "" {
		sb.WriteString("\n\n## Success Criteria\n\n")
		sb.WriteString(req.Task.SuccessCriteria)
	}
	if req.ProjectContext != "" {
		sb.WriteString("\n\n## Project\n\n")
		sb.WriteString(req.ProjectContext)
	}
	return sb.String()
}

// observedStatus derives the task outcome from the worker output. Workers
// report a JSON object with a "status" field; when they don't, the exit
// code decides.
func observedStatus(output string, exitCode int) models.TaskStatus {
	if s := gjson.Get(output, "status"); s.Exists() {
		switch strings.ToLower(s.String()) {
		case "passed", "success", "ok":
			return models.TaskPassed
		case "failed", "error":
			return models.TaskFailed
		}
	}
	if exitCode == 0 {
		return models.TaskPassed
	}
	return models.TaskFailed
}
