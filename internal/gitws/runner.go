// Package gitws owns the git side of mission execution: the task branch
// naming convention, per-task worktrees, the wave-level sequential merge
// into main, and the diff --stat parse into structured file records.
package gitws

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a git command in a directory and returns its combined
// output. Injectable for testing.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner runs git via os/exec.
type ExecRunner struct {
	// GitPath overrides the git binary (default "git").
	GitPath string
}

// Run executes git with the given args in dir.
func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	git := r.GitPath
	if git == "" {
		git = "git"
	}
	cmd := exec.CommandContext(ctx, git, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}
