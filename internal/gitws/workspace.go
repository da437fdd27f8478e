package gitws

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/calder/worldmind/internal/models"
)

// MainBranch is the shared integration branch task branches merge into.
const MainBranch = "main"

// Workspace manages the git working copies of one mission: the merge
// workspace used by wave merges and, when worktrees are enabled, the shared
// clone that per-task worktrees hang off.
type Workspace struct {
	runner  Runner
	baseDir string
	remote  string
	lock    *flock.Flock
}

// NewWorkspace creates a workspace manager rooted at baseDir for the given
// remote. Nothing is cloned until first use.
func NewWorkspace(runner Runner, baseDir, remote string) *Workspace {
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &Workspace{
		runner:  runner,
		baseDir: baseDir,
		remote:  remote,
		lock:    flock.New(filepath.Join(baseDir, ".lock")),
	}
}

// Remote returns the configured git remote URL.
func (w *Workspace) Remote() string {
	return w.remote
}

// CloneDir is the path of the shared mission clone.
func (w *Workspace) CloneDir() string {
	return filepath.Join(w.baseDir, "repo")
}

// EnsureClone makes sure the shared mission clone exists and is current,
// and returns its path. Concurrent orchestrator processes sharing the cache
// directory are serialised with a file lock.
func (w *Workspace) EnsureClone(ctx context.Context) (string, error) {
	if w.remote == "" {
		return "", fmt.Errorf("no git remote configured")
	}
	if err := os.MkdirAll(w.baseDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace dir: %w", err)
	}

	if err := w.lock.Lock(); err != nil {
		return "", fmt.Errorf("failed to lock workspace: %w", err)
	}
	defer w.lock.Unlock()

	dir := w.CloneDir()
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		if _, err := w.runner.Run(ctx, dir, "fetch", "origin"); err != nil {
			return "", err
		}
		return dir, nil
	}

	if _, err := w.runner.Run(ctx, "", "clone", w.remote, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// ChangedFiles returns the file delta of dir between baseRef and HEAD,
// parsed from diff --stat --summary.
func (w *Workspace) ChangedFiles(ctx context.Context, dir, baseRef string) ([]models.FileChange, error) {
	out, err := w.runner.Run(ctx, dir, "diff", "--stat", "--summary", baseRef+"...HEAD")
	if err != nil {
		return nil, err
	}
	return ParseDiffStat(out), nil
}

// TaskBranchChanges fetches a task's branch and returns its file delta
// against origin/main.
func (w *Workspace) TaskBranchChanges(ctx context.Context, taskID string) ([]models.FileChange, error) {
	dir, err := w.EnsureClone(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := w.runner.Run(ctx, dir, "fetch", "origin", TaskBranch(taskID)); err != nil {
		return nil, err
	}
	out, err := w.runner.Run(ctx, dir, "diff", "--stat", "--summary", "origin/"+MainBranch+"...FETCH_HEAD")
	if err != nil {
		return nil, err
	}
	return ParseDiffStat(out), nil
}

// HasChanges reports whether dir has uncommitted changes.
func (w *Workspace) HasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := w.runner.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}
