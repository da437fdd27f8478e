package gitws

import (
	"context"
	"fmt"
	"path/filepath"
)

// AcquireWorktree creates (or reuses) an isolated working copy for a task,
// on the task's branch, rooted at origin/main. Returns the worktree path.
func (w *Workspace) AcquireWorktree(ctx context.Context, taskID string) (string, error) {
	cloneDir, err := w.EnsureClone(ctx)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(w.baseDir, "worktrees", taskID)
	branch := TaskBranch(taskID)

	// A retry re-acquires the same worktree; recreate it from current main
	// so the worker starts from the merged state.
	w.runner.Run(ctx, cloneDir, "worktree", "remove", "--force", dir)
	w.runner.Run(ctx, cloneDir, "branch", "-D", branch)

	if _, err := w.runner.Run(ctx, cloneDir, "worktree", "add", "-b", branch, dir, "origin/"+MainBranch); err != nil {
		return "", fmt.Errorf("failed to add worktree for %s: %w", taskID, err)
	}
	return dir, nil
}

// CommitAndPush commits all changes in the task's worktree and pushes its
// branch to the remote. A worktree with no changes pushes the branch
// pointer only.
func (w *Workspace) CommitAndPush(ctx context.Context, worktreeDir, taskID, message string) error {
	changed, err := w.HasChanges(ctx, worktreeDir)
	if err != nil {
		return err
	}
	if changed {
		if _, err := w.runner.Run(ctx, worktreeDir, "add", "-A"); err != nil {
			return err
		}
		if _, err := w.runner.Run(ctx, worktreeDir, "commit", "-m", message); err != nil {
			return err
		}
	}
	if _, err := w.runner.Run(ctx, worktreeDir, "push", "-u", "origin", TaskBranch(taskID)); err != nil {
		return err
	}
	return nil
}

// ReleaseWorktree removes a task's worktree after its wave completes.
func (w *Workspace) ReleaseWorktree(ctx context.Context, taskID string) error {
	cloneDir := w.CloneDir()
	dir := filepath.Join(w.baseDir, "worktrees", taskID)
	if _, err := w.runner.Run(ctx, cloneDir, "worktree", "remove", "--force", dir); err != nil {
		return err
	}
	return nil
}
