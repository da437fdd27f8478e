package gitws

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// MergeOutcome is the result of merging one wave's task branches into main.
type MergeOutcome struct {
	// Merged holds the task ids whose branches landed on main, in merge
	// order.
	Merged []string

	// Conflicted holds the task ids whose rebase onto main conflicted.
	Conflicted []string
}

// MergeWave merges the branches of the given tasks into main, strictly
// serial, in lexicographic id order. The zero-padded id convention makes
// that order coincide with creation order; the wave evaluator depends on
// this.
//
// Per task: reset the merge workspace to origin/main, fetch the task
// branch, rebase it onto main on a temp branch, then no-ff merge and push.
// A rebase conflict aborts that task only; the push after every merge makes
// each subsequent rebase see the updated main.
func (w *Workspace) MergeWave(ctx context.Context, taskIDs []string) (*MergeOutcome, error) {
	if len(taskIDs) == 0 {
		return &MergeOutcome{}, nil
	}

	dir, err := w.EnsureClone(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare merge workspace: %w", err)
	}

	ordered := slices.Clone(taskIDs)
	slices.Sort(ordered)

	outcome := &MergeOutcome{}
	for _, id := range ordered {
		merged, err := w.mergeTask(ctx, dir, id)
		if err != nil {
			return outcome, err
		}
		if merged {
			outcome.Merged = append(outcome.Merged, id)
		} else {
			outcome.Conflicted = append(outcome.Conflicted, id)
		}
	}
	return outcome, nil
}

// mergeTask integrates one task branch. Returns false (without error) on a
// rebase conflict.
func (w *Workspace) mergeTask(ctx context.Context, dir, taskID string) (bool, error) {
	branch := TaskBranch(taskID)
	temp := "merge-" + taskID

	if _, err := w.runner.Run(ctx, dir, "checkout", MainBranch); err != nil {
		return false, err
	}
	if _, err := w.runner.Run(ctx, dir, "fetch", "origin", MainBranch); err != nil {
		return false, err
	}
	if _, err := w.runner.Run(ctx, dir, "reset", "--hard", "origin/"+MainBranch); err != nil {
		return false, err
	}
	if _, err := w.runner.Run(ctx, dir, "fetch", "origin", branch); err != nil {
		return false, err
	}

	// Stale temp branches from an interrupted merge are harmless; recreate.
	w.runner.Run(ctx, dir, "branch", "-D", temp)
	if _, err := w.runner.Run(ctx, dir, "checkout", "-b", temp, "FETCH_HEAD"); err != nil {
		return false, err
	}

	if out, err := w.runner.Run(ctx, dir, "rebase", MainBranch); err != nil {
		if !isConflict(out, err) {
			return false, err
		}
		if _, abortErr := w.runner.Run(ctx, dir, "rebase", "--abort"); abortErr != nil {
			return false, fmt.Errorf("failed to abort conflicted rebase for %s: %w", taskID, abortErr)
		}
		if _, err := w.runner.Run(ctx, dir, "checkout", MainBranch); err != nil {
			return false, err
		}
		return false, nil
	}

	if _, err := w.runner.Run(ctx, dir, "checkout", MainBranch); err != nil {
		return false, err
	}
	message := fmt.Sprintf("merge task %s", taskID)
	if _, err := w.runner.Run(ctx, dir, "merge", "--no-ff", temp, "-m", message); err != nil {
		return false, err
	}

	if err := w.pushMain(ctx, dir); err != nil {
		return false, err
	}

	w.runner.Run(ctx, dir, "branch", "-D", temp)
	return true, nil
}

// pushMain pushes main; on failure it pulls with rebase and retries once.
// Concurrent missions race on the shared remote, so the first push can
// legitimately be rejected.
func (w *Workspace) pushMain(ctx context.Context, dir string) error {
	if _, err := w.runner.Run(ctx, dir, "push", "origin", MainBranch); err == nil {
		return nil
	}
	if _, err := w.runner.Run(ctx, dir, "pull", "--rebase", "origin", MainBranch); err != nil {
		return fmt.Errorf("failed to reconcile main after rejected push: %w", err)
	}
	if _, err := w.runner.Run(ctx, dir, "push", "origin", MainBranch); err != nil {
		return fmt.Errorf("push retry failed: %w", err)
	}
	return nil
}

// isConflict recognises rebase conflict output as a first-class outcome
// rather than an infrastructure error.
func isConflict(output string, err error) bool {
	text := output
	if err != nil {
		text += " " + err.Error()
	}
	text = strings.ToLower(text)
	return strings.Contains(text, "conflict") || strings.Contains(text, "could not apply")
}
