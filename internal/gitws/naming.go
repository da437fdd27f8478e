package gitws

import (
	"fmt"
	"strings"

	"github.com/calder/worldmind/internal/models"
)

// BranchPrefix is the namespace for task branches. Workers push to these
// branches independently, so the convention is part of the external
// contract.
const BranchPrefix = "worldmind/"

// TaskBranch returns the branch name for a task id, exactly
// "worldmind/<task-id>".
func TaskBranch(taskID string) string {
	return BranchPrefix + taskID
}

// TaskIDFromBranch extracts the task id from a task branch name.
func TaskIDFromBranch(branch string) (string, error) {
	id, ok := strings.CutPrefix(branch, BranchPrefix)
	if !ok {
		return "", fmt.Errorf("branch %q is not a task branch", branch)
	}
	if _, err := models.TaskIndex(id); err != nil {
		return "", fmt.Errorf("branch %q: %w", branch, err)
	}
	return id, nil
}
