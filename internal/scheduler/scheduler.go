// Package scheduler selects the next wave of tasks eligible to run without
// dependency or file-ownership conflicts. NextWave is a pure function of
// its inputs: identical inputs yield the identical wave.
package scheduler

import (
	"github.com/calder/worldmind/internal/models"
)

// NextWave returns the ordered task ids forming the next execution wave.
// An empty wave signals the wave loop to terminate.
//
// A task is eligible when it is not already passed or skipped, not in the
// completed set, and every dependency is completed. Sequential strategy
// returns the first eligible task alone. Parallel strategy walks eligible
// tasks in creation order, adding each whose target files do not intersect
// the target files of tasks already chosen, up to maxParallel.
func NextWave(tasks []models.Task, completed []string, strategy models.ExecutionStrategy, maxParallel int) []string {
	if maxParallel < 1 {
		maxParallel = 1
	}
	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}

	var eligible []models.Task
	for _, t := range tasks {
		if t.IsDone() || done[t.ID] {
			continue
		}
		if !depsSatisfied(t, done) {
			continue
		}
		eligible = append(eligible, t)
	}
	if len(eligible) == 0 {
		return nil
	}

	if strategy == models.StrategySequential {
		return []string{eligible[0].ID}
	}

	var wave []string
	claimed := make(map[string]bool)
	for _, t := range eligible {
		if len(wave) >= maxParallel {
			break
		}
		if overlapsClaimed(t.TargetFiles, claimed) {
			continue
		}
		for _, f := range t.TargetFiles {
			claimed[f] = true
		}
		wave = append(wave, t.ID)
	}
	return wave
}

func depsSatisfied(t models.Task, done map[string]bool) bool {
	for _, dep := range t.DependsOn {
		if !done[dep] {
			return false
		}
	}
	return true
}

// overlapsClaimed reports whether any target file is already owned by a
// task in the wave. Target-file overlap is the sole file-ownership conflict
// signal: two tasks naming the same path must serialise.
func overlapsClaimed(files []string, claimed map[string]bool) bool {
	for _, f := range files {
		if claimed[f] {
			return true
		}
	}
	return false
}
