package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/calder/worldmind/internal/dispatch"
	"github.com/calder/worldmind/internal/events"
	"github.com/calder/worldmind/internal/models"
	"github.com/calder/worldmind/internal/scheduler"
)

// stageExecuteWave runs one iteration of the wave loop: schedule, dispatch,
// evaluate. An empty wave converges the mission.
func (d *Driver) stageExecuteWave(ctx context.Context, m *models.Mission) error {
	wave := scheduler.NextWave(m.Tasks, m.CompletedIDs, m.Strategy, d.cfg.MaxParallel)
	if len(wave) == 0 {
		return d.converge(ctx, m)
	}

	// A deployer depends on every other task, so its wave holds nothing
	// else and follows the deploy sub-protocol instead of the gate.
	if t := m.Task(wave[0]); t != nil && t.Role == models.RoleDeployer {
		return d.runDeployerWave(ctx, m, wave)
	}

	m.Wave++
	if d.log != nil {
		d.log.LogWaveStart(m.Wave, wave)
	}

	results := d.dispatchWave(ctx, m, wave)
	d.recordWaveResults(m, results)
	d.evaluateWave(ctx, m, results)

	d.emit(events.WaveCompleted, m, "", map[string]string{
		"wave":  fmt.Sprintf("%d", m.Wave),
		"tasks": strings.Join(wave, ","),
	})

	if m.Status == models.StatusFailed {
		// Escalation during evaluation: still converge so metrics exist.
		return d.converge(ctx, m)
	}

	if cooldown := time.Duration(d.cfg.WaveCooldownSeconds) * time.Second; cooldown > 0 {
		select {
		case <-time.After(cooldown):
		case <-ctx.Done():
		}
	}
	return nil
}

// dispatchWave runs the wave's tasks concurrently under the parallelism
// semaphore. It performs the single-consumer read of the mission retry
// context: the context is cleared here and appended to every dispatched
// task's input for this wave only.
//
// On cancellation, in-flight dispatches complete; tasks that never acquired
// the semaphore are returned as failed partial results.
func (d *Driver) dispatchWave(ctx context.Context, m *models.Mission, wave []string) []dispatch.Result {
	retryCtx := m.RetryContext
	m.RetryContext = ""

	sem := semaphore.NewWeighted(int64(d.cfg.MaxParallel))
	var (
		mu      sync.Mutex
		results []dispatch.Result
		wg      sync.WaitGroup
	)

	for _, id := range wave {
		stored := m.Task(id)
		if stored == nil {
			continue
		}
		stored.Status = models.TaskExecuting
		task := *stored

		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				task.Status = models.TaskFailed
				mu.Lock()
				results = append(results, dispatch.Result{
					Task:   task,
					Output: "cancelled before dispatch: " + err.Error(),
				})
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			res := d.dispatchTask(ctx, m, task, retryCtx)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Wave goroutines finish in arbitrary order; sort for deterministic
	// evaluation and merge order. With strict determinism off, completion
	// order is kept.
	if d.cfg.StrictDeterminism {
		sort.Slice(results, func(i, j int) bool {
			return results[i].Task.ID < results[j].Task.ID
		})
	}
	return results
}

// dispatchTask runs one task to completion on its own goroutine. The task
// value is a private copy; the stored task is only written by the serial
// aggregation after the wave joins.
func (d *Driver) dispatchTask(ctx context.Context, m *models.Mission, task models.Task, retryCtx string) dispatch.Result {
	d.emit(events.TaskStarted, m, task.ID, nil)
	d.emit(events.TaskPhase, m, task.ID, map[string]string{"phase": phaseForRole(task.Role)})

	if retryCtx != "" {
		task.InputContext = strings.TrimSpace(task.InputContext + "\n\n" + retryCtx)
	}

	projectPath := m.ProjectPath
	worktree := ""
	if d.cfg.WorktreesEnabled && d.workspace != nil && m.GitRemote != "" {
		dir, err := d.workspace.AcquireWorktree(ctx, task.ID)
		if err != nil {
			terr := &TaskError{TaskID: task.ID, Stage: "worktree", Err: err}
			task.Status = models.TaskFailed
			d.emit(events.TaskFailed, m, task.ID, map[string]string{"error": err.Error()})
			return dispatch.Result{Task: task, Output: terr.Error()}
		}
		worktree, projectPath = dir, dir
	}

	req := dispatch.Request{
		Task:           task,
		ProjectContext: m.ProjectContext,
		ProjectPath:    projectPath,
		GitRemote:      m.GitRemote,
		RuntimeTag:     m.RuntimeTag,
		ReasoningLevel: m.ReasoningLevel,
	}

	res, err := d.dispatcher.Execute(ctx, req)
	if err != nil {
		// Infrastructure error: synthesise a failed result so the failure
		// strategy applies as usual.
		d.logError(fmt.Sprintf("dispatch of %s failed: %v", task.ID, err))
		task.Status = models.TaskFailed
		res = &dispatch.Result{Task: task, Output: err.Error()}
	}

	if res.Container.ID != "" {
		d.emit(events.ContainerOpened, m, task.ID, map[string]string{"container": res.Container.ID})
	}

	if worktree != "" && res.Task.Status == models.TaskPassed {
		msg := fmt.Sprintf("task %s: %s", task.ID, task.Description)
		if err := d.workspace.CommitAndPush(ctx, worktree, task.ID, msg); err != nil {
			d.logError(fmt.Sprintf("failed to push worktree of %s: %v", task.ID, err))
			res.Task.Status = models.TaskFailed
			res.Output += "\nfailed to push worktree: " + err.Error()
		}
	}

	switch res.Task.Status {
	case models.TaskPassed:
		d.emit(events.TaskFulfilled, m, task.ID, nil)
	case models.TaskFailed:
		d.emit(events.TaskFailed, m, task.ID, nil)
	default:
		d.emit(events.TaskProgress, m, task.ID, map[string]string{"status": string(res.Task.Status)})
	}
	return *res
}

// recordWaveResults is the serial aggregation step: the only writer of
// mission state after a wave. It copies observed status, file deltas and
// timings onto the stored tasks and appends the wave results and container
// records.
func (d *Driver) recordWaveResults(m *models.Mission, results []dispatch.Result) {
	for _, res := range results {
		if task := m.Task(res.Task.ID); task != nil {
			task.Status = res.Task.Status
			task.FilesAffected = res.Task.FilesAffected
			task.ElapsedMS = res.Task.ElapsedMS
		}
		m.WaveResults = append(m.WaveResults, models.WaveResult{
			TaskID:        res.Task.ID,
			Wave:          m.Wave,
			Status:        res.Task.Status,
			FilesAffected: res.Task.FilesAffected,
			Output:        res.Output,
			ElapsedMS:     res.Task.ElapsedMS,
		})
		if res.Container.ID != "" {
			m.Containers = append(m.Containers, res.Container)
		}
		if d.log != nil {
			d.log.LogTaskResult(models.WaveResult{
				TaskID:    res.Task.ID,
				Wave:      m.Wave,
				Status:    res.Task.Status,
				ElapsedMS: res.Task.ElapsedMS,
			})
		}
	}
}

func phaseForRole(role models.AgentRole) string {
	switch role {
	case models.RoleTester:
		return events.PhaseTester
	case models.RoleReviewer:
		return events.PhaseReviewer
	case models.RoleDeployer:
		return events.PhaseBuild
	default:
		return events.PhaseCoder
	}
}
