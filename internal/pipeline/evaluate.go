package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/calder/worldmind/internal/dispatch"
	"github.com/calder/worldmind/internal/events"
	"github.com/calder/worldmind/internal/gate"
	"github.com/calder/worldmind/internal/models"
)

// hiddenDir is the orchestrator's reserved directory inside a working copy.
const hiddenDir = ".worldmind/"

// IsDiagnosticPath reports whether a changed file is orchestrator-internal
// noise rather than produced code: anything under the reserved directory,
// log files, and agent transcript directories.
func IsDiagnosticPath(path string) bool {
	if strings.HasPrefix(path, hiddenDir) || strings.Contains(path, "/"+hiddenDir) {
		return true
	}
	if strings.HasSuffix(path, ".log") || strings.HasSuffix(path, ".jsonl") {
		return true
	}
	return strings.Contains(path, "agent-logs")
}

// filterCodeChanges drops diagnostic files from a file delta.
func (d *Driver) filterCodeChanges(changes []models.FileChange) []models.FileChange {
	var out []models.FileChange
	for _, fc := range changes {
		if !d.diagFilter(fc.Path) {
			out = append(out, fc)
		}
	}
	return out
}

// evaluateWave gates every dispatched task of the wave, then merges the
// passed code-producing branches into main and resets conflicted tasks.
func (d *Driver) evaluateWave(ctx context.Context, m *models.Mission, results []dispatch.Result) {
	var mergeIDs []string

	for _, res := range results {
		task := m.Task(res.Task.ID)
		if task == nil {
			continue
		}

		switch {
		case task.Role == models.RoleDeployer:
			d.evaluateDeployer(m, task, res)

		case !task.Role.IsCodeProducing():
			// Researchers, testers and reviewers auto-pass; their output is
			// context, not gated code.
			task.Status = models.TaskPassed
			m.MarkCompleted(task.ID)

		case task.Status == models.TaskFailed:
			d.applyFailure(m, task, gate.StrategyInput{
				Reason:     "coder task failed during execution",
				OutputTail: res.Output,
			})

		default:
			if d.gateCoder(ctx, m, task, res) {
				mergeIDs = append(mergeIDs, task.ID)
			}
		}

		if m.Status == models.StatusFailed {
			break
		}
	}

	if len(mergeIDs) > 0 {
		d.mergeWave(ctx, m, mergeIDs)
	}
}

// gateCoder runs tester and reviewer against a coder task that passed
// dispatch and applies the gate decision. Returns true when the gate was
// granted and the task's branch should merge.
func (d *Driver) gateCoder(ctx context.Context, m *models.Mission, task *models.Task, res dispatch.Result) bool {
	code := d.filterCodeChanges(task.FilesAffected)
	if len(code) == 0 {
		d.applyFailure(m, task, gate.StrategyInput{
			Action:     models.StrategyRetry,
			Reason:     "coder task produced no code files",
			OutputTail: res.Output,
		})
		return false
	}
	task.FilesAffected = code
	task.Status = models.TaskVerifying

	// Tester and reviewer verify the same frozen delta and run concurrently;
	// their records land on the mission only after both returned.
	d.emit(events.TaskPhase, m, task.ID, map[string]string{"phase": events.PhaseTester})
	d.emit(events.TaskPhase, m, task.ID, map[string]string{"phase": events.PhaseReviewer})
	var (
		test   *models.TestResult
		review *models.ReviewFeedback
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		test = d.runTester(gctx, m, task)
		return nil
	})
	g.Go(func() error {
		review = d.runReviewer(gctx, m, task)
		return nil
	})
	_ = g.Wait()
	m.TestResults = append(m.TestResults, *test)
	m.Reviews = append(m.Reviews, *review)

	d.emit(events.TaskPhase, m, task.ID, map[string]string{"phase": events.PhaseGate})
	decision := gate.Evaluate(test, review, d.cfg.ReviewScoreThreshold)
	if d.log != nil {
		d.log.LogGate(task.ID, decision.Granted, decision.Reason)
	}

	if decision.Granted {
		task.Status = models.TaskPassed
		m.MarkCompleted(task.ID)
		d.detector.Forget(task.ID)
		d.emit(events.QualityGranted, m, task.ID, nil)
		return true
	}

	d.emit(events.QualityDenied, m, task.ID, map[string]string{"reason": decision.Reason})
	d.applyFailure(m, task, gate.StrategyInput{
		Action: decision.Action,
		Review: review,
		Reason: decision.Reason,
	})
	return false
}

// applyFailure applies the failure strategy and logs the applied action.
func (d *Driver) applyFailure(m *models.Mission, task *models.Task, in gate.StrategyInput) {
	in.Mission = m
	in.Task = task
	in.Detector = d.detector
	in.MaxIterations = d.cfg.MaxIterations
	in.OutputTail = gate.Tail(in.OutputTail, 2000)

	applied := gate.ApplyFailureStrategy(in)
	d.logInfo(fmt.Sprintf("task %s denied (%s): applying %s", task.ID, in.Reason, applied))
	if applied == models.StrategyEscalate {
		d.emit(events.TaskFailed, m, task.ID, map[string]string{"reason": in.Reason})
	}
}

// runTester dispatches a short-lived tester worker for a gated coder task.
// A dispatcher error synthesises a failed test result carrying the error.
func (d *Driver) runTester(ctx context.Context, m *models.Mission, task *models.Task) *models.TestResult {
	verifier := verifierTask(task, models.RoleTester,
		fmt.Sprintf("Run the tests relevant to the changes of %s and report the outcome as JSON with passed, totalTests and failedTests fields.", task.ID))

	res, err := d.dispatcher.Execute(ctx, dispatch.Request{
		Task:           verifier,
		ProjectContext: m.ProjectContext,
		ProjectPath:    m.ProjectPath,
		GitRemote:      m.GitRemote,
		RuntimeTag:     m.RuntimeTag,
		ReasoningLevel: m.ReasoningLevel,
	})
	if err != nil {
		terr := &TaskError{TaskID: task.ID, Stage: "tester", Err: err}
		return &models.TestResult{TaskID: task.ID, Passed: false, Output: terr.Error()}
	}
	tr := parseTestResult(task.ID, res.Output, res.Task.Status)
	tr.ElapsedMS = res.Task.ElapsedMS
	return tr
}

// runReviewer dispatches a short-lived reviewer worker. A dispatcher error
// synthesises an unapproved review carrying the error.
func (d *Driver) runReviewer(ctx context.Context, m *models.Mission, task *models.Task) *models.ReviewFeedback {
	verifier := verifierTask(task, models.RoleReviewer,
		fmt.Sprintf("Review the changes of %s for correctness and fit. Report JSON with approved, summary, issues, suggestions and a 0..10 score.", task.ID))

	res, err := d.dispatcher.Execute(ctx, dispatch.Request{
		Task:           verifier,
		ProjectContext: m.ProjectContext,
		ProjectPath:    m.ProjectPath,
		GitRemote:      m.GitRemote,
		RuntimeTag:     m.RuntimeTag,
		ReasoningLevel: m.ReasoningLevel,
	})
	if err != nil {
		terr := &TaskError{TaskID: task.ID, Stage: "reviewer", Err: err}
		return &models.ReviewFeedback{TaskID: task.ID, Approved: false, Summary: terr.Error()}
	}
	return parseReview(task.ID, res.Output)
}

// verifierTask builds the short-lived task handed to a tester or reviewer
// worker, carrying the coder task's description and observed file delta.
func verifierTask(task *models.Task, role models.AgentRole, description string) models.Task {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task under verification: %s\n\nChanged files:\n", task.Description)
	for _, fc := range task.FilesAffected {
		fmt.Fprintf(&sb, "- %s (%s, %d lines)\n", fc.Path, fc.Action, fc.LinesChanged)
	}
	return models.Task{
		ID:           task.ID,
		Role:         role,
		Description:  description,
		InputContext: sb.String(),
		Status:       models.TaskPending,
	}
}

// parseTestResult reads the tester's JSON report; workers that emit no JSON
// fall back to the observed dispatch status.
func parseTestResult(taskID, output string, status models.TaskStatus) *models.TestResult {
	tr := &models.TestResult{TaskID: taskID, Output: output}
	if v := gjson.Get(output, "passed"); v.Exists() {
		tr.Passed = v.Bool()
	} else {
		tr.Passed = status == models.TaskPassed
	}
	tr.TotalTests = int(gjson.Get(output, "totalTests").Int())
	tr.FailedTests = int(gjson.Get(output, "failedTests").Int())
	return tr
}

// parseReview reads the reviewer's JSON report. Missing fields yield an
// unapproved zero-score review, which the gate treats as a retry.
func parseReview(taskID, output string) *models.ReviewFeedback {
	rf := &models.ReviewFeedback{TaskID: taskID}
	rf.Approved = gjson.Get(output, "approved").Bool()
	rf.Summary = gjson.Get(output, "summary").String()
	rf.Score = int(gjson.Get(output, "score").Int())
	for _, v := range gjson.Get(output, "issues").Array() {
		rf.Issues = append(rf.Issues, v.String())
	}
	for _, v := range gjson.Get(output, "suggestions").Array() {
		rf.Suggestions = append(rf.Suggestions, v.String())
	}
	return rf
}

// mergeWave merges the wave's granted branches into main and resets any
// task whose rebase conflicted. Without a git remote there is nothing to
// merge; the tasks stay completed.
func (d *Driver) mergeWave(ctx context.Context, m *models.Mission, taskIDs []string) {
	if d.workspace == nil || m.GitRemote == "" {
		return
	}

	outcome, err := d.workspace.MergeWave(ctx, taskIDs)
	if err != nil {
		m.AddError("wave %d merge failed: %v", m.Wave, err)
		m.Status = models.StatusFailed
		return
	}

	d.emit(events.WaveMerged, m, "", map[string]string{
		"merged":     strings.Join(outcome.Merged, ","),
		"conflicted": strings.Join(outcome.Conflicted, ","),
	})
	if d.log != nil {
		d.log.LogWaveComplete(m.Wave, 0, outcome.Merged, outcome.Conflicted)
	}

	for _, id := range outcome.Conflicted {
		d.resetConflicted(m, id, outcome.Merged)
	}
}

// resetConflicted returns a conflicted task to pending for re-dispatch on
// top of the updated main, or escalates when its retries are exhausted.
func (d *Driver) resetConflicted(m *models.Mission, taskID string, merged []string) {
	task := m.Task(taskID)
	if task == nil {
		return
	}

	task.Status = models.TaskPending
	m.UnmarkCompleted(taskID)
	task.Iteration++

	if task.Iteration > task.MaxIterations {
		task.Status = models.TaskFailed
		m.AddError("task %s: merge conflicts exhausted retries", taskID)
		m.Status = models.StatusFailed
		return
	}

	var present []string
	for _, id := range merged {
		if mt := m.Task(id); mt != nil {
			for _, fc := range mt.FilesAffected {
				present = append(present, fc.Path)
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("## MERGE CONFLICT RETRY\n\n")
	sb.WriteString("Your previous branch conflicted with work already merged into main.\n")
	if len(present) > 0 {
		sb.WriteString("These files already exist on main; do NOT recreate them:\n")
		for _, p := range present {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	task.InputContext = sb.String() + "\n" + task.InputContext

	if len(task.FilesAffected) > 0 {
		targets := make([]string, 0, len(task.FilesAffected))
		for _, fc := range task.FilesAffected {
			targets = append(targets, fc.Path)
		}
		task.TargetFiles = targets
	}
}
