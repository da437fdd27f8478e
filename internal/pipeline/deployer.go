package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/calder/worldmind/internal/dispatch"
	"github.com/calder/worldmind/internal/events"
	"github.com/calder/worldmind/internal/gate"
	"github.com/calder/worldmind/internal/models"
)

// Deployment verdicts are derived by scanning raw deployer output. Failure
// markers take precedence over success markers: platform CLIs print success
// banners even when the app crashes right after.
var deployFailureMarkers = []string{
	"crashed",
	"staging failed",
	"health check timeout",
	"failed to bind service",
	"service binding failed",
	"exit status 1",
	"non-zero exit",
}

var deploySuccessMarkers = []string{
	"app started",
	"instances running",
	"status: running",
	"push successful",
}

// platformSuffixes identify deployment-platform hosts when extracting the
// deployed URL from raw output.
var platformSuffixes = []string{".cfapps.io", ".fly.dev", ".herokuapp.com", ".apps.internal"}

// DeployDiagnosis categorises a failed deployment for the retry context.
type DeployDiagnosis struct {
	Category  string
	Reason    string
	LogWindow string
}

// runDeployerWave handles a wave of deployer tasks: build verification
// first, then the deploy itself, then the output scan. Deployers depend on
// every other task, so a wave containing one contains nothing else.
func (d *Driver) runDeployerWave(ctx context.Context, m *models.Mission, wave []string) error {
	m.Wave++
	if d.log != nil {
		d.log.LogWaveStart(m.Wave, wave)
	}

	for _, id := range wave {
		task := m.Task(id)
		if task == nil {
			continue
		}

		d.emit(events.TaskPhase, m, task.ID, map[string]string{"phase": events.PhaseVerify})
		if ok, detail := d.preDeployVerify(ctx, m, task); !ok {
			task.Status = models.TaskSkipped
			m.AddError("task %s: build verification failed: %s", task.ID, detail)
			m.Status = models.StatusFailed
			d.emit(events.DeployerFailed, m, task.ID, map[string]string{"reason": detail})
			continue
		}

		d.emit(events.TaskPhase, m, task.ID, map[string]string{"phase": events.PhasePush})
		retryCtx := m.RetryContext
		m.RetryContext = ""
		res := d.dispatchTask(ctx, m, *task, retryCtx)
		d.recordWaveResults(m, []dispatch.Result{res})
		d.evaluateDeployer(m, task, res)
	}

	if m.Status == models.StatusFailed {
		return d.converge(ctx, m)
	}
	return nil
}

// preDeployVerify dispatches a tester with a build-verification instruction
// and scans its output for build or manifest failure markers.
func (d *Driver) preDeployVerify(ctx context.Context, m *models.Mission, task *models.Task) (bool, string) {
	verifier := verifierTask(task, models.RoleTester,
		"Perform a build verification: build the project and check the deployment manifest. Report lines 'BUILD: OK|FAIL' and 'MANIFEST: OK|FAIL|MISSING'.")

	res, err := d.dispatcher.Execute(ctx, dispatch.Request{
		Task:           verifier,
		ProjectContext: m.ProjectContext,
		ProjectPath:    m.ProjectPath,
		GitRemote:      m.GitRemote,
		RuntimeTag:     m.RuntimeTag,
		ReasoningLevel: m.ReasoningLevel,
	})
	if err != nil {
		return false, "build verification dispatch failed: " + err.Error()
	}

	out := res.Output
	for _, marker := range []string{"BUILD: FAIL", "MANIFEST: FAIL", "MANIFEST: MISSING"} {
		if strings.Contains(out, marker) {
			return false, marker
		}
	}
	return true, ""
}

// evaluateDeployer derives the deploy outcome from raw output and applies
// the task's failure strategy on a failed deploy.
func (d *Driver) evaluateDeployer(m *models.Mission, task *models.Task, res dispatch.Result) {
	output := res.Output

	if res.Task.Status != models.TaskFailed && DeploySucceeded(output) {
		task.Status = models.TaskPassed
		m.MarkCompleted(task.ID)
		payload := map[string]string{}
		if url := ExtractDeployURL(output); url != "" {
			payload["url"] = url
		}
		d.emit(events.DeployerSuccess, m, task.ID, payload)
		return
	}

	diag := DiagnoseDeployFailure(output)
	d.emit(events.DeployerFailed, m, task.ID, map[string]string{
		"category": diag.Category,
		"reason":   diag.Reason,
	})
	d.applyFailure(m, task, gate.StrategyInput{
		Reason:     fmt.Sprintf("deployment failed (%s): %s", diag.Category, diag.Reason),
		OutputTail: diag.LogWindow,
	})
}

// DeploySucceeded scans raw deployer output; failure markers win over
// success markers.
func DeploySucceeded(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range deployFailureMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	for _, marker := range deploySuccessMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ExtractDeployURL pulls the deployed application URL from a "routes:" line
// or from an explicit https host on a known platform suffix.
func ExtractDeployURL(output string) string {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, "routes:"); ok {
			if host := strings.TrimSpace(rest); host != "" {
				return "https://" + strings.TrimPrefix(host, "https://")
			}
			continue
		}
		for _, field := range strings.Fields(trimmed) {
			if !strings.HasPrefix(field, "https://") {
				continue
			}
			for _, suffix := range platformSuffixes {
				host := strings.TrimPrefix(field, "https://")
				if i := strings.IndexAny(host, "/?"); i >= 0 {
					host = host[:i]
				}
				if strings.HasSuffix(host, suffix) {
					return "https://" + host
				}
			}
		}
	}
	return ""
}

// DiagnoseDeployFailure categorises a failed deploy and captures the log
// window around the first relevant line: five lines before, ten after.
func DiagnoseDeployFailure(output string) DeployDiagnosis {
	categories := []struct {
		category string
		reason   string
		keywords []string
	}{
		{"build-failure", "the application build failed", []string{"build failed", "compile error", "build error"}},
		{"service-binding-failure", "a service binding could not be established", []string{"failed to bind service", "service binding"}},
		{"staging-failure", "staging the application failed", []string{"staging failed", "staging error"}},
		{"app-crashed", "the application crashed after start", []string{"crashed"}},
		{"health-check-timeout", "the platform health check timed out", []string{"health check timeout", "health check never passed"}},
	}

	lines := strings.Split(output, "\n")
	lower := strings.ToLower(output)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			return DeployDiagnosis{
				Category:  c.category,
				Reason:    c.reason,
				LogWindow: logWindow(lines, kw, 5, 10),
			}
		}
	}
	return DeployDiagnosis{
		Category:  "unknown",
		Reason:    "deployment failed for an unrecognised reason",
		LogWindow: gate.Tail(output, 2000),
	}
}

// logWindow returns the lines around the first line containing the keyword.
func logWindow(lines []string, keyword string, before, after int) string {
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), keyword) {
			continue
		}
		start := i - before
		if start < 0 {
			start = 0
		}
		end := i + after + 1
		if end > len(lines) {
			end = len(lines)
		}
		return strings.Join(lines[start:end], "\n")
	}
	return ""
}
