package gate

import (
	"strings"
	"testing"

	"github.com/calder/worldmind/internal/models"
)

func passing() *models.TestResult {
	return &models.TestResult{TaskID: "TASK-001", Passed: true, TotalTests: 12}
}

func TestEvaluateDecisionTable(t *testing.T) {
	cases := []struct {
		name    string
		test    *models.TestResult
		review  *models.ReviewFeedback
		granted bool
		action  models.FailureStrategy
		reason  string
	}{
		{
			name:   "tests failed",
			test:   &models.TestResult{Passed: false, FailedTests: 2},
			action: models.StrategyRetry,
			reason: "tests failed",
		},
		{
			name:   "missing test result counts as failed",
			test:   nil,
			action: models.StrategyRetry,
			reason: "tests failed",
		},
		{
			name:   "missing review",
			test:   passing(),
			action: models.StrategyRetry,
			reason: "review unavailable",
		},
		{
			name:   "not approved below threshold retries with summary",
			test:   passing(),
			review: &models.ReviewFeedback{Approved: false, Score: 4, Summary: "error paths untested"},
			action: models.StrategyRetry,
			reason: "error paths untested",
		},
		{
			name:   "not approved at threshold skips",
			test:   passing(),
			review: &models.ReviewFeedback{Approved: false, Score: 6},
			action: models.StrategySkip,
		},
		{
			name:    "approved grants",
			test:    passing(),
			review:  &models.ReviewFeedback{Approved: true, Score: 8},
			granted: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Evaluate(tc.test, tc.review, DefaultScoreThreshold)
			if d.Granted != tc.granted {
				t.Errorf("granted = %v, want %v", d.Granted, tc.granted)
			}
			if !d.Granted && d.Action != tc.action {
				t.Errorf("action = %q, want %q", d.Action, tc.action)
			}
			if tc.reason != "" && d.Reason != tc.reason {
				t.Errorf("reason = %q, want %q", d.Reason, tc.reason)
			}
		})
	}
}

func TestEvaluateMonotone(t *testing.T) {
	// Raising the score never turns a grant into a denial.
	for score := 0; score <= 10; score++ {
		d := Evaluate(passing(), &models.ReviewFeedback{Approved: true, Score: score}, 6)
		if !d.Granted {
			t.Fatalf("approved review with score %d denied", score)
		}
	}

	granted := false
	for score := 0; score <= 10; score++ {
		d := Evaluate(passing(), &models.ReviewFeedback{Approved: false, Score: score}, 6)
		if granted && d.Action == models.StrategyRetry {
			t.Fatalf("score %d regressed from skip back to retry", score)
		}
		if d.Action == models.StrategySkip {
			granted = true
		}
	}
}

func TestEvaluateZeroThresholdUsesDefault(t *testing.T) {
	review := &models.ReviewFeedback{Approved: false, Score: 5, Summary: "needs work"}
	if d := Evaluate(passing(), review, 0); d.Action != models.StrategyRetry {
		t.Errorf("action = %q, want retry under default threshold", d.Action)
	}
}

func mission(strategy models.FailureStrategy) (*models.Mission, *models.Task) {
	m := models.NewMission("add a health endpoint", "/tmp/proj", "")
	m.Tasks = []models.Task{{
		ID:              "TASK-001",
		Role:            models.RoleCoder,
		Description:     "implement the endpoint",
		InputContext:    "original context",
		Status:          models.TaskExecuting,
		FailureStrategy: strategy,
		MaxIterations:   models.DefaultMaxIterations,
	}}
	return m, &m.Tasks[0]
}

func TestApplyRetrySetsRetryContextAndIncrementsIteration(t *testing.T) {
	m, task := mission(models.StrategyRetry)
	review := &models.ReviewFeedback{
		Summary:     "missing nil checks",
		Issues:      []string{"nil deref in handler", "no timeout", "third", "fourth"},
		Suggestions: []string{"guard nil receiver"},
	}

	applied := ApplyFailureStrategy(StrategyInput{
		Mission: m, Task: task, Review: review,
		Reason:   "missing nil checks",
		Detector: NewDetector(),
	})
	if applied != models.StrategyRetry {
		t.Fatalf("applied = %q, want retry", applied)
	}
	if task.Status != models.TaskPending {
		t.Errorf("status = %q, want pending", task.Status)
	}
	if task.Iteration != 1 {
		t.Errorf("iteration = %d, want 1", task.Iteration)
	}
	if m.RetryContext == "" {
		t.Fatal("mission retry context not set")
	}
	if !strings.Contains(m.RetryContext, "missing nil checks") {
		t.Errorf("retry context lacks failure reason: %q", m.RetryContext)
	}
	if !strings.Contains(m.RetryContext, "nil deref in handler") {
		t.Errorf("retry context lacks first issue: %q", m.RetryContext)
	}
	if strings.Contains(m.RetryContext, "fourth") {
		t.Errorf("retry context includes issue past the cap: %q", m.RetryContext)
	}
	if !strings.HasSuffix(task.InputContext, "original context") {
		t.Errorf("retry context not prepended to task input: %q", task.InputContext)
	}
}

func TestApplyRetryAtIterationCapEscalates(t *testing.T) {
	m, task := mission(models.StrategyRetry)
	task.Iteration = models.DefaultMaxIterations

	applied := ApplyFailureStrategy(StrategyInput{
		Mission: m, Task: task,
		Reason:   "tests failed",
		Detector: NewDetector(),
	})
	if applied != models.StrategyEscalate {
		t.Fatalf("applied = %q, want escalate at iteration cap", applied)
	}
	if task.Status != models.TaskFailed {
		t.Errorf("status = %q, want failed", task.Status)
	}
	if m.Status != models.StatusFailed {
		t.Errorf("mission status = %q, want failed", m.Status)
	}
	if len(m.Errors) != 1 {
		t.Fatalf("errors = %v, want one entry", m.Errors)
	}
}

func TestApplyRetryOscillationEscalates(t *testing.T) {
	det := NewDetector()
	m, task := mission(models.StrategyRetry)

	// First identical failure retries; the second escalates.
	applied := ApplyFailureStrategy(StrategyInput{
		Mission: m, Task: task,
		Reason: "undefined symbol parseHeader", Detector: det,
	})
	if applied != models.StrategyRetry {
		t.Fatalf("first failure applied = %q, want retry", applied)
	}

	task.Status = models.TaskExecuting
	applied = ApplyFailureStrategy(StrategyInput{
		Mission: m, Task: task,
		Reason: "undefined symbol parseHeader", Detector: det,
	})
	if applied != models.StrategyEscalate {
		t.Fatalf("repeated failure applied = %q, want escalate", applied)
	}
	if len(m.Errors) == 0 || !strings.Contains(m.Errors[len(m.Errors)-1], "oscillation detected") {
		t.Errorf("errors = %v, want an oscillation entry", m.Errors)
	}
}

func TestApplySkipMarksCompleted(t *testing.T) {
	m, task := mission(models.StrategySkip)

	applied := ApplyFailureStrategy(StrategyInput{
		Mission: m, Task: task, Reason: "flaky integration suite",
	})
	if applied != models.StrategySkip {
		t.Fatalf("applied = %q, want skip", applied)
	}
	if task.Status != models.TaskSkipped {
		t.Errorf("status = %q, want skipped", task.Status)
	}
	if !m.IsCompleted(task.ID) {
		t.Error("skipped task not added to completed set")
	}
	if m.Status == models.StatusFailed {
		t.Error("skip must not fail the mission")
	}
}

func TestApplyReplanEscalates(t *testing.T) {
	m, task := mission(models.StrategyReplan)

	applied := ApplyFailureStrategy(StrategyInput{
		Mission: m, Task: task, Reason: "plan no longer valid",
	})
	if applied != models.StrategyEscalate {
		t.Fatalf("applied = %q, want escalate for replan", applied)
	}
	if m.Status != models.StatusFailed {
		t.Errorf("mission status = %q, want failed", m.Status)
	}
}

func TestBuildRetryContextIncludesOutputTail(t *testing.T) {
	long := strings.Repeat("x", 3000) + "TAIL-MARKER"
	ctx := BuildRetryContext(nil, "worker produced no output", long)
	if !strings.Contains(ctx, "TAIL-MARKER") {
		t.Error("tail marker missing from retry context")
	}
	if strings.Contains(ctx, strings.Repeat("x", 2500)) {
		t.Error("output tail not truncated")
	}
}

func TestDetectorWindowAndRepeats(t *testing.T) {
	d := NewDetector()

	d.Record("TASK-001", "err A")
	d.Record("TASK-001", "err B")
	if d.IsOscillating("TASK-001") {
		t.Error("two distinct reasons reported as oscillation")
	}

	// Same fingerprint three times within the window, never adjacent.
	d.Record("TASK-001", "err A")
	d.Record("TASK-001", "err C")
	d.Record("TASK-001", "err A")
	if !d.IsOscillating("TASK-001") {
		t.Error("three repeats of the same fingerprint not detected")
	}

	d.Forget("TASK-001")
	if d.IsOscillating("TASK-001") {
		t.Error("history survived Forget")
	}
}

func TestDetectorNormalisesFingerprints(t *testing.T) {
	d := NewDetector()
	d.Record("TASK-002", "Tests Failed ")
	d.Record("TASK-002", "tests failed")
	if !d.IsOscillating("TASK-002") {
		t.Error("case/whitespace variants of the same reason not matched")
	}
}
