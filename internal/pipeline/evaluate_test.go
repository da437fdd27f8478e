package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/calder/worldmind/internal/config"
	"github.com/calder/worldmind/internal/dispatch"
	"github.com/calder/worldmind/internal/events"
	"github.com/calder/worldmind/internal/gitws"
	"github.com/calder/worldmind/internal/models"
)

// conflictOnceRunner simulates git for the merge workspace: the configured
// task's first rebase conflicts, later attempts merge cleanly.
type conflictOnceRunner struct {
	mu          sync.Mutex
	conflictIDs map[string]int
	currentTask string
}

func (r *conflictOnceRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := strings.Join(args, " ")
	if len(args) >= 3 && args[0] == "checkout" && args[1] == "-b" {
		r.currentTask = strings.TrimPrefix(args[2], "merge-")
	}
	if call == "rebase main" && r.conflictIDs[r.currentTask] > 0 {
		r.conflictIDs[r.currentTask]--
		return "CONFLICT (content): Merge conflict in src/shared.go", errors.New("exit status 1")
	}
	return "", nil
}

func TestRunMergeConflictResetAndRetry(t *testing.T) {
	runner := &conflictOnceRunner{conflictIDs: map[string]int{"TASK-002": 1}}
	ws := gitws.NewWorkspace(runner, t.TempDir(), "git@example.com:acme/app.git")

	disp := &fakeDispatcher{}
	disp.handler = func(req dispatch.Request) (*dispatch.Result, error) {
		switch req.Task.Role {
		case models.RoleTester:
			return passResult(req, `{"passed": true}`)
		case models.RoleReviewer:
			return passResult(req, `{"approved": true, "score": 9}`)
		default:
			return passResult(req, "done",
				models.FileChange{Path: "src/" + strings.ToLower(req.Task.ID) + ".go", Action: models.FileCreated, LinesChanged: 8})
		}
	}

	bus := events.NewBus(1024)
	d, err := NewDriver(Options{
		Config:     config.DefaultConfig(),
		Dispatcher: disp,
		Workspace:  ws,
		Bus:        bus,
	})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	m := executingMission(
		coderTask("TASK-001", nil, "src/a.go"),
		coderTask("TASK-002", nil, "src/b.go"),
	)
	m.GitRemote = "git@example.com:acme/app.git"

	if err := d.Run(context.Background(), m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Status != models.StatusCompleted {
		t.Fatalf("status = %q, errors = %v", m.Status, m.Errors)
	}

	// TASK-002 conflicted in wave 1, was reset, and merged in wave 2.
	if m.Wave != 2 {
		t.Errorf("waves = %d, want 2", m.Wave)
	}
	task := m.Task("TASK-002")
	if task.Iteration != 1 {
		t.Errorf("iteration = %d, want 1 after conflict reset", task.Iteration)
	}

	second := disp.requestsFor(models.RoleCoder)
	if len(second) != 3 {
		t.Fatalf("coder dispatches = %d, want 3 (two in wave 1, one retry)", len(second))
	}
	retry := second[2].Task
	if retry.ID != "TASK-002" {
		t.Fatalf("retried task = %s", retry.ID)
	}
	if !strings.Contains(retry.InputContext, "MERGE CONFLICT RETRY") {
		t.Errorf("retry input lacks conflict header: %q", retry.InputContext)
	}
	if !strings.Contains(retry.InputContext, "src/task-001.go") {
		t.Errorf("retry input does not enumerate merged files: %q", retry.InputContext)
	}
	// Target files for the retry come from the observed delta.
	if len(retry.TargetFiles) != 1 || retry.TargetFiles[0] != "src/task-002.go" {
		t.Errorf("retry targets = %v", retry.TargetFiles)
	}

	if !m.IsCompleted("TASK-001") || !m.IsCompleted("TASK-002") {
		t.Errorf("completedIds = %v", m.CompletedIDs)
	}

	evts := drainEvents(bus)
	foundMergedEvent := false
	for _, e := range evts {
		if e.Type == events.WaveMerged && e.Payload["conflicted"] == "TASK-002" {
			foundMergedEvent = true
		}
	}
	if !foundMergedEvent {
		t.Error("missing wave.merged event naming the conflicted task")
	}
}

func TestRunMergeConflictExhaustsRetries(t *testing.T) {
	// Every rebase of TASK-001 conflicts; after max iterations the mission
	// escalates.
	runner := &conflictOnceRunner{conflictIDs: map[string]int{"TASK-001": 100}}
	ws := gitws.NewWorkspace(runner, t.TempDir(), "git@example.com:acme/app.git")

	disp := &fakeDispatcher{}
	disp.handler = func(req dispatch.Request) (*dispatch.Result, error) {
		switch req.Task.Role {
		case models.RoleTester:
			return passResult(req, `{"passed": true}`)
		case models.RoleReviewer:
			return passResult(req, `{"approved": true, "score": 9}`)
		default:
			return passResult(req, "done",
				models.FileChange{Path: "src/a.go", Action: models.FileModified, LinesChanged: 2})
		}
	}

	d, err := NewDriver(Options{Config: config.DefaultConfig(), Dispatcher: disp, Workspace: ws})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	task := coderTask("TASK-001", nil, "src/a.go")
	task.MaxIterations = 1
	m := executingMission(task)
	m.GitRemote = "git@example.com:acme/app.git"

	if err := d.Run(context.Background(), m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", m.Status)
	}
	if got := m.Task("TASK-001").Status; got != models.TaskFailed {
		t.Errorf("task status = %q, want failed", got)
	}
	if got := m.Task("TASK-001").Iteration; got > 2 {
		t.Errorf("iteration = %d, exceeded cap", got)
	}
}

func TestVerifierDispatchErrorSynthesisesFailedRecords(t *testing.T) {
	disp := &fakeDispatcher{}
	disp.handler = func(req dispatch.Request) (*dispatch.Result, error) {
		switch req.Task.Role {
		case models.RoleTester, models.RoleReviewer:
			return nil, errors.New("docker daemon unreachable")
		default:
			return passResult(req, "done",
				models.FileChange{Path: "src/a.go", Action: models.FileModified, LinesChanged: 2})
		}
	}
	d, _, _ := newTestDriver(t, disp, nil)

	task := coderTask("TASK-001", nil, "src/a.go")
	task.MaxIterations = 1
	m := executingMission(task)

	if err := d.Run(context.Background(), m); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(m.TestResults) == 0 || m.TestResults[0].Passed {
		t.Errorf("testResults = %+v, want synthesised failure", m.TestResults)
	}
	if !strings.Contains(m.TestResults[0].Output, "docker daemon unreachable") {
		t.Errorf("test result output = %q", m.TestResults[0].Output)
	}
	if len(m.Reviews) == 0 || m.Reviews[0].Approved {
		t.Errorf("reviews = %+v, want synthesised unapproved review", m.Reviews)
	}
}

func TestParseTestResultFallsBackToStatus(t *testing.T) {
	tr := parseTestResult("TASK-001", "all good, no JSON here", models.TaskPassed)
	if !tr.Passed {
		t.Error("non-JSON output from a passed dispatch should pass")
	}
	tr = parseTestResult("TASK-001", `{"passed": false, "totalTests": 10, "failedTests": 2}`, models.TaskPassed)
	if tr.Passed || tr.TotalTests != 10 || tr.FailedTests != 2 {
		t.Errorf("parsed = %+v", tr)
	}
}

func TestParseReview(t *testing.T) {
	rf := parseReview("TASK-001", `{"approved": false, "score": 4, "summary": "needs tests", "issues": ["no tests"], "suggestions": ["add a table test"]}`)
	if rf.Approved || rf.Score != 4 || rf.Summary != "needs tests" {
		t.Errorf("parsed = %+v", rf)
	}
	if len(rf.Issues) != 1 || len(rf.Suggestions) != 1 {
		t.Errorf("lists = %v / %v", rf.Issues, rf.Suggestions)
	}

	empty := parseReview("TASK-001", "free-form prose")
	if empty.Approved || empty.Score != 0 {
		t.Errorf("prose output must yield an unapproved zero-score review: %+v", empty)
	}
}
