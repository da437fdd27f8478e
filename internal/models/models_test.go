package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTaskIDZeroPadding(t *testing.T) {
	cases := map[int]string{1: "TASK-001", 42: "TASK-042", 999: "TASK-999"}
	for n, want := range cases {
		if got := TaskID(n); got != want {
			t.Errorf("TaskID(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestTaskIDLexicographicOrderMatchesCreationOrder(t *testing.T) {
	prev := TaskID(1)
	for n := 2; n <= 120; n++ {
		id := TaskID(n)
		if !(prev < id) {
			t.Fatalf("TaskID(%d) = %q not greater than %q", n, id, prev)
		}
		prev = id
	}
}

func TestTaskIndex(t *testing.T) {
	n, err := TaskIndex("TASK-007")
	if err != nil {
		t.Fatalf("TaskIndex returned error: %v", err)
	}
	if n != 7 {
		t.Errorf("TaskIndex = %d, want 7", n)
	}

	for _, bad := range []string{"TASK-", "task-001", "TASK-abc", "007"} {
		if _, err := TaskIndex(bad); err == nil {
			t.Errorf("TaskIndex(%q) expected error", bad)
		}
	}
}

func TestValidateDependencies(t *testing.T) {
	tasks := []Task{
		{ID: "TASK-001", Role: RoleResearcher},
		{ID: "TASK-002", Role: RoleCoder, DependsOn: []string{"TASK-001"}},
		{ID: "TASK-003", Role: RoleTester, DependsOn: []string{"TASK-002"}},
	}
	if err := ValidateDependencies(tasks); err != nil {
		t.Fatalf("valid graph rejected: %v", err)
	}

	tasks[0].DependsOn = []string{"TASK-003"}
	if err := ValidateDependencies(tasks); err == nil {
		t.Fatal("forward dependency accepted")
	}

	tasks[0].DependsOn = []string{"TASK-099"}
	if err := ValidateDependencies(tasks); err == nil {
		t.Fatal("unknown dependency accepted")
	}
}

func TestHasCyclicDependencies(t *testing.T) {
	acyclic := []Task{
		{ID: "TASK-001"},
		{ID: "TASK-002", DependsOn: []string{"TASK-001"}},
	}
	if HasCyclicDependencies(acyclic) {
		t.Error("acyclic graph reported as cyclic")
	}

	cyclic := []Task{
		{ID: "TASK-001", DependsOn: []string{"TASK-002"}},
		{ID: "TASK-002", DependsOn: []string{"TASK-001"}},
	}
	if !HasCyclicDependencies(cyclic) {
		t.Error("cycle not detected")
	}

	self := []Task{{ID: "TASK-001", DependsOn: []string{"TASK-001"}}}
	if !HasCyclicDependencies(self) {
		t.Error("self reference not detected")
	}
}

func TestStatusTransitions(t *testing.T) {
	if !StatusReceived.CanTransition(StatusUploading) {
		t.Error("received -> uploading should be allowed")
	}
	if StatusReceived.CanTransition(StatusExecuting) {
		t.Error("received -> executing should be rejected")
	}
	if !StatusSpecifying.CanTransition(StatusClarifying) {
		t.Error("specifying -> clarifying should be allowed")
	}
	if !StatusExecuting.CanTransition(StatusExecuting) {
		t.Error("executing self-loop should be allowed")
	}
	if !StatusExecuting.CanTransition(StatusFailed) {
		t.Error("any status -> failed should be allowed")
	}
	if StatusCompleted.CanTransition(StatusFailed) {
		t.Error("terminal status must not transition")
	}
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("completed and failed must be terminal")
	}
}

func TestMissionCompletedSet(t *testing.T) {
	m := NewMission("add health endpoint", "", "")
	m.MarkCompleted("TASK-002")
	m.MarkCompleted("TASK-001")
	m.MarkCompleted("TASK-002") // duplicate

	if len(m.CompletedIDs) != 2 {
		t.Fatalf("completed set = %v, want two entries", m.CompletedIDs)
	}
	if m.CompletedIDs[0] != "TASK-001" {
		t.Errorf("completed set not sorted: %v", m.CompletedIDs)
	}

	m.UnmarkCompleted("TASK-001")
	if m.IsCompleted("TASK-001") {
		t.Error("TASK-001 still completed after unmark")
	}
	if !m.IsCompleted("TASK-002") {
		t.Error("TASK-002 lost by unmark of another id")
	}
}

func TestMissionLatestResultAccessors(t *testing.T) {
	m := NewMission("req", "", "")
	m.TestResults = []TestResult{
		{TaskID: "TASK-001", Passed: false},
		{TaskID: "TASK-001", Passed: true},
	}
	m.Reviews = []ReviewFeedback{
		{TaskID: "TASK-001", Score: 3},
		{TaskID: "TASK-001", Score: 8},
	}

	if tr := m.TestResultFor("TASK-001"); tr == nil || !tr.Passed {
		t.Error("TestResultFor did not return most recent result")
	}
	if rf := m.ReviewFor("TASK-001"); rf == nil || rf.Score != 8 {
		t.Error("ReviewFor did not return most recent feedback")
	}
	if m.TestResultFor("TASK-002") != nil {
		t.Error("expected nil for unknown task")
	}
}

// Persisted missions are an external contract: camelCase field names and
// epoch-millisecond timestamps.
func TestMissionJSONFieldNames(t *testing.T) {
	m := NewMission("req", "/tmp/project", "git@example.com:a/b.git")
	m.RetryContext = "ctx"
	m.CompletedIDs = []string{"TASK-001"}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	for _, field := range []string{`"completedIds"`, `"retryContext"`, `"projectPath"`, `"gitRemote"`, `"createdAt"`} {
		if !strings.Contains(body, field) {
			t.Errorf("serialised mission missing %s: %s", field, body)
		}
	}
	if m.CreatedAt < 1_000_000_000_000 {
		t.Errorf("CreatedAt %d does not look like epoch milliseconds", m.CreatedAt)
	}
}
