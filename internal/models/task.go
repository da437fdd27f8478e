package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// AgentRole is the behavioural specialisation of the worker invoked for a
// task. The set is closed; the planner post-processors depend on it.
type AgentRole string

const (
	RoleResearcher AgentRole = "researcher"
	RoleCoder      AgentRole = "coder"
	RoleRefactorer AgentRole = "refactorer"
	RoleTester     AgentRole = "tester"
	RoleReviewer   AgentRole = "reviewer"
	RoleDeployer   AgentRole = "deployer"
)

// IsCodeProducing reports whether the role is expected to change source
// files. Coder and refactorer tasks go through the quality gate and the wave
// merge; the other roles do not.
func (r AgentRole) IsCodeProducing() bool {
	return r == RoleCoder || r == RoleRefactorer
}

// TaskStatus is the execution state of a single task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskExecuting TaskStatus = "executing"
	TaskVerifying TaskStatus = "verifying"
	TaskPassed    TaskStatus = "passed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// FailureStrategy selects what the evaluator does when a task's gate is
// denied or the task fails before the gate.
type FailureStrategy string

const (
	StrategyRetry    FailureStrategy = "retry"
	StrategySkip     FailureStrategy = "skip"
	StrategyEscalate FailureStrategy = "escalate"
	StrategyReplan   FailureStrategy = "replan"
)

// DefaultMaxIterations caps retries per task.
const DefaultMaxIterations = 3

// Task is the unit of work dispatched to a single worker.
type Task struct {
	ID              string          `json:"id"`
	Role            AgentRole       `json:"role"`
	Description     string          `json:"description"`
	InputContext    string          `json:"inputContext"`
	SuccessCriteria string          `json:"successCriteria"`
	DependsOn       []string        `json:"dependsOn,omitempty"`
	Status          TaskStatus      `json:"status"`
	Iteration       int             `json:"iteration"`
	MaxIterations   int             `json:"maxIterations"`
	FailureStrategy FailureStrategy `json:"failureStrategy"`
	TargetFiles     []string        `json:"targetFiles,omitempty"`
	FilesAffected   []FileChange    `json:"filesAffected,omitempty"`
	ElapsedMS       int64           `json:"elapsedMs"`
}

// TaskID renders the stable zero-padded id for the n-th task (1-based).
// The width-3 padding makes lexicographic order coincide with creation
// order, which the wave merge relies on.
func TaskID(n int) string {
	return fmt.Sprintf("TASK-%03d", n)
}

// TaskIndex parses a "TASK-NNN" id back to its 1-based index.
func TaskIndex(id string) (int, error) {
	rest, ok := strings.CutPrefix(id, "TASK-")
	if !ok {
		return 0, fmt.Errorf("malformed task id %q", id)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("malformed task id %q", id)
	}
	return n, nil
}

// Validate checks the task has the fields dispatch requires.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.Role == "" {
		return errors.New("task role is required")
	}
	if t.Description == "" {
		return errors.New("task description is required")
	}
	return nil
}

// IsDone reports whether the task needs no further dispatch.
func (t *Task) IsDone() bool {
	return t.Status == TaskPassed || t.Status == TaskSkipped
}

// ValidateDependencies checks that every dependency of every task references
// an existing task with a lower index, which also guarantees the graph is a
// DAG.
func ValidateDependencies(tasks []Task) error {
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}
	for i, t := range tasks {
		for _, dep := range t.DependsOn {
			j, ok := index[dep]
			if !ok {
				return fmt.Errorf("task %s depends on unknown task %s", t.ID, dep)
			}
			if j >= i {
				return fmt.Errorf("task %s depends on later task %s", t.ID, dep)
			}
		}
	}
	return nil
}

// HasCyclicDependencies detects circular dependencies with a DFS over the
// dependency edges. Dependencies on unknown tasks are ignored here; they are
// reported by ValidateDependencies instead.
func HasCyclicDependencies(tasks []Task) bool {
	graph := make(map[string][]string, len(tasks))
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
		graph[t.ID] = nil
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return true
			}
			if known[dep] {
				graph[dep] = append(graph[dep], t.ID)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int, len(tasks))

	var dfs func(string) bool
	dfs = func(node string) bool {
		colors[node] = gray
		for _, next := range graph[node] {
			if colors[next] == gray {
				return true
			}
			if colors[next] == white && dfs(next) {
				return true
			}
		}
		colors[node] = black
		return false
	}

	for id := range known {
		if colors[id] == white && dfs(id) {
			return true
		}
	}
	return false
}
