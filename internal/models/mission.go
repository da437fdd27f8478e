package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Mission is one user request and all execution state required to fulfil
// it. The record is mutated only by the pipeline driver for the mission;
// stages return deltas instead of writing to the live record.
type Mission struct {
	ID             string            `json:"id"`
	Request        string            `json:"request"`
	Status         MissionStatus     `json:"status"`
	Classification *Classification   `json:"classification,omitempty"`
	Spec           *ProductSpec      `json:"spec,omitempty"`
	Tasks          []Task            `json:"tasks,omitempty"`
	Wave           int               `json:"wave"`
	CompletedIDs   []string          `json:"completedIds,omitempty"`
	RetryContext   string            `json:"retryContext,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
	WaveResults    []WaveResult      `json:"waveResults,omitempty"`
	Containers     []ContainerInfo   `json:"containers,omitempty"`
	TestResults    []TestResult      `json:"testResults,omitempty"`
	Reviews        []ReviewFeedback  `json:"reviews,omitempty"`
	Strategy       ExecutionStrategy `json:"strategy"`
	ProjectPath    string            `json:"projectPath,omitempty"`
	GitRemote      string            `json:"gitRemote,omitempty"`
	RuntimeTag     string            `json:"runtimeTag,omitempty"`
	ReasoningLevel string            `json:"reasoningLevel,omitempty"`
	ProjectContext string            `json:"projectContext,omitempty"`
	Questions      []string          `json:"questions,omitempty"`
	Answers        []string          `json:"answers,omitempty"`
	Metrics        *MissionMetrics   `json:"metrics,omitempty"`
	CreatedAt      int64             `json:"createdAt"`
	UpdatedAt      int64             `json:"updatedAt"`
}

// NewMission creates a mission in the received state for a user request.
func NewMission(request, projectPath, gitRemote string) *Mission {
	now := time.Now().UnixMilli()
	return &Mission{
		ID:          uuid.NewString(),
		Request:     request,
		Status:      StatusReceived,
		Strategy:    StrategyParallel,
		ProjectPath: projectPath,
		GitRemote:   gitRemote,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Task returns a pointer to the task with the given id, or nil.
func (m *Mission) Task(id string) *Task {
	for i := range m.Tasks {
		if m.Tasks[i].ID == id {
			return &m.Tasks[i]
		}
	}
	return nil
}

// IsCompleted reports whether the id is in the completed set.
func (m *Mission) IsCompleted(id string) bool {
	return slices.Contains(m.CompletedIDs, id)
}

// MarkCompleted adds the id to the completed set, keeping it sorted and
// duplicate-free.
func (m *Mission) MarkCompleted(id string) {
	if m.IsCompleted(id) {
		return
	}
	m.CompletedIDs = append(m.CompletedIDs, id)
	slices.Sort(m.CompletedIDs)
}

// UnmarkCompleted removes the id from the completed set. Only the merge
// conflict reset path uses this; everywhere else the set grows
// monotonically.
func (m *Mission) UnmarkCompleted(id string) {
	m.CompletedIDs = slices.DeleteFunc(m.CompletedIDs, func(s string) bool {
		return s == id
	})
}

// AddError appends a mission-level error entry.
func (m *Mission) AddError(format string, args ...any) {
	m.Errors = append(m.Errors, fmt.Sprintf(format, args...))
}

// TestResultFor returns the most recent test result for a task, or nil.
func (m *Mission) TestResultFor(taskID string) *TestResult {
	for i := len(m.TestResults) - 1; i >= 0; i-- {
		if m.TestResults[i].TaskID == taskID {
			return &m.TestResults[i]
		}
	}
	return nil
}

// ReviewFor returns the most recent review feedback for a task, or nil.
func (m *Mission) ReviewFor(taskID string) *ReviewFeedback {
	for i := len(m.Reviews) - 1; i >= 0; i-- {
		if m.Reviews[i].TaskID == taskID {
			return &m.Reviews[i]
		}
	}
	return nil
}
