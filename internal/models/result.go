package models

// FileChangeAction describes what happened to a file during a task.
type FileChangeAction string

const (
	FileCreated  FileChangeAction = "created"
	FileModified FileChangeAction = "modified"
	FileDeleted  FileChangeAction = "deleted"
)

// FileChange is one entry of a task's observed file delta, derived from a
// `git diff --stat` parse.
type FileChange struct {
	Path         string           `json:"path"`
	Action       FileChangeAction `json:"action"`
	LinesChanged int              `json:"linesChanged"`
}

// WaveResult records the outcome of dispatching one task in one wave
// attempt.
type WaveResult struct {
	TaskID        string       `json:"taskId"`
	Wave          int          `json:"wave"`
	Status        TaskStatus   `json:"status"`
	FilesAffected []FileChange `json:"filesAffected,omitempty"`
	Output        string       `json:"output"`
	ElapsedMS     int64        `json:"elapsedMs"`
}

// TestResult is the parsed outcome of a tester worker run against a coder
// task's output.
type TestResult struct {
	TaskID      string `json:"taskId"`
	Passed      bool   `json:"passed"`
	TotalTests  int    `json:"totalTests"`
	FailedTests int    `json:"failedTests"`
	Output      string `json:"output"`
	ElapsedMS   int64  `json:"elapsedMs"`
}

// ReviewFeedback is the parsed outcome of a reviewer worker run. Score is in
// 0..10; the gate compares it against the configured threshold.
type ReviewFeedback struct {
	TaskID      string   `json:"taskId"`
	Approved    bool     `json:"approved"`
	Summary     string   `json:"summary"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Score       int      `json:"score"`
}

// ContainerInfo references a worker container observed during dispatch.
// Containers are owned by the dispatcher; the mission only records them.
type ContainerInfo struct {
	ID          string `json:"id"`
	TaskID      string `json:"taskId"`
	Image       string `json:"image,omitempty"`
	StartedAt   int64  `json:"startedAt"`
	CompletedAt int64  `json:"completedAt"`
}

// MissionMetrics aggregates execution measurements at convergence.
type MissionMetrics struct {
	TotalDurationMS  int64 `json:"totalDurationMs"`
	TasksCompleted   int   `json:"tasksCompleted"`
	TasksFailed      int   `json:"tasksFailed"`
	TotalIterations  int   `json:"totalIterations"`
	FilesCreated     int   `json:"filesCreated"`
	FilesModified    int   `json:"filesModified"`
	TestsRun         int   `json:"testsRun"`
	TestsPassed      int   `json:"testsPassed"`
	WavesExecuted    int   `json:"wavesExecuted"`
	AggregateTaskMS  int64 `json:"aggregateTaskMs"`
}
