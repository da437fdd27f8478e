package pipeline

import "fmt"

// TaskError identifies which task and pipeline stage an error belongs to.
// It surfaces in synthesised verifier records and mission error entries so
// a failure can be traced without the mission log.
type TaskError struct {
	TaskID string
	Stage  string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %s: %v", e.TaskID, e.Stage, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
