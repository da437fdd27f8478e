package models

// MissionStatus is the lifecycle state of a mission. The pipeline driver
// selects the next stage from this value, so transitions are restricted to
// the edges listed in allowedTransitions.
type MissionStatus string

const (
	StatusReceived         MissionStatus = "received"
	StatusUploading        MissionStatus = "uploading"
	StatusSpecifying       MissionStatus = "specifying"
	StatusClarifying       MissionStatus = "clarifying"
	StatusPlanning         MissionStatus = "planning"
	StatusAwaitingApproval MissionStatus = "awaiting_approval"
	StatusExecuting        MissionStatus = "executing"
	StatusCompleted        MissionStatus = "completed"
	StatusFailed           MissionStatus = "failed"
)

// allowedTransitions maps each status to the statuses a stage may advance to.
// Any status may additionally transition to failed.
var allowedTransitions = map[MissionStatus][]MissionStatus{
	StatusReceived:         {StatusUploading},
	StatusUploading:        {StatusSpecifying},
	StatusSpecifying:       {StatusClarifying, StatusSpecifying, StatusPlanning},
	StatusClarifying:       {StatusSpecifying},
	StatusPlanning:         {StatusAwaitingApproval},
	StatusAwaitingApproval: {StatusExecuting},
	StatusExecuting:        {StatusExecuting, StatusCompleted},
}

// IsTerminal reports whether the status admits no further transitions.
func (s MissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next follows an allowed
// edge. Transitioning to failed is allowed from every non-terminal status.
func (s MissionStatus) CanTransition(next MissionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	for _, t := range allowedTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
