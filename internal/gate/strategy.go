package gate

import (
	"strings"

	"github.com/calder/worldmind/internal/models"
)

// retryTailLimit caps the agent-output tail embedded in retry context.
const retryTailLimit = 2000

// maxListedIssues bounds how many reviewer issues and suggestions enrich a
// retry context.
const maxListedIssues = 3

// StrategyInput carries everything needed to apply a failure strategy to
// one denied or failed task.
type StrategyInput struct {
	Mission *models.Mission
	Task    *models.Task
	Review  *models.ReviewFeedback
	Reason  string
	// Action overrides the task's own failure strategy, used when the gate
	// decision names a specific action. Empty means use the task's.
	Action models.FailureStrategy
	// OutputTail is the tail of the raw agent output, set for failures
	// that happened before the gate ran.
	OutputTail string
	Detector   *Detector
	// MaxIterations overrides the task's cap when positive.
	MaxIterations int
}

// ApplyFailureStrategy applies the task's failure strategy, with two
// overrides: a retry at the iteration cap escalates, and a retry whose
// failure fingerprint oscillates escalates. It returns the action actually
// applied.
func ApplyFailureStrategy(in StrategyInput) models.FailureStrategy {
	task := in.Task
	mission := in.Mission

	maxIter := task.MaxIterations
	if in.MaxIterations > 0 {
		maxIter = in.MaxIterations
	}
	if maxIter <= 0 {
		maxIter = models.DefaultMaxIterations
	}

	action := in.Action
	if action == "" {
		action = task.FailureStrategy
	}
	if action == "" {
		action = models.StrategyRetry
	}

	oscillating := false
	if action == models.StrategyRetry {
		if task.Iteration >= maxIter {
			action = models.StrategyEscalate
		} else if in.Detector != nil {
			in.Detector.Record(task.ID, in.Reason)
			if in.Detector.IsOscillating(task.ID) {
				action = models.StrategyEscalate
				oscillating = true
			}
		}
	}

	switch action {
	case models.StrategyRetry:
		retryCtx := BuildRetryContext(in.Review, in.Reason, in.OutputTail)
		mission.RetryContext = retryCtx
		task.Status = models.TaskPending
		task.Iteration++
		task.InputContext = retryCtx + "\n\n" + task.InputContext

	case models.StrategySkip:
		task.Status = models.TaskSkipped
		mission.MarkCompleted(task.ID)

	case models.StrategyEscalate, models.StrategyReplan:
		// Replanning is out of scope; replan escalates.
		task.Status = models.TaskFailed
		if oscillating {
			mission.AddError("task %s: oscillation detected: %s", task.ID, in.Reason)
		} else {
			mission.AddError("task %s: %s", task.ID, in.Reason)
		}
		mission.Status = models.StatusFailed
		action = models.StrategyEscalate
	}

	return action
}

// BuildRetryContext assembles the diagnostic handed to the next dispatch of
// a failed task: the review summary, up to three issues and suggestions,
// and (for pre-gate failures) the tail of the agent output.
func BuildRetryContext(review *models.ReviewFeedback, reason, outputTail string) string {
	var sb strings.Builder
	sb.WriteString("## Retry Context (from previous attempt)\n\n")
	if reason != "" {
		sb.WriteString("Failure: " + reason + "\n")
	}
	if review != nil {
		if review.Summary != "" && review.Summary != reason {
			sb.WriteString("Review summary: " + review.Summary + "\n")
		}
		for i, issue := range review.Issues {
			if i >= maxListedIssues {
				break
			}
			sb.WriteString("- Issue: " + issue + "\n")
		}
		for i, s := range review.Suggestions {
			if i >= maxListedIssues {
				break
			}
			sb.WriteString("- Suggestion: " + s + "\n")
		}
	}
	if outputTail != "" {
		sb.WriteString("\nAgent output tail:\n")
		sb.WriteString(Tail(outputTail, retryTailLimit))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Tail returns the last n characters of s.
func Tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
