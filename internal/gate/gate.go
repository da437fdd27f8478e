// Package gate decides whether a coder task's result is accepted after
// dispatch, and applies the task's failure strategy when it is not.
package gate

import (
	"github.com/calder/worldmind/internal/models"
)

// DefaultScoreThreshold is the minimum reviewer score the gate accepts.
const DefaultScoreThreshold = 6

// Decision is the gate verdict for one task.
type Decision struct {
	// Granted is true when the result is accepted.
	Granted bool

	// Action is the failure action to apply when denied.
	Action models.FailureStrategy

	// Reason explains a denial.
	Reason string
}

// Evaluate is a pure function from a test result and review feedback to a
// gate decision.
//
// Decision table:
//   - tests failed                                  -> deny, retry, "tests failed"
//   - tests passed, not approved, score < threshold -> deny, retry, reviewer summary
//   - tests passed, not approved, score >= threshold -> deny, skip (nothing substantive to fix)
//   - tests passed, approved                        -> grant
//
// The decision is monotone: raising the score or flipping tests to passing
// never turns a grant into a denial.
func Evaluate(test *models.TestResult, review *models.ReviewFeedback, threshold int) Decision {
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}

	if test == nil || !test.Passed {
		return Decision{Action: models.StrategyRetry, Reason: "tests failed"}
	}

	if review == nil {
		return Decision{Action: models.StrategyRetry, Reason: "review unavailable"}
	}

	if !review.Approved {
		if review.Score >= threshold {
			return Decision{Action: models.StrategySkip, Reason: "review not approved but nothing substantive to fix"}
		}
		reason := review.Summary
		if reason == "" {
			reason = "review not approved"
		}
		return Decision{Action: models.StrategyRetry, Reason: reason}
	}

	return Decision{Granted: true}
}
