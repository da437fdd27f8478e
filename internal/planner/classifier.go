// Package planner turns a mission request into a classification, a product
// specification, clarifying questions, and an executable task list. All four
// collaborators are thin wrappers over the structured-call client; the task
// list then goes through deterministic post-processors that assign ids and
// recompute dependencies.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calder/worldmind/internal/llm"
	"github.com/calder/worldmind/internal/models"
)

const classifierSystemPrompt = `You are the request classifier of an engineering
orchestrator. Classify the user's request so the planner can pick an
execution strategy. Judge complexity on a 1..5 scale where 1 is a one-line
change and 5 is a multi-component feature. List the components of the
project the request is likely to touch. Record the result with the
record_result tool.`

// Classifier assigns a category, complexity and planning-strategy hint to a
// mission request.
type Classifier struct {
	caller llm.Caller
}

func NewClassifier(caller llm.Caller) *Classifier {
	return &Classifier{caller: caller}
}

// Classify runs one structured call for the request. An empty request is
// rejected before any call is made.
func (c *Classifier) Classify(ctx context.Context, request string) (*models.Classification, error) {
	if strings.TrimSpace(request) == "" {
		return nil, errors.New("mission request is empty")
	}

	var out models.Classification
	if err := c.caller.StructuredCall(ctx, classifierSystemPrompt, request, classificationSchema, &out); err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	return &out, nil
}

// StrategyFor maps a classification to the scheduler's execution strategy.
// The adaptive hint resolves by complexity: trivial requests run
// sequentially, anything else runs in parallel waves.
func StrategyFor(cls *models.Classification) models.ExecutionStrategy {
	if cls == nil {
		return models.StrategyParallel
	}
	switch cls.PlanningStrategy {
	case "sequential":
		return models.StrategySequential
	case "parallel":
		return models.StrategyParallel
	default:
		if cls.Complexity <= 2 {
			return models.StrategySequential
		}
		return models.StrategyParallel
	}
}
