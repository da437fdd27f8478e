package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calder/worldmind/internal/llm"
	"github.com/calder/worldmind/internal/models"
)

const plannerSystemPrompt = `You decompose an engineering request into tasks
for containerised agent workers. Each task is executed by one worker with
the given role. Researchers gather context, coders and refactorers change
source files, testers and reviewers verify coder output. Name the concrete
files each coder will touch in targetFiles; two coders that touch the same
file cannot run in the same wave. Do not emit dependency lists, they are
recomputed from task roles. Prefer few focused tasks over many small ones.`

// Planner turns a request plus its classification and spec into an ordered
// task-plan list and a strategy recommendation.
type Planner struct {
	caller llm.Caller
}

func NewPlanner(caller llm.Caller) *Planner {
	return &Planner{caller: caller}
}

// Plan runs one structured call and returns the raw plans in planner order.
// Callers pass the result through BuildTasks before scheduling anything.
func (p *Planner) Plan(ctx context.Context, request, projectContext string, cls *models.Classification, spec *models.ProductSpec) ([]models.TaskPlan, models.ExecutionStrategy, error) {
	var sb strings.Builder
	sb.WriteString("Request:\n")
	sb.WriteString(request)
	if cls != nil {
		fmt.Fprintf(&sb, "\n\nClassification: %s, complexity %d, strategy hint %s.",
			cls.Category, cls.Complexity, cls.PlanningStrategy)
	}
	if spec != nil {
		sb.WriteString("\n\nSpecification:\n")
		sb.WriteString(RenderSpecMarkdown(spec))
	}
	if projectContext != "" {
		sb.WriteString("\n\nProject context:\n")
		sb.WriteString(projectContext)
	}

	var out struct {
		Strategy models.ExecutionStrategy `json:"strategy"`
		Tasks    []models.TaskPlan        `json:"tasks"`
	}
	if err := p.caller.StructuredCall(ctx, plannerSystemPrompt, sb.String(), taskPlanSchema, &out); err != nil {
		return nil, "", fmt.Errorf("plan mission: %w", err)
	}
	if len(out.Tasks) == 0 {
		return nil, "", errors.New("planner returned no tasks")
	}
	if out.Strategy != models.StrategySequential {
		out.Strategy = models.StrategyParallel
	}
	return out.Tasks, out.Strategy, nil
}
