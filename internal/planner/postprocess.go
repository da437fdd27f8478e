package planner

import (
	"fmt"
	"strings"

	"github.com/calder/worldmind/internal/models"
)

// BuildTasks turns planner output into executable tasks. The three
// post-processors run in a fixed order: convert plans to tasks, ensure an
// implementation task exists, recompute dependencies from task roles. When
// the request asks for deployment artefacts a trailing deployment task is
// appended last.
func BuildTasks(plans []models.TaskPlan, request string, maxIterations int) []models.Task {
	if maxIterations <= 0 {
		maxIterations = models.DefaultMaxIterations
	}
	tasks := convertPlans(plans, maxIterations)
	tasks = ensureImplementationTask(tasks, request, maxIterations)
	assignTypeDependencies(tasks)
	if WantsDeployment(request) {
		tasks = appendDeploymentTask(tasks, maxIterations)
	}
	return tasks
}

// convertPlans copies plan fields onto tasks with sequential zero-padded
// ids. Every task starts pending at iteration 0 with the retry strategy.
func convertPlans(plans []models.TaskPlan, maxIterations int) []models.Task {
	tasks := make([]models.Task, 0, len(plans))
	for i, p := range plans {
		tasks = append(tasks, models.Task{
			ID:              models.TaskID(i + 1),
			Role:            p.Role,
			Description:     p.Description,
			InputContext:    p.InputContext,
			SuccessCriteria: p.SuccessCriteria,
			TargetFiles:     p.TargetFiles,
			Status:          models.TaskPending,
			MaxIterations:   maxIterations,
			FailureStrategy: models.StrategyRetry,
		})
	}
	return tasks
}

// ensureImplementationTask guarantees at least one code-producing task. The
// default coder slots in before a trailing reviewer when one exists, so the
// reviewer still reviews it; its id continues the sequence and all ids are
// renumbered to stay in creation order.
func ensureImplementationTask(tasks []models.Task, request string, maxIterations int) []models.Task {
	for _, t := range tasks {
		if t.Role.IsCodeProducing() {
			return tasks
		}
	}

	coder := models.Task{
		Role:            models.RoleCoder,
		Description:     fmt.Sprintf("Implement the requested changes: %s", request),
		Status:          models.TaskPending,
		MaxIterations:   maxIterations,
		FailureStrategy: models.StrategyRetry,
	}

	insertAt := len(tasks)
	if n := len(tasks); n > 0 && tasks[n-1].Role == models.RoleReviewer {
		insertAt = n - 1
	}
	tasks = append(tasks[:insertAt], append([]models.Task{coder}, tasks[insertAt:]...)...)
	for i := range tasks {
		tasks[i].ID = models.TaskID(i + 1)
	}
	return tasks
}

// assignTypeDependencies discards planner-provided dependencies and
// recomputes them from roles: code producers depend on all preceding
// researchers; testers and reviewers depend on all preceding code
// producers; a deployer depends on every preceding task so it runs in a
// final wave of its own; everything else has none. Because a task only
// ever depends on earlier tasks, the result is a DAG by construction.
func assignTypeDependencies(tasks []models.Task) {
	for i := range tasks {
		tasks[i].DependsOn = nil
		switch {
		case tasks[i].Role == models.RoleDeployer:
			for j := 0; j < i; j++ {
				tasks[i].DependsOn = append(tasks[i].DependsOn, tasks[j].ID)
			}
		case tasks[i].Role.IsCodeProducing():
			for j := 0; j < i; j++ {
				if tasks[j].Role == models.RoleResearcher {
					tasks[i].DependsOn = append(tasks[i].DependsOn, tasks[j].ID)
				}
			}
		case tasks[i].Role == models.RoleTester || tasks[i].Role == models.RoleReviewer:
			for j := 0; j < i; j++ {
				if tasks[j].Role.IsCodeProducing() {
					tasks[i].DependsOn = append(tasks[i].DependsOn, tasks[j].ID)
				}
			}
		}
	}
}

// appendDeploymentTask adds a trailing coder that produces deployment
// configuration, depending on every code producer so it always lands in a
// final wave. It skips on failure: a broken manifest must not fail the
// mission.
func appendDeploymentTask(tasks []models.Task, maxIterations int) []models.Task {
	deploy := models.Task{
		ID:              models.TaskID(len(tasks) + 1),
		Role:            models.RoleCoder,
		Description:     "Create or update deployment configuration for the implemented changes",
		TargetFiles:     []string{"manifest.yml", "Procfile"},
		Status:          models.TaskPending,
		MaxIterations:   maxIterations,
		FailureStrategy: models.StrategySkip,
	}
	for _, t := range tasks {
		if t.Role.IsCodeProducing() {
			deploy.DependsOn = append(deploy.DependsOn, t.ID)
		}
	}
	return append(tasks, deploy)
}

// WantsDeployment reports whether the request asks for deployment
// artefacts.
func WantsDeployment(request string) bool {
	r := strings.ToLower(request)
	return strings.Contains(r, "deploy") || strings.Contains(r, "manifest")
}
