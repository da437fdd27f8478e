package models

// ExecutionStrategy selects how the scheduler builds waves.
type ExecutionStrategy string

const (
	StrategySequential ExecutionStrategy = "sequential"
	StrategyParallel   ExecutionStrategy = "parallel"
)

// Classification is the classifier's verdict on a mission request.
type Classification struct {
	Category           string   `json:"category"`
	Complexity         int      `json:"complexity"`
	AffectedComponents []string `json:"affectedComponents,omitempty"`
	PlanningStrategy   string   `json:"planningStrategy"`
	RuntimeTag         string   `json:"runtimeTag,omitempty"`
}

// ProductSpec is the generated product specification for a mission.
type ProductSpec struct {
	Title                 string   `json:"title"`
	Overview              string   `json:"overview"`
	Goals                 []string `json:"goals,omitempty"`
	NonGoals              []string `json:"nonGoals,omitempty"`
	TechnicalRequirements []string `json:"technicalRequirements,omitempty"`
	EdgeCases             []string `json:"edgeCases,omitempty"`
	AcceptanceCriteria    []string `json:"acceptanceCriteria,omitempty"`
	Components            []string `json:"components,omitempty"`
}

// TaskPlan is one planner-proposed task before post-processing assigns ids
// and recomputes dependencies.
type TaskPlan struct {
	Role            AgentRole `json:"role"`
	Description     string    `json:"description"`
	InputContext    string    `json:"inputContext"`
	SuccessCriteria string    `json:"successCriteria"`
	TargetFiles     []string  `json:"targetFiles,omitempty"`
}
