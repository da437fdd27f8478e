package pipeline

import (
	"context"
	"fmt"

	"github.com/calder/worldmind/internal/models"
	"github.com/calder/worldmind/internal/planner"
)

// stageClassify classifies the request and picks the execution strategy.
// Re-entry with a classification already present only advances the status.
func (d *Driver) stageClassify(ctx context.Context, m *models.Mission) error {
	if m.Classification == nil {
		if d.classifier == nil {
			return fmt.Errorf("no LLM caller configured")
		}
		cctx, cancel := d.llmCtx(ctx)
		defer cancel()

		cls, err := d.classifier.Classify(cctx, m.Request)
		if err != nil {
			return err
		}
		m.Classification = cls
		m.Strategy = planner.StrategyFor(cls)
		if m.RuntimeTag == "" {
			m.RuntimeTag = cls.RuntimeTag
		}
		d.logInfo(fmt.Sprintf("classified as %s, complexity %d, strategy %s",
			cls.Category, cls.Complexity, m.Strategy))
	}
	m.Status = models.StatusUploading
	return nil
}

// stageUploadContext extracts project context from the working copy's
// markdown docs. A project without docs proceeds with empty context.
func (d *Driver) stageUploadContext(_ context.Context, m *models.Mission) error {
	if m.ProjectContext == "" && m.ProjectPath != "" {
		pc, err := d.extractor.Extract(m.ProjectPath)
		if err != nil {
			d.logWarn(fmt.Sprintf("project context extraction failed: %v", err))
		} else {
			m.ProjectContext = pc
		}
	}
	m.Status = models.StatusSpecifying
	return nil
}

// stageSpecify asks clarifying questions on first entry, and generates the
// product spec once answers are in (or no questions were needed). The spec
// is persisted into the working copy best-effort.
func (d *Driver) stageSpecify(ctx context.Context, m *models.Mission) error {
	if m.Spec != nil {
		m.Status = models.StatusPlanning
		return nil
	}
	if d.clarifier == nil || d.specgen == nil {
		return fmt.Errorf("no LLM caller configured")
	}

	if len(m.Questions) == 0 {
		cctx, cancel := d.llmCtx(ctx)
		questions, err := d.clarifier.GenerateQuestions(cctx, m.Request, m.ProjectContext, m.Classification)
		cancel()
		if err != nil {
			return err
		}
		if len(questions) > 0 {
			m.Questions = questions
			m.Status = models.StatusClarifying
			return nil
		}
	} else if len(m.Answers) == 0 {
		m.Status = models.StatusClarifying
		return nil
	}

	cctx, cancel := d.llmCtx(ctx)
	defer cancel()
	spec, err := d.specgen.Generate(cctx, m.Request, m.ProjectContext, m.Classification, m.Questions, m.Answers)
	if err != nil {
		return err
	}
	m.Spec = spec

	if err := planner.PersistSpec(spec, m.ProjectPath); err != nil {
		d.logWarn(fmt.Sprintf("failed to persist %s: %v", planner.SpecFileName, err))
	}
	m.Status = models.StatusPlanning
	return nil
}

// stagePlan turns the request into executable tasks. The planner's strategy
// recommendation overrides the classifier's hint; the post-processed task
// list is validated as a DAG before the mission can be approved.
func (d *Driver) stagePlan(ctx context.Context, m *models.Mission) error {
	if len(m.Tasks) == 0 {
		if d.planner == nil {
			return fmt.Errorf("no LLM caller configured")
		}
		cctx, cancel := d.llmCtx(ctx)
		defer cancel()

		plans, strategy, err := d.planner.Plan(cctx, m.Request, m.ProjectContext, m.Classification, m.Spec)
		if err != nil {
			return err
		}
		m.Strategy = strategy

		tasks := planner.BuildTasks(plans, m.Request, d.cfg.MaxIterations)
		if err := models.ValidateDependencies(tasks); err != nil {
			return fmt.Errorf("planned tasks invalid: %w", err)
		}
		if models.HasCyclicDependencies(tasks) {
			return fmt.Errorf("planned tasks contain a dependency cycle")
		}
		m.Tasks = tasks
		d.logInfo(fmt.Sprintf("planned %d tasks, strategy %s", len(tasks), strategy))
	}
	m.Status = models.StatusAwaitingApproval
	return nil
}
