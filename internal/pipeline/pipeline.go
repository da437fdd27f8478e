// Package pipeline drives a mission through its staged workflow: classify,
// upload context, clarify, specify, plan, then the wave loop of schedule,
// dispatch and evaluate, ending in converge. The driver is the single
// writer of the mission record; wave goroutines collect results into local
// buffers that are aggregated serially after the wave joins.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/calder/worldmind/internal/config"
	"github.com/calder/worldmind/internal/dispatch"
	"github.com/calder/worldmind/internal/events"
	"github.com/calder/worldmind/internal/gate"
	"github.com/calder/worldmind/internal/gitws"
	"github.com/calder/worldmind/internal/llm"
	"github.com/calder/worldmind/internal/logger"
	"github.com/calder/worldmind/internal/models"
	"github.com/calder/worldmind/internal/planner"
	"github.com/calder/worldmind/internal/projctx"
)

// Store persists mission records between stages. A nil Store disables
// persistence, used by tests and dry runs.
type Store interface {
	SaveMission(ctx context.Context, m *models.Mission) error
}

// Driver owns the singletons a mission needs and runs its stages one at a
// time.
type Driver struct {
	cfg        *config.Config
	dispatcher dispatch.Dispatcher
	workspace  *gitws.Workspace
	bus        *events.Bus
	log        logger.Logger
	store      Store
	detector   *gate.Detector
	extractor  *projctx.Extractor

	classifier *planner.Classifier
	clarifier  *planner.Clarifier
	specgen    *planner.SpecGenerator
	planner    *planner.Planner

	// diagFilter marks orchestrator-internal paths that never count as
	// produced code. Replaceable for deployments with different layouts.
	diagFilter func(path string) bool
}

// Options carries the collaborators of a Driver. Dispatcher is required;
// everything else has a working nil behaviour (no persistence, no events,
// no logging, no git merges, no LLM stages).
type Options struct {
	Config     *config.Config
	Caller     llm.Caller
	Dispatcher dispatch.Dispatcher
	Workspace  *gitws.Workspace
	Bus        *events.Bus
	Logger     logger.Logger
	Store      Store
	DiagFilter func(path string) bool
}

// NewDriver wires a driver from its options.
func NewDriver(opts Options) (*Driver, error) {
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("pipeline driver requires a dispatcher")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	d := &Driver{
		cfg:        cfg,
		dispatcher: opts.Dispatcher,
		workspace:  opts.Workspace,
		bus:        opts.Bus,
		log:        opts.Logger,
		store:      opts.Store,
		detector:   gate.NewDetector(),
		extractor:  projctx.NewExtractor(),
		diagFilter: opts.DiagFilter,
	}
	if d.diagFilter == nil {
		d.diagFilter = IsDiagnosticPath
	}
	if opts.Caller != nil {
		d.classifier = planner.NewClassifier(opts.Caller)
		d.clarifier = planner.NewClarifier(opts.Caller)
		d.specgen = planner.NewSpecGenerator(opts.Caller)
		d.planner = planner.NewPlanner(opts.Caller)
	}
	return d, nil
}

// Run advances the mission until it reaches a terminal status or a status
// that waits on external user input (clarifying, awaiting_approval).
// Cancellation marks the mission failed at the next stage boundary.
func (d *Driver) Run(ctx context.Context, m *models.Mission) error {
	if err := validateMission(m); err != nil {
		// The mission never leaves received; a single error entry records
		// why.
		if len(m.Errors) == 0 {
			m.AddError("%v", err)
		}
		d.persist(ctx, m)
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			if !m.Status.IsTerminal() {
				m.Status = models.StatusFailed
				m.AddError("mission cancelled: %v", err)
				d.persist(context.WithoutCancel(ctx), m)
			}
			return err
		}
		if m.Status.IsTerminal() || WaitsForUser(m) {
			d.persist(ctx, m)
			return nil
		}

		before := m.Status
		if err := d.runStage(ctx, m); err != nil {
			m.Status = models.StatusFailed
			m.AddError("stage %s: %v", before, err)
			d.persist(ctx, m)
			return err
		}
		if m.Status != before {
			if next := m.Status; !before.CanTransition(next) {
				m.Status = models.StatusFailed
				m.AddError("illegal status transition %s -> %s", before, next)
				d.persist(ctx, m)
				return fmt.Errorf("illegal status transition %s -> %s", before, next)
			}
			d.logStage(m)
		}
		d.persist(ctx, m)
	}
}

// WaitsForUser reports whether a mission status needs user input before the
// driver can continue.
func WaitsForUser(m *models.Mission) bool {
	switch m.Status {
	case models.StatusAwaitingApproval:
		return true
	case models.StatusClarifying:
		return len(m.Answers) == 0
	}
	return false
}

// runStage selects and runs the stage for the current status.
func (d *Driver) runStage(ctx context.Context, m *models.Mission) error {
	switch m.Status {
	case models.StatusReceived:
		return d.stageClassify(ctx, m)
	case models.StatusUploading:
		return d.stageUploadContext(ctx, m)
	case models.StatusSpecifying:
		return d.stageSpecify(ctx, m)
	case models.StatusClarifying:
		// Answers arrived; return to specifying.
		m.Status = models.StatusSpecifying
		return nil
	case models.StatusPlanning:
		return d.stagePlan(ctx, m)
	case models.StatusAwaitingApproval:
		return fmt.Errorf("awaiting_approval advances only through Approve")
	case models.StatusExecuting:
		return d.stageExecuteWave(ctx, m)
	default:
		return fmt.Errorf("no stage for status %q", m.Status)
	}
}

// Approve moves an approved mission into execution.
func (d *Driver) Approve(ctx context.Context, m *models.Mission) error {
	if m.Status != models.StatusAwaitingApproval {
		return fmt.Errorf("mission %s is %s, not awaiting approval", m.ID, m.Status)
	}
	m.Status = models.StatusExecuting
	d.persist(ctx, m)
	return nil
}

// Answer records clarifying answers and returns the mission to specifying.
func (d *Driver) Answer(ctx context.Context, m *models.Mission, answers []string) error {
	if m.Status != models.StatusClarifying {
		return fmt.Errorf("mission %s is %s, not clarifying", m.ID, m.Status)
	}
	m.Answers = answers
	m.Status = models.StatusSpecifying
	d.persist(ctx, m)
	return nil
}

func validateMission(m *models.Mission) error {
	if strings.TrimSpace(m.Request) == "" {
		return fmt.Errorf("mission request is empty")
	}
	if m.ProjectPath != "" {
		if _, err := os.Stat(m.ProjectPath); err != nil {
			return fmt.Errorf("project path %q: %w", m.ProjectPath, err)
		}
	}
	return nil
}

func (d *Driver) persist(ctx context.Context, m *models.Mission) {
	if d.store == nil {
		return
	}
	m.UpdatedAt = time.Now().UnixMilli()
	if err := d.store.SaveMission(ctx, m); err != nil {
		d.logWarn(fmt.Sprintf("failed to persist mission %s: %v", m.ID, err))
	}
}

// llmCtx derives a context bounded by the structured-call timeout.
func (d *Driver) llmCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.Timeouts.LLM > 0 {
		return context.WithTimeout(ctx, d.cfg.Timeouts.LLM)
	}
	return context.WithCancel(ctx)
}

func (d *Driver) emit(t events.Type, m *models.Mission, taskID string, payload map[string]string) {
	d.bus.Emit(t, m.ID, taskID, payload)
}

func (d *Driver) logStage(m *models.Mission) {
	if d.log != nil {
		d.log.LogStage(m.ID, m.Status)
	}
}

func (d *Driver) logInfo(msg string) {
	if d.log != nil {
		d.log.LogInfo(msg)
	}
}

func (d *Driver) logWarn(msg string) {
	if d.log != nil {
		d.log.LogWarn(msg)
	}
}

func (d *Driver) logError(msg string) {
	if d.log != nil {
		d.log.LogError(msg)
	}
}
