package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calder/worldmind/internal/config"
	"github.com/calder/worldmind/internal/dispatch"
	"github.com/calder/worldmind/internal/events"
	"github.com/calder/worldmind/internal/gitws"
	"github.com/calder/worldmind/internal/llm"
	"github.com/calder/worldmind/internal/logger"
	"github.com/calder/worldmind/internal/models"
	"github.com/calder/worldmind/internal/pipeline"
	"github.com/calder/worldmind/internal/store"
)

// loadConfigFromFlags loads the config file named by --config, falling back
// to the default path. A missing file yields defaults.
func loadConfigFromFlags(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = DefaultConfigPath
	}
	return config.LoadConfig(path)
}

// missionRuntime bundles the collaborators of one mission run: the event
// bus with its store consumer, the loggers, the dispatcher and the driver.
type missionRuntime struct {
	driver   *pipeline.Driver
	bus      *events.Bus
	fileLog  *logger.FileLogger
	consumed chan struct{}
}

// newMissionRuntime wires a pipeline driver for the mission. The store
// consumer goroutine runs until close().
func newMissionRuntime(cfg *config.Config, st *store.Store, m *models.Mission) (*missionRuntime, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	caller, err := llm.NewAnthropicCallerFromAPIKey(apiKey, cfg.LLM.Model, cfg.LLM.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("configure LLM caller: %w", err)
	}

	var ws *gitws.Workspace
	if m.GitRemote != "" {
		ws = gitws.NewWorkspace(nil, filepath.Join(".worldmind", "workspace", m.ID), m.GitRemote)
	}

	var dispatcher dispatch.Dispatcher
	switch cfg.Dispatcher.Provider {
	case "remote":
		if ws == nil {
			return nil, fmt.Errorf("remote dispatch requires a git remote")
		}
		dispatcher = dispatch.NewRemoteDispatcher(cfg.Dispatcher.RunnerPath, cfg.Dispatcher.Image, cfg.Timeouts.Task, ws)
	default:
		dispatcher = dispatch.NewLocalDispatcher(cfg.Dispatcher.Image, cfg.Dispatcher.Network, cfg.Timeouts.Task)
	}

	fileLog, err := logger.NewFileLogger(cfg.LogDir, m.ID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("open mission log: %w", err)
	}
	log := logger.Tee(logger.NewConsoleLogger(os.Stdout, cfg.LogLevel), fileLog)

	bus := events.NewBus(0)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		// The consumer outlives run cancellation so the tail of the stream
		// still reaches the store.
		st.Consume(context.Background(), bus)
	}()

	driver, err := pipeline.NewDriver(pipeline.Options{
		Config:     cfg,
		Caller:     caller,
		Dispatcher: dispatcher,
		Workspace:  ws,
		Bus:        bus,
		Logger:     log,
		Store:      st,
	})
	if err != nil {
		bus.Close()
		<-consumed
		fileLog.Close()
		return nil, err
	}

	return &missionRuntime{
		driver:   driver,
		bus:      bus,
		fileLog:  fileLog,
		consumed: consumed,
	}, nil
}

// close drains the event stream into the store and releases the log file.
func (rt *missionRuntime) close() {
	rt.bus.Close()
	<-rt.consumed
	rt.fileLog.Close()
}

// reportStop tells the user why the run stopped and what to do next.
func reportStop(cmd *cobra.Command, m *models.Mission) {
	out := cmd.OutOrStdout()

	switch m.Status {
	case models.StatusClarifying:
		fmt.Fprintf(out, "\nMission %s needs answers before a spec can be written:\n", m.ID)
		for i, q := range m.Questions {
			fmt.Fprintf(out, "  %d. %s\n", i+1, q)
		}
		fmt.Fprintf(out, "\nAnswer with:\n  worldmind answer %s \"<answer 1>\" ...\n", m.ID)

	case models.StatusAwaitingApproval:
		fmt.Fprintf(out, "\nMission %s planned %d task(s) (%s):\n", m.ID, len(m.Tasks), m.Strategy)
		for _, task := range m.Tasks {
			deps := ""
			if len(task.DependsOn) > 0 {
				deps = " after " + strings.Join(task.DependsOn, ", ")
			}
			fmt.Fprintf(out, "  %s  %-10s %s%s\n", task.ID, task.Role, task.Description, deps)
		}
		fmt.Fprintf(out, "\nApprove with:\n  worldmind approve %s\n", m.ID)

	case models.StatusCompleted:
		fmt.Fprintf(out, "\nMission %s completed.\n", m.ID)
		if m.Metrics != nil {
			fmt.Fprintf(out, "  %d task(s) in %d wave(s), %d file(s) created, %d modified\n",
				m.Metrics.TasksCompleted, m.Metrics.WavesExecuted,
				m.Metrics.FilesCreated, m.Metrics.FilesModified)
		}

	case models.StatusFailed:
		fmt.Fprintf(out, "\nMission %s failed.\n", m.ID)
		for _, e := range m.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
}
