package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder/worldmind/internal/events"
	"github.com/calder/worldmind/internal/models"
	"github.com/calder/worldmind/internal/store"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "worldmind", root.Use)

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[strings.Fields(sub.Use)[0]] = true
	}
	for _, want := range []string{"run", "answer", "approve", "status", "list", "events", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

// writeTestConfig points the store at a per-test database.
func writeTestConfig(t *testing.T) (configPath, storePath string) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	storePath = filepath.Join(dir, "missions.db")
	body := fmt.Sprintf("store_path: %s\nlog_dir: %s\n", storePath, filepath.Join(dir, "logs"))
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))
	return configPath, storePath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestListCommandEmpty(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	out, err := execute(t, "list", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No missions recorded.")
}

func TestListCommandShowsMissions(t *testing.T) {
	configPath, storePath := writeTestConfig(t)

	st, err := store.Open(storePath)
	require.NoError(t, err)
	m := models.NewMission("add a GET /health endpoint", "", "")
	m.Status = models.StatusCompleted
	require.NoError(t, st.SaveMission(context.Background(), m))
	st.Close()

	out, err := execute(t, "list", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, m.ID)
	assert.Contains(t, out, "add a GET /health endpoint")
}

func TestStatusCommand(t *testing.T) {
	configPath, storePath := writeTestConfig(t)

	st, err := store.Open(storePath)
	require.NoError(t, err)
	m := models.NewMission("fix the login redirect loop", "", "")
	m.Status = models.StatusExecuting
	m.Tasks = []models.Task{{
		ID: "TASK-001", Role: models.RoleCoder, Description: "patch the redirect",
		Status: models.TaskExecuting, Iteration: 1,
	}}
	m.Errors = []string{"wave 1: transient failure"}
	require.NoError(t, st.SaveMission(context.Background(), m))
	st.Close()

	out, err := execute(t, "status", m.ID, "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "fix the login redirect loop")
	assert.Contains(t, out, "TASK-001")
	assert.Contains(t, out, "patch the redirect")
	assert.Contains(t, out, "(attempt 2)")
	assert.Contains(t, out, "wave 1: transient failure")
}

func TestStatusCommandUnknownMission(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	_, err := execute(t, "status", "nope", "--config", configPath)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEventsCommand(t *testing.T) {
	configPath, storePath := writeTestConfig(t)

	st, err := store.Open(storePath)
	require.NoError(t, err)
	ctx := context.Background()
	for _, evt := range []events.Event{
		{Type: events.TaskStarted, MissionID: "m1", TaskID: "TASK-001", Timestamp: 1000},
		{Type: events.QualityGranted, MissionID: "m1", TaskID: "TASK-001", Timestamp: 2000,
			Payload: map[string]string{"score": "8"}},
	} {
		require.NoError(t, st.AppendEvent(ctx, evt))
	}
	st.Close()

	out, err := execute(t, "events", "m1", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "task.started")
	assert.Contains(t, out, "quality_gate.granted")
	assert.Contains(t, out, "score=8")
}

func TestFormatPayload(t *testing.T) {
	assert.Equal(t, "a=1 b=2", formatPayload(map[string]string{"b": "2", "a": "1"}))
	assert.Equal(t, "", formatPayload(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 60))

	got := truncate(strings.Repeat("x", 80), 60)
	assert.Len(t, got, 60)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestReportStopClarifying(t *testing.T) {
	m := models.NewMission("migrate the session store", "", "")
	m.Status = models.StatusClarifying
	m.Questions = []string{"Which Redis deployment should sessions use?"}

	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	reportStop(root, m)

	assert.Contains(t, buf.String(), "Which Redis deployment")
	assert.Contains(t, buf.String(), "worldmind answer "+m.ID)
}

func TestReportStopAwaitingApproval(t *testing.T) {
	m := models.NewMission("rename the billing module", "", "")
	m.Status = models.StatusAwaitingApproval
	m.Strategy = models.StrategyParallel
	m.Tasks = []models.Task{
		{ID: "TASK-001", Role: models.RoleCoder, Description: "rename the package"},
		{ID: "TASK-002", Role: models.RoleReviewer, Description: "review the rename", DependsOn: []string{"TASK-001"}},
	}

	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	reportStop(root, m)

	assert.Contains(t, buf.String(), "after TASK-001")
	assert.Contains(t, buf.String(), "worldmind approve "+m.ID)
}
