package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/calder/worldmind/internal/models"
)

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "warn")

	cl.LogDebug("hidden")
	cl.LogInfo("hidden too")
	cl.LogWarn("shown")
	cl.LogError("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below warn level were logged: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "also shown") {
		t.Errorf("warn/error messages missing: %s", out)
	}
}

func TestConsoleLoggerDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "bogus")

	cl.LogDebug("debug line")
	cl.LogInfo("info line")

	out := buf.String()
	if strings.Contains(out, "debug line") {
		t.Error("debug logged at default info level")
	}
	if !strings.Contains(out, "info line") {
		t.Error("info not logged at default level")
	}
}

func TestConsoleLoggerNilWriter(t *testing.T) {
	cl := NewConsoleLogger(nil, "info")
	// Must not panic.
	cl.LogInfo("x")
	cl.LogWaveStart(1, []string{"TASK-001"})
	cl.LogTaskResult(models.WaveResult{TaskID: "TASK-001", Status: models.TaskPassed})
	cl.LogGate("TASK-001", true, "")
	cl.LogSummary(models.MissionMetrics{})
}

func TestConsoleLoggerWaveAndGateOutput(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "debug")

	cl.LogWaveStart(2, []string{"TASK-002", "TASK-003"})
	cl.LogTaskResult(models.WaveResult{TaskID: "TASK-002", Status: models.TaskPassed, ElapsedMS: 1500})
	cl.LogGate("TASK-002", false, "tests failed")
	cl.LogWaveComplete(2, 3*time.Second, []string{"TASK-002"}, nil)

	out := buf.String()
	for _, want := range []string{"Starting wave 2: 2 tasks", "Task TASK-002: passed", "Gate denied for TASK-002: tests failed", "wave 2 complete"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFileLoggerWritesAndSymlinks(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "abc123", "debug")
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	fl.LogStage("abc123", models.StatusExecuting)
	fl.LogWaveStart(1, []string{"TASK-001"})
	fl.LogGate("TASK-001", true, "")
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(fl.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	body := string(data)
	for _, want := range []string{"Worldmind Mission Log", "mission abc123 -> executing", "Starting wave 1", "Gate granted for TASK-001"} {
		if !strings.Contains(body, want) {
			t.Errorf("log missing %q:\n%s", want, body)
		}
	}

	link, err := os.Readlink(filepath.Join(dir, "latest.log"))
	if err != nil {
		t.Fatalf("latest.log symlink: %v", err)
	}
	if link != filepath.Base(fl.Path()) {
		t.Errorf("latest.log -> %q, want %q", link, filepath.Base(fl.Path()))
	}
}

func TestFileLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "m1", "error")
	if err != nil {
		t.Fatal(err)
	}
	fl.LogInfo("quiet")
	fl.LogError("loud")
	fl.Close()

	data, _ := os.ReadFile(fl.Path())
	if strings.Contains(string(data), "quiet") {
		t.Error("info message logged at error level")
	}
	if !strings.Contains(string(data), "loud") {
		t.Error("error message not logged")
	}
}
