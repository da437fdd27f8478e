package dispatch

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/calder/worldmind/internal/gitws"
	"github.com/calder/worldmind/internal/models"
)

type fakeCommandRunner struct {
	lastName string
	lastArgs []string
	output   string
	exitCode int
	err      error
	delay    time.Duration
}

func (f *fakeCommandRunner) Run(ctx context.Context, name string, args ...string) (string, int, error) {
	f.lastName = name
	f.lastArgs = args
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", -1, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.output, f.exitCode, f.err
}

type fakeGit struct{ stat string }

func (f *fakeGit) Run(_ context.Context, _ string, args ...string) (string, error) {
	if slices.Contains(args, "diff") {
		return f.stat, nil
	}
	return "", nil
}

func coderRequest() Request {
	return Request{
		Task: models.Task{
			ID:          "TASK-002",
			Role:        models.RoleCoder,
			Description: "Add GET /health",
			TargetFiles: []string{"src/health.go"},
		},
		ProjectPath:    "/tmp/project",
		GitRemote:      "git@example.com:acme/app.git",
		RuntimeTag:     "go",
		ReasoningLevel: "medium",
	}
}

func TestLocalDispatcherBuildArgs(t *testing.T) {
	d := NewLocalDispatcher("worldmind/worker:latest", "worldmind-net", time.Minute)
	args := d.BuildArgs(coderRequest(), "worldmind-task-002-1")

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"run --rm",
		"-v /tmp/project:/workspace",
		"--network worldmind-net",
		"WORLDMIND_TASK_ID=TASK-002",
		"WORLDMIND_ROLE=coder",
		"WORLDMIND_RUNTIME=go",
		"worldmind/worker:latest",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}

	prompt := args[len(args)-1]
	if !strings.Contains(prompt, "Target Files (REQUIRED)") || !strings.Contains(prompt, "src/health.go") {
		t.Errorf("prompt missing target files section: %s", prompt)
	}
}

func TestLocalDispatcherObservesStatusAndFiles(t *testing.T) {
	runner := &fakeCommandRunner{output: `{"status":"passed","summary":"done"}`}
	d := NewLocalDispatcher("img", "", 0)
	d.Runner = runner
	d.Git = &fakeGit{stat: " src/health.go | 12 ++++\n create mode 100644 src/health.go\n"}

	res, err := d.Execute(context.Background(), coderRequest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Task.Status != models.TaskPassed {
		t.Errorf("status = %s, want passed", res.Task.Status)
	}
	if len(res.Task.FilesAffected) != 1 || res.Task.FilesAffected[0].Action != models.FileCreated {
		t.Errorf("files affected = %+v", res.Task.FilesAffected)
	}
	if res.Container.TaskID != "TASK-002" {
		t.Errorf("container task id = %q", res.Container.TaskID)
	}
	if res.Container.StartedAt == 0 || res.Container.CompletedAt < res.Container.StartedAt {
		t.Errorf("container timestamps = %+v", res.Container)
	}
}

func TestLocalDispatcherWorkerFailureIsOutcomeNotError(t *testing.T) {
	runner := &fakeCommandRunner{output: "compile error", exitCode: 1}
	d := NewLocalDispatcher("img", "", 0)
	d.Runner = runner
	d.Git = &fakeGit{}

	res, err := d.Execute(context.Background(), coderRequest())
	if err != nil {
		t.Fatalf("worker failure must not be an error: %v", err)
	}
	if res.Task.Status != models.TaskFailed {
		t.Errorf("status = %s, want failed", res.Task.Status)
	}
	if res.Output != "compile error" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestLocalDispatcherTimeoutIsFailureNotError(t *testing.T) {
	runner := &fakeCommandRunner{delay: 200 * time.Millisecond}
	d := NewLocalDispatcher("img", "", 20*time.Millisecond)
	d.Runner = runner
	d.Git = &fakeGit{}

	res, err := d.Execute(context.Background(), coderRequest())
	if err != nil {
		t.Fatalf("timeout must surface as dispatch failure, got error: %v", err)
	}
	if res.Task.Status != models.TaskFailed {
		t.Errorf("status = %s, want failed", res.Task.Status)
	}
	if !strings.Contains(res.Output, "timed out") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestObservedStatus(t *testing.T) {
	cases := []struct {
		output   string
		exitCode int
		want     models.TaskStatus
	}{
		{`{"status":"passed"}`, 1, models.TaskPassed},
		{`{"status":"failed"}`, 0, models.TaskFailed},
		{`not json at all`, 0, models.TaskPassed},
		{`not json at all`, 2, models.TaskFailed},
		{`{"status":"success"}`, 1, models.TaskPassed},
	}
	for _, tc := range cases {
		if got := observedStatus(tc.output, tc.exitCode); got != tc.want {
			t.Errorf("observedStatus(%q, %d) = %s, want %s", tc.output, tc.exitCode, got, tc.want)
		}
	}
}

func TestRemoteDispatcherBuildArgs(t *testing.T) {
	d := NewRemoteDispatcher("/usr/local/bin/taskrun", "img", time.Minute, nil)
	args := d.BuildArgs(coderRequest())

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"submit --wait",
		"--task-id TASK-002",
		"--branch " + gitws.TaskBranch("TASK-002"),
		"--remote git@example.com:acme/app.git",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestRemoteDispatcherRequiresRemote(t *testing.T) {
	d := NewRemoteDispatcher("taskrun", "img", 0, nil)
	req := coderRequest()
	req.GitRemote = ""
	if _, err := d.Execute(context.Background(), req); err == nil {
		t.Fatal("missing remote accepted")
	}
}
