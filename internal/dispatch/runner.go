package dispatch

import (
	"context"
	"os/exec"
	"time"
)

// CommandRunner executes a worker process and captures its output.
// Injectable for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (output string, exitCode int, err error)
}

// ExecCommandRunner runs commands via os/exec.
type ExecCommandRunner struct{}

// Run executes the command, returning combined output and the exit code.
// A non-zero exit is reported through exitCode, not err; err is reserved
// for failures to run the command at all.
func (ExecCommandRunner) Run(ctx context.Context, name string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(output), exitErr.ExitCode(), nil
		}
		return string(output), -1, err
	}
	return string(output), 0, nil
}

// nowMillis is indirected for tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }
