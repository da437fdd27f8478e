// Package logger provides logging implementations for worldmind mission
// execution.
//
// The logger package offers structured logging of mission progress at the
// stage, wave and task levels. Implementations are thread-safe and support
// various output destinations (console, file).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/calder/worldmind/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is the interface the pipeline driver and wave dispatcher log
// through. Implementations must tolerate concurrent calls; a nil Logger is
// allowed everywhere and disables logging.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogStage(missionID string, status models.MissionStatus)
	LogWaveStart(wave int, taskIDs []string)
	LogWaveComplete(wave int, duration time.Duration, merged, conflicted []string)
	LogTaskResult(result models.WaveResult)
	LogGate(taskID string, granted bool, reason string)
	LogSummary(metrics models.MissionMetrics)
}

// ConsoleLogger logs mission progress to a writer with timestamps and
// thread safety. All output is prefixed with [HH:MM:SS] timestamps. It
// supports log level filtering, and colour output is automatically enabled
// for terminal writers.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded. logLevel
// determines the minimum level for messages to be output; valid levels are
// trace, debug, info, warn, error (case-insensitive), defaulting to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colours.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates
// it, returning "info" for empty or unknown levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogDebug logs a debug-level message.
// Format: "[HH:MM:SS] [DEBUG] <message>"
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// LogStage logs a mission status transition at INFO level.
func (cl *ConsoleLogger) LogStage(missionID string, status models.MissionStatus) {
	cl.logWithLevel("INFO", fmt.Sprintf("mission %s -> %s", missionID, status))
}

// LogWaveStart logs the start of a wave at INFO level.
// Format: "[HH:MM:SS] Starting wave <n>: <count> tasks [ids]"
func (cl *ConsoleLogger) LogWaveStart(wave int, taskIDs []string) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	name := fmt.Sprintf("wave %d", wave)
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
	}
	fmt.Fprintf(cl.writer, "[%s] Starting %s: %d tasks %v\n", timestamp(), name, len(taskIDs), taskIDs)
}

// LogWaveComplete logs the completion of a wave with its merge outcome at
// INFO level.
func (cl *ConsoleLogger) LogWaveComplete(wave int, duration time.Duration, merged, conflicted []string) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	name := fmt.Sprintf("wave %d", wave)
	complete := "complete"
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
		complete = color.New(color.FgGreen).Sprint(complete)
	}
	fmt.Fprintf(cl.writer, "[%s] %s %s (%s) merged=%v conflicted=%v\n",
		timestamp(), name, complete, formatDuration(duration), merged, conflicted)
}

// LogTaskResult logs one task's dispatch outcome at DEBUG level.
// Format: "[HH:MM:SS] Task <id>: <status> (<elapsed>)"
func (cl *ConsoleLogger) LogTaskResult(result models.WaveResult) {
	if cl.writer == nil || !cl.shouldLog("debug") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	status := string(result.Status)
	if cl.colorOutput {
		switch result.Status {
		case models.TaskPassed:
			status = color.New(color.FgGreen).Sprint(status)
		case models.TaskFailed:
			status = color.New(color.FgRed).Sprint(status)
		case models.TaskSkipped:
			status = color.New(color.FgYellow).Sprint(status)
		}
	}
	elapsed := formatDuration(time.Duration(result.ElapsedMS) * time.Millisecond)
	fmt.Fprintf(cl.writer, "[%s] Task %s: %s (%s)\n", timestamp(), result.TaskID, status, elapsed)
}

// LogGate logs a quality gate decision at INFO level.
func (cl *ConsoleLogger) LogGate(taskID string, granted bool, reason string) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	verdict := "granted"
	if !granted {
		verdict = "denied"
	}
	if cl.colorOutput {
		if granted {
			verdict = color.New(color.FgGreen).Sprint(verdict)
		} else {
			verdict = color.New(color.FgRed).Sprint(verdict)
		}
	}
	line := fmt.Sprintf("[%s] Gate %s for %s", timestamp(), verdict, taskID)
	if reason != "" {
		line += ": " + reason
	}
	fmt.Fprintln(cl.writer, line)
}

// LogSummary logs the converged mission metrics at INFO level.
func (cl *ConsoleLogger) LogSummary(metrics models.MissionMetrics) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	fmt.Fprintf(cl.writer,
		"[%s] Summary: %d completed, %d failed, %d waves, %d/%d tests passed, %d files created, %d modified\n",
		timestamp(), metrics.TasksCompleted, metrics.TasksFailed, metrics.WavesExecuted,
		metrics.TestsPassed, metrics.TestsRun, metrics.FilesCreated, metrics.FilesModified)
}

// logWithLevel logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if cl.colorOutput {
		fmt.Fprint(cl.writer, cl.formatWithColor(timestamp(), level, message))
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), level, message)
}

// formatWithColor formats a log message with ANSI colour codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string
	switch level {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}
	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration renders a duration compactly (1.5s, 2m30s, 1h5m).
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		m := int(d.Minutes())
		s := int(d.Seconds()) - m*60
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) - h*60
		return fmt.Sprintf("%dh%dm", h, m)
	}
}

// Ensure ConsoleLogger implements Logger
var _ Logger = (*ConsoleLogger)(nil)
