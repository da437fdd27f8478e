package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/calder/worldmind/internal/models"
)

// FileLogger logs mission events to files under the configured log
// directory. It creates one timestamped log file per mission and maintains a
// latest.log symlink pointing to the most recent mission log. It is
// thread-safe and implements the Logger interface.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing under logDir with the given
// level. The directory is created if missing.
func NewFileLogger(logDir, missionID, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	ts := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("mission-%s-%s.log", missionID, ts))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create mission log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.write(fmt.Sprintf("=== Worldmind Mission Log (%s) ===\n", missionID))
	fl.write(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// Path returns the mission log file path.
func (fl *FileLogger) Path() string {
	return fl.runFile
}

// Close flushes and closes the underlying file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return nil
	}
	err := fl.runLog.Close()
	fl.runLog = nil
	return err
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) write(line string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return
	}
	fl.runLog.WriteString(line)
}

func (fl *FileLogger) logWithLevel(level, messageLevel, message string) {
	if !fl.shouldLog(messageLevel) {
		return
	}
	fl.write(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", "debug", message) }

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) { fl.logWithLevel("INFO", "info", message) }

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) { fl.logWithLevel("WARN", "warn", message) }

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", "error", message) }

// LogStage logs a mission status transition.
func (fl *FileLogger) LogStage(missionID string, status models.MissionStatus) {
	fl.logWithLevel("INFO", "info", fmt.Sprintf("mission %s -> %s", missionID, status))
}

// LogWaveStart logs the start of a wave.
func (fl *FileLogger) LogWaveStart(wave int, taskIDs []string) {
	if !fl.shouldLog("info") {
		return
	}
	fl.write(fmt.Sprintf("[%s] Starting wave %d: %d tasks %v\n", timestamp(), wave, len(taskIDs), taskIDs))
}

// LogWaveComplete logs the completion of a wave and its merge outcome.
func (fl *FileLogger) LogWaveComplete(wave int, duration time.Duration, merged, conflicted []string) {
	if !fl.shouldLog("info") {
		return
	}
	fl.write(fmt.Sprintf("[%s] wave %d complete (%s) merged=%v conflicted=%v\n",
		timestamp(), wave, formatDuration(duration), merged, conflicted))
}

// LogTaskResult logs one task's dispatch outcome.
func (fl *FileLogger) LogTaskResult(result models.WaveResult) {
	if !fl.shouldLog("debug") {
		return
	}
	elapsed := formatDuration(time.Duration(result.ElapsedMS) * time.Millisecond)
	fl.write(fmt.Sprintf("[%s] Task %s: %s (%s)\n", timestamp(), result.TaskID, result.Status, elapsed))
}

// LogGate logs a quality gate decision.
func (fl *FileLogger) LogGate(taskID string, granted bool, reason string) {
	if !fl.shouldLog("info") {
		return
	}
	verdict := "granted"
	if !granted {
		verdict = "denied"
	}
	line := fmt.Sprintf("[%s] Gate %s for %s", timestamp(), verdict, taskID)
	if reason != "" {
		line += ": " + reason
	}
	fl.write(line + "\n")
}

// LogSummary logs the converged mission metrics.
func (fl *FileLogger) LogSummary(metrics models.MissionMetrics) {
	if !fl.shouldLog("info") {
		return
	}
	fl.write(fmt.Sprintf(
		"[%s] Summary: %d completed, %d failed, %d waves, %d/%d tests passed\n",
		timestamp(), metrics.TasksCompleted, metrics.TasksFailed, metrics.WavesExecuted,
		metrics.TestsPassed, metrics.TestsRun))
}

// Ensure FileLogger implements Logger
var _ Logger = (*FileLogger)(nil)
