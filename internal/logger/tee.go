package logger

import (
	"time"

	"github.com/calder/worldmind/internal/models"
)

// tee fans every log call out to multiple loggers.
type tee struct {
	targets []Logger
}

// Tee combines loggers into one. Nil entries are skipped; with zero or one
// non-nil targets the result collapses accordingly.
func Tee(loggers ...Logger) Logger {
	var targets []Logger
	for _, l := range loggers {
		if l != nil {
			targets = append(targets, l)
		}
	}
	switch len(targets) {
	case 0:
		return nil
	case 1:
		return targets[0]
	}
	return &tee{targets: targets}
}

func (t *tee) LogDebug(message string) {
	for _, l := range t.targets {
		l.LogDebug(message)
	}
}

func (t *tee) LogInfo(message string) {
	for _, l := range t.targets {
		l.LogInfo(message)
	}
}

func (t *tee) LogWarn(message string) {
	for _, l := range t.targets {
		l.LogWarn(message)
	}
}

func (t *tee) LogError(message string) {
	for _, l := range t.targets {
		l.LogError(message)
	}
}

func (t *tee) LogStage(missionID string, status models.MissionStatus) {
	for _, l := range t.targets {
		l.LogStage(missionID, status)
	}
}

func (t *tee) LogWaveStart(wave int, taskIDs []string) {
	for _, l := range t.targets {
		l.LogWaveStart(wave, taskIDs)
	}
}

func (t *tee) LogWaveComplete(wave int, duration time.Duration, merged, conflicted []string) {
	for _, l := range t.targets {
		l.LogWaveComplete(wave, duration, merged, conflicted)
	}
}

func (t *tee) LogTaskResult(result models.WaveResult) {
	for _, l := range t.targets {
		l.LogTaskResult(result)
	}
}

func (t *tee) LogGate(taskID string, granted bool, reason string) {
	for _, l := range t.targets {
		l.LogGate(taskID, granted, reason)
	}
}

func (t *tee) LogSummary(metrics models.MissionMetrics) {
	for _, l := range t.targets {
		l.LogSummary(metrics)
	}
}
