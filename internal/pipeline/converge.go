package pipeline

import (
	"context"
	"fmt"

	"github.com/calder/worldmind/internal/events"
	"github.com/calder/worldmind/internal/models"
)

// converge computes the mission metrics and derives the final status. It
// runs both after a clean empty wave and after an escalation, so a failed
// mission still gets metrics and a mission.completed event.
func (d *Driver) converge(_ context.Context, m *models.Mission) error {
	m.Metrics = ComputeMetrics(m)

	if m.Status != models.StatusFailed {
		if m.Metrics.TasksCompleted > 0 || len(m.Tasks) == 0 {
			m.Status = models.StatusCompleted
		} else {
			m.AddError("no task completed")
			m.Status = models.StatusFailed
		}
	}

	d.emit(events.MissionCompleted, m, "", map[string]string{
		"status": string(m.Status),
		"waves":  fmt.Sprintf("%d", m.Metrics.WavesExecuted),
	})
	if d.log != nil {
		d.log.LogSummary(*m.Metrics)
	}
	return nil
}

// ComputeMetrics aggregates execution measurements from the mission record.
// Total duration sums container lifetimes (not their span): parallel waves
// report the compute spent, not the wall clock.
func ComputeMetrics(m *models.Mission) *models.MissionMetrics {
	metrics := &models.MissionMetrics{WavesExecuted: m.Wave}

	for _, task := range m.Tasks {
		switch task.Status {
		case models.TaskPassed, models.TaskSkipped:
			metrics.TasksCompleted++
		case models.TaskFailed:
			metrics.TasksFailed++
		}
		metrics.TotalIterations += task.Iteration
		metrics.AggregateTaskMS += task.ElapsedMS
		for _, fc := range task.FilesAffected {
			switch fc.Action {
			case models.FileCreated:
				metrics.FilesCreated++
			case models.FileModified:
				metrics.FilesModified++
			}
		}
	}

	for _, tr := range m.TestResults {
		metrics.TestsRun += tr.TotalTests
		metrics.TestsPassed += tr.TotalTests - tr.FailedTests
	}

	for _, c := range m.Containers {
		if c.CompletedAt > c.StartedAt {
			metrics.TotalDurationMS += c.CompletedAt - c.StartedAt
		}
	}
	return metrics
}
