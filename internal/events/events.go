// Package events provides the best-effort mission event stream. Publishing
// never blocks the pipeline: when the buffer is full the event is dropped.
package events

import (
	"sync"
	"time"
)

// Type identifies the kind of event.
type Type string

const (
	TaskStarted       Type = "task.started"
	TaskPhase         Type = "task.phase"
	TaskFulfilled     Type = "task.fulfilled"
	TaskProgress      Type = "task.progress"
	TaskFailed        Type = "task.failed"
	ContainerOpened   Type = "container.opened"
	QualityGranted    Type = "quality_gate.granted"
	QualityDenied     Type = "quality_gate.denied"
	WaveMerged        Type = "wave.merged"
	WaveCompleted     Type = "wave.completed"
	DeployerSuccess   Type = "deployer.success"
	DeployerFailed    Type = "deployer.failed"
	MissionCompleted  Type = "mission.completed"
)

// Task phase payload values published under the "phase" key.
const (
	PhaseCoder    = "CODER"
	PhaseTester   = "TESTER"
	PhaseReviewer = "REVIEWER"
	PhaseGate     = "QUALITY_GATE"
	PhaseBuild    = "BUILD"
	PhasePush     = "PUSH"
	PhaseVerify   = "VERIFY"
)

// Event is one entry of the append-only mission event log.
type Event struct {
	Type      Type              `json:"type"`
	MissionID string            `json:"missionId"`
	TaskID    string            `json:"taskId,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Bus is a process-local event channel with a single consumer. Ordering is
// preserved per publisher goroutine; within a task, events are published
// from the wave goroutine that owns the task, so task ordering holds.
type Bus struct {
	ch      chan Event
	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewBus creates a bus with the given buffer size. Size zero gets a
// reasonable default.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = 256
	}
	return &Bus{ch: make(chan Event, size)}
}

// Publish appends an event to the stream. It never blocks; events are
// dropped when the consumer lags behind the buffer.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.ch <- evt:
	default:
		b.dropped++
	}
}

// Emit is a convenience wrapper building the event from its parts.
func (b *Bus) Emit(t Type, missionID, taskID string, payload map[string]string) {
	b.Publish(Event{Type: t, MissionID: missionID, TaskID: taskID, Payload: payload})
}

// Events returns the consumer channel. The bus supports exactly one
// consumer.
func (b *Bus) Events() <-chan Event {
	if b == nil {
		return nil
	}
	return b.ch
}

// Dropped reports how many events were discarded because the buffer was
// full.
func (b *Bus) Dropped() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close stops the stream. Publishing after Close is a no-op.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
