package gate

import (
	"strings"
	"sync"
)

// historyWindow bounds the per-task failure history.
const historyWindow = 5

// repeatLimit is how many identical fingerprints within the window count as
// oscillation.
const repeatLimit = 3

// Detector tracks per-task failure reasons and reports oscillation: the
// same failure fingerprint recurring, which retrying will not fix.
type Detector struct {
	mu      sync.Mutex
	history map[string][]string
}

// NewDetector creates an empty detector.
func NewDetector() *Detector {
	return &Detector{history: make(map[string][]string)}
}

// fingerprint normalises a failure reason for comparison.
func fingerprint(reason string) string {
	return strings.ToLower(strings.TrimSpace(reason))
}

// Record appends a failure reason to the task's history, keeping the last
// historyWindow entries.
func (d *Detector) Record(taskID, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := append(d.history[taskID], fingerprint(reason))
	if len(h) > historyWindow {
		h = h[len(h)-historyWindow:]
	}
	d.history[taskID] = h
}

// IsOscillating reports whether the task's recent failures repeat: the most
// recent two reasons identical, or the same fingerprint seen repeatLimit
// times within the window.
func (d *Detector) IsOscillating(taskID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.history[taskID]
	if len(h) >= 2 && h[len(h)-1] == h[len(h)-2] {
		return true
	}

	counts := make(map[string]int, len(h))
	for _, fp := range h {
		counts[fp]++
		if counts[fp] >= repeatLimit {
			return true
		}
	}
	return false
}

// Forget clears a task's history, for use after a successful pass.
func (d *Detector) Forget(taskID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, taskID)
}
