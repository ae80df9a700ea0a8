package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/questionbank/internal/data/aggregates"
)

// HooksRecorder captures engine hook signals in tests.
type HooksRecorder struct {
	mu sync.Mutex

	Operations []OperationEvent
	Violations []string
	IOFailures []string
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{
		Name:     name,
		Status:   status,
		Duration: dur,
	})
}

func (h *HooksRecorder) IncConstraintViolation(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Violations = append(h.Violations, name)
}

func (h *HooksRecorder) IncIOFailure(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.IOFailures = append(h.IOFailures, name)
}

// Last returns the most recent operation event for name.
func (h *HooksRecorder) Last(name string) (OperationEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.Operations) - 1; i >= 0; i-- {
		if h.Operations[i].Name == name {
			return h.Operations[i], true
		}
	}
	return OperationEvent{}, false
}
