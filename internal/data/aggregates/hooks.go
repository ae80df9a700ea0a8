package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/questionbank/internal/observability"
)

// Hooks captures engine-level observability events.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConstraintViolation(name string)
	IncIOFailure(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConstraintViolation(string)                  {}
func (noopHooks) IncIOFailure(string)                            {}

type observabilityHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks creates engine hooks backed by observability metrics.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return &observabilityHooks{metrics: metrics}
}

func (h *observabilityHooks) ObserveOperation(name, status string, dur time.Duration) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.ObserveOperation(strings.TrimSpace(name), strings.TrimSpace(status), dur)
}

func (h *observabilityHooks) IncConstraintViolation(name string) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.IncConstraintViolation(strings.TrimSpace(name))
}

func (h *observabilityHooks) IncIOFailure(name string) {
	if h == nil || h.metrics == nil {
		return
	}
	h.metrics.IncIOFailure(strings.TrimSpace(name))
}
