package testutil

import (
	"testing"
	"time"
)

func TestHooksRecorder_CapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("question.save", "success", 10*time.Millisecond)
	h.ObserveOperation("question.save", "constraint_violation", time.Millisecond)
	h.IncConstraintViolation("question.save")
	h.IncIOFailure("question.delete")

	if len(h.Operations) != 2 {
		t.Fatalf("expected 2 op events, got %d", len(h.Operations))
	}
	last, ok := h.Last("question.save")
	if !ok || last.Status != "constraint_violation" {
		t.Fatalf("unexpected last event: %+v ok=%v", last, ok)
	}
	if _, ok := h.Last("question.fetch"); ok {
		t.Fatalf("no fetch event was recorded")
	}
	if len(h.Violations) != 1 || h.Violations[0] != "question.save" {
		t.Fatalf("unexpected violations: %+v", h.Violations)
	}
	if len(h.IOFailures) != 1 || h.IOFailures[0] != "question.delete" {
		t.Fatalf("unexpected io failures: %+v", h.IOFailures)
	}
}
