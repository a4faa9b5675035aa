package core

import (
	"testing"

	"github.com/neg-0/overwatch-sub002/model"
)

func TestNextStatus_PlannedToBriefedAtThreshold(t *testing.T) {
	next, ok := NextStatus(model.StatusPlanned, -4)
	if !ok || next != model.StatusBriefed {
		t.Fatalf("NextStatus(PLANNED, -4) = (%v, %v), want (BRIEFED, true)", next, ok)
	}
}

func TestNextStatus_PlannedBeforeThresholdHolds(t *testing.T) {
	next, ok := NextStatus(model.StatusPlanned, -5)
	if ok {
		t.Fatalf("NextStatus(PLANNED, -5) = (%v, true), want no transition", next)
	}
	if next != model.StatusPlanned {
		t.Fatalf("unchanged status should be returned, got %v", next)
	}
}

func TestNextStatus_NoStageSkipping(t *testing.T) {
	// Even arbitrarily far past TOT, a PLANNED mission advances one stage
	// per call.
	next, ok := NextStatus(model.StatusPlanned, 10)
	if !ok || next != model.StatusBriefed {
		t.Fatalf("NextStatus(PLANNED, +10) = (%v, %v), want (BRIEFED, true)", next, ok)
	}
}

func TestNextStatus_FullLifecycleWalk(t *testing.T) {
	steps := []struct {
		hours float64
		want  model.MissionStatus
	}{
		{-4, model.StatusBriefed},
		{-2, model.StatusLaunched},
		{-1.5, model.StatusAirborne},
		{-0.5, model.StatusOnStation},
		{0, model.StatusEngaged},
		{0.25, model.StatusEgressing},
		{1, model.StatusRTB},
		{3, model.StatusRecovered},
	}

	status := model.StatusPlanned
	for _, step := range steps {
		next, ok := NextStatus(status, step.hours)
		if !ok {
			t.Fatalf("NextStatus(%v, %v): expected a transition", status, step.hours)
		}
		if next != step.want {
			t.Fatalf("NextStatus(%v, %v) = %v, want %v", status, step.hours, next, step.want)
		}
		status = next
	}
	if status != model.StatusRecovered {
		t.Fatalf("walk ended at %v, want RECOVERED", status)
	}
}

func TestNextStatus_JustBelowThresholdHolds(t *testing.T) {
	cases := []struct {
		status model.MissionStatus
		hours  float64
	}{
		{model.StatusBriefed, -2.01},
		{model.StatusLaunched, -1.51},
		{model.StatusAirborne, -0.51},
		{model.StatusOnStation, -0.01},
		{model.StatusEngaged, 0.24},
		{model.StatusEgressing, 0.99},
		{model.StatusRTB, 2.99},
	}
	for _, tc := range cases {
		if next, ok := NextStatus(tc.status, tc.hours); ok {
			t.Errorf("NextStatus(%v, %v) transitioned to %v, want hold", tc.status, tc.hours, next)
		}
	}
}

func TestNextStatus_TerminalStates(t *testing.T) {
	for _, hours := range []float64{-100, 0, 100} {
		if next, ok := NextStatus(model.StatusRecovered, hours); ok {
			t.Errorf("NextStatus(RECOVERED, %v) = %v, want terminal", hours, next)
		}
	}
	if next, ok := NextStatus(model.MissionStatus("SCRUBBED"), 0); ok {
		t.Errorf("unrecognized status transitioned to %v, want terminal", next)
	}
}
