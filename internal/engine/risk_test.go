package engine

import (
	"testing"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

func TestRunwayDays(t *testing.T) {
	cases := []struct {
		available int64
		burn      int64
		want      int
	}{
		{100_000, 10_000, 10},
		{100_000, 30_000, 3},
		{0, 10_000, 0},
		{-5_000, 10_000, 0},     // negative funds never yield negative runway
		{100_000, 0, RunwayUnconstrained},
		{0, 0, RunwayUnconstrained},
	}
	for i, tc := range cases {
		if got := RunwayDays(tc.available, tc.burn); got != tc.want {
			t.Fatalf("case %d: expected %d, got %d", i, tc.want, got)
		}
	}
}

func TestClassifyRisk(t *testing.T) {
	cases := []struct {
		available int64
		runway    int
		want      core.RiskLevel
	}{
		{-1, 100, core.RiskCritical}, // shortfall dominates everything
		{0, 0, core.RiskDanger},
		{1_000, 2, core.RiskDanger},
		{1_000, 3, core.RiskWarning},
		{1_000, 6, core.RiskWarning},
		{1_000, 7, core.RiskCaution},
		{1_000, 13, core.RiskCaution},
		{1_000, 14, core.RiskSafe},
		{1_000, RunwayUnconstrained, core.RiskSafe},
	}
	for i, tc := range cases {
		if got := ClassifyRisk(tc.available, tc.runway); got != tc.want {
			t.Fatalf("case %d: expected %s, got %s", i, tc.want, got)
		}
	}
}
