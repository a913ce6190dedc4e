package enums

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPlanDurations(t *testing.T) {
	cases := map[Plan]time.Duration{
		PlanMonthly:    30 * 24 * time.Hour,
		PlanQuarterly:  90 * 24 * time.Hour,
		PlanSemiannual: 180 * 24 * time.Hour,
		PlanYearly:     365 * 24 * time.Hour,
		PlanLifetime:   36500 * 24 * time.Hour,
	}
	for plan, want := range cases {
		if got := plan.Duration(); got != want {
			t.Fatalf("plan %s: expected %s, got %s", plan, want, got)
		}
	}
}

func TestUnknownPlanDurationDefaultsToMonthly(t *testing.T) {
	if got := Plan("legacy").Duration(); got != 30*24*time.Hour {
		t.Fatalf("expected monthly fallback, got %s", got)
	}
}

func TestParsePlanAcceptsSemestralAlias(t *testing.T) {
	plan, err := ParsePlan("semestral")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan != PlanSemiannual {
		t.Fatalf("expected semiannual, got %s", plan)
	}
}

func TestParsePlanRejectsUnknown(t *testing.T) {
	if _, err := ParsePlan("weekly"); err == nil {
		t.Fatalf("expected error for unknown plan")
	}
}

func TestInferPlanFromAmount(t *testing.T) {
	cases := map[string]Plan{
		"19.90":  PlanMonthly,
		"19.89":  PlanMonthly, // one cent under, within tolerance
		"25.00":  PlanMonthly,
		"49.90":  PlanQuarterly,
		"89.90":  PlanSemiannual,
		"100.00": PlanSemiannual,
		"149.90": PlanYearly,
		"249.90": PlanLifetime,
		"500.00": PlanLifetime,
		"5.00":   PlanMonthly, // below catalog floor
	}
	for amount, want := range cases {
		if got := InferPlanFromAmount(decimal.RequireFromString(amount)); got != want {
			t.Fatalf("amount %s: expected %s, got %s", amount, want, got)
		}
	}
}
