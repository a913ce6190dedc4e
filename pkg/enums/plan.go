package enums

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Plan identifies a premium subscription tier.
type Plan string

const (
	PlanMonthly    Plan = "monthly"
	PlanQuarterly  Plan = "quarterly"
	PlanSemiannual Plan = "semiannual"
	PlanYearly     Plan = "yearly"
	PlanLifetime   Plan = "lifetime"
)

var validPlans = []Plan{
	PlanMonthly,
	PlanQuarterly,
	PlanSemiannual,
	PlanYearly,
	PlanLifetime,
}

// planDays is the authoritative plan->duration table. Lifetime is modeled
// as ~100 years and treated as unbounded for business purposes.
var planDays = map[Plan]int{
	PlanMonthly:    30,
	PlanQuarterly:  90,
	PlanSemiannual: 180,
	PlanYearly:     365,
	PlanLifetime:   36500,
}

// planPrices is the checkout price catalog in currency units.
var planPrices = map[Plan]decimal.Decimal{
	PlanMonthly:    decimal.NewFromFloat(19.90),
	PlanQuarterly:  decimal.NewFromFloat(49.90),
	PlanSemiannual: decimal.NewFromFloat(89.90),
	PlanYearly:     decimal.NewFromFloat(149.90),
	PlanLifetime:   decimal.NewFromFloat(249.90),
}

// String implements fmt.Stringer.
func (p Plan) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Plan.
func (p Plan) IsValid() bool {
	for _, candidate := range validPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// Duration returns the entitlement extension granted by the plan.
func (p Plan) Duration() time.Duration {
	days, ok := planDays[p]
	if !ok {
		days = planDays[PlanMonthly]
	}
	return time.Duration(days) * 24 * time.Hour
}

// Price returns the catalog price for the plan in currency units.
func (p Plan) Price() decimal.Decimal {
	if price, ok := planPrices[p]; ok {
		return price
	}
	return planPrices[PlanMonthly]
}

// ParsePlan converts raw input into a Plan. The legacy "semestral" spelling
// is accepted as an alias for semiannual.
func ParsePlan(value string) (Plan, error) {
	if value == "semestral" {
		return PlanSemiannual, nil
	}
	for _, candidate := range validPlans {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan %q", value)
}

// InferPlanFromAmount maps a charged amount to the tier whose catalog price
// is closest without exceeding the amount (plus a one-cent tolerance). Used
// by the email-fallback path where no intent recorded the plan upfront.
func InferPlanFromAmount(amount decimal.Decimal) Plan {
	tolerance := decimal.New(1, -2)
	inferred := PlanMonthly
	for _, candidate := range validPlans {
		if candidate.Price().Sub(tolerance).LessThanOrEqual(amount) {
			inferred = candidate
		}
	}
	return inferred
}
