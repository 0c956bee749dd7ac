package wage

import "github.com/shopspring/decimal"

var sixty = decimal.NewFromInt(60)

// EvaluateRestraintAllowance returns the allowance of the first condition
// whose [MinHours, MaxHours) band contains the restraint hours, or zero when
// the rule is nil, has no conditions, or nothing matches.
//
// Matching is first-match, not best-match. Overlapping bands must be listed
// most specific first, since later bands are never reached once an earlier
// one fires. The comparison is done in minutes so no hours value is rounded.
//
// Both restraint types use the same banded lookup; IncludesBreak is carried
// for callers but restraint minutes always include breaks.
func EvaluateRestraintAllowance(restraintMinutes int, rule *RestraintRule) decimal.Decimal {
	if rule == nil || len(rule.Conditions) == 0 {
		return decimal.Zero
	}

	actual := decimal.NewFromInt(int64(restraintMinutes))
	for _, c := range rule.Conditions {
		if actual.LessThan(c.MinHours.Mul(sixty)) {
			continue
		}
		if c.MaxHours != nil && !actual.LessThan(c.MaxHours.Mul(sixty)) {
			continue
		}
		return c.Allowance
	}
	return decimal.Zero
}

// RestraintHours converts minutes to hours for display, to two decimal places.
func RestraintHours(restraintMinutes int) string {
	return decimal.NewFromInt(int64(restraintMinutes)).Div(sixty).StringFixed(2)
}
