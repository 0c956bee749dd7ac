package wage

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// RULE RESOLVER - Exactly one rule per record, or a RuleNotFoundError
// =============================================================================

// Resolver wraps a RuleStore and converts an empty lookup into a typed error.
type Resolver struct {
	Store RuleStore
}

// Resolve returns the rule in force for the triple. It never falls back to
// a default rule.
func (r Resolver) Resolve(ctx context.Context, companyID, vehicleTypeID string, workDate time.Time) (WageRule, error) {
	if r.Store == nil {
		return WageRule{}, ErrStoreRequired
	}
	day := DateOf(workDate)
	rule, err := r.Store.FindApplicableRule(ctx, companyID, vehicleTypeID, day)
	if err != nil {
		return WageRule{}, fmt.Errorf("rule lookup failed: %w", err)
	}
	if rule == nil {
		return WageRule{}, &RuleNotFoundError{
			CompanyID:     companyID,
			VehicleTypeID: vehicleTypeID,
			WorkDate:      day,
		}
	}
	return *rule, nil
}

// SelectApplicableRule applies the resolution rule to an in-memory rule set:
// active, matching company and vehicle type, window containing the date;
// latest EffectiveFrom wins and equal EffectiveFrom falls back to the
// lowest ID so the choice does not depend on slice order.
// Returns nil if nothing matches.
func SelectApplicableRule(rules []WageRule, companyID, vehicleTypeID string, workDate time.Time) *WageRule {
	var best *WageRule
	for i := range rules {
		r := &rules[i]
		if !r.IsActive || r.CompanyID != companyID || r.VehicleTypeID != vehicleTypeID {
			continue
		}
		if !r.Window.Contains(workDate) {
			continue
		}
		if best == nil || preferRule(r, best) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func preferRule(candidate, current *WageRule) bool {
	cf, bf := DateOf(candidate.Window.From), DateOf(current.Window.From)
	if !cf.Equal(bf) {
		return cf.After(bf)
	}
	return candidate.ID < current.ID
}
