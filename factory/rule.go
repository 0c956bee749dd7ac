/*
Package factory provides JSON to Go wage rule conversion.

PURPOSE:
  Converts JSON rule and company policy definitions into wage.WageRule and
  wage.CompanyPolicy values, validating them on the way in. Stores keep the
  company restraint rule as JSON using the same schema, and the HTTP API
  accepts it verbatim.

JSON SCHEMA (rule):
  {
    "id": "rule-a-4t-2024",
    "company_id": "co-a",
    "vehicle_type_id": "4t",
    "base_daily_wage": "11000",
    "base_hours": "8",
    "overtime_rate_normal": "1500",
    "overtime_rate_late": "1875",
    "overtime_rate_holiday": null,
    "effective_from": "2024-01-01",
    "effective_to": null,
    "is_active": true
  }

JSON SCHEMA (company policy):
  {
    "company_id": "co-a",
    "overtime_unit": 15,
    "rounding_method": "floor",
    "restraint_rule": {
      "type": "threshold",
      "includes_break": true,
      "conditions": [
        {"min_hours": 0,  "max_hours": 12,   "allowance": 0},
        {"min_hours": 12, "max_hours": 14,   "allowance": 500},
        {"min_hours": 14, "max_hours": null, "allowance": 1200}
      ]
    }
  }

  Decimal fields accept JSON numbers or strings. Rules without an id are
  given a random UUID. is_active defaults to true.

SEE ALSO:
  - wage/types.go: Domain types
  - api/handlers.go: Accepts these documents
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a wage rule.
type RuleJSON struct {
	ID                  string              `json:"id"`
	CompanyID           string              `json:"company_id"`
	VehicleTypeID       string              `json:"vehicle_type_id"`
	BaseDailyWage       decimal.Decimal     `json:"base_daily_wage"`
	BaseHours           decimal.Decimal     `json:"base_hours"`
	OvertimeRateNormal  decimal.NullDecimal `json:"overtime_rate_normal"`
	OvertimeRateLate    decimal.NullDecimal `json:"overtime_rate_late"`
	OvertimeRateHoliday decimal.NullDecimal `json:"overtime_rate_holiday"`
	EffectiveFrom       string              `json:"effective_from"`
	EffectiveTo         *string             `json:"effective_to"`
	IsActive            *bool               `json:"is_active,omitempty"`
	Company             *CompanyPolicyJSON  `json:"company,omitempty"`
}

// CompanyPolicyJSON is the JSON representation of a company policy.
type CompanyPolicyJSON struct {
	CompanyID      string             `json:"company_id"`
	OvertimeUnit   int                `json:"overtime_unit"`
	RoundingMethod string             `json:"rounding_method"`
	RestraintRule  *RestraintRuleJSON `json:"restraint_rule"`
}

// RestraintRuleJSON represents a restraint allowance table.
type RestraintRuleJSON struct {
	Type          string                   `json:"type"` // threshold, hourly
	Conditions    []RestraintConditionJSON `json:"conditions"`
	IncludesBreak bool                     `json:"includes_break"`
}

// RestraintConditionJSON is one band of the allowance table.
type RestraintConditionJSON struct {
	MinHours  decimal.Decimal  `json:"min_hours"`
	MaxHours  *decimal.Decimal `json:"max_hours"`
	Allowance decimal.Decimal  `json:"allowance"`
}

// =============================================================================
// RULES
// =============================================================================

// ParseRule parses a JSON string into a WageRule.
func ParseRule(jsonStr string) (wage.WageRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return wage.WageRule{}, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return RuleFromJSON(rj)
}

// RuleFromJSON validates rj and converts it to a WageRule.
func RuleFromJSON(rj RuleJSON) (wage.WageRule, error) {
	if rj.CompanyID == "" {
		return wage.WageRule{}, invalid("company_id", "required")
	}
	if rj.VehicleTypeID == "" {
		return wage.WageRule{}, invalid("vehicle_type_id", "required")
	}
	if rj.BaseDailyWage.IsNegative() {
		return wage.WageRule{}, invalid("base_daily_wage", "must not be negative")
	}
	if !rj.BaseHours.IsPositive() {
		return wage.WageRule{}, invalid("base_hours", "must be positive")
	}
	for name, r := range map[string]decimal.NullDecimal{
		"overtime_rate_normal":  rj.OvertimeRateNormal,
		"overtime_rate_late":    rj.OvertimeRateLate,
		"overtime_rate_holiday": rj.OvertimeRateHoliday,
	} {
		if r.Valid && r.Decimal.IsNegative() {
			return wage.WageRule{}, invalid(name, "must not be negative")
		}
	}

	from, err := wage.ParseDate(rj.EffectiveFrom)
	if err != nil {
		return wage.WageRule{}, invalid("effective_from", "use YYYY-MM-DD")
	}
	window := wage.EffectiveWindow{From: from}
	if rj.EffectiveTo != nil && *rj.EffectiveTo != "" {
		to, err := wage.ParseDate(*rj.EffectiveTo)
		if err != nil {
			return wage.WageRule{}, invalid("effective_to", "use YYYY-MM-DD")
		}
		if to.Before(from) {
			return wage.WageRule{}, invalid("effective_to", "before effective_from")
		}
		window.To = &to
	}

	id := rj.ID
	if id == "" {
		id = uuid.NewString()
	}

	rule := wage.WageRule{
		ID:                  id,
		CompanyID:           rj.CompanyID,
		VehicleTypeID:       rj.VehicleTypeID,
		BaseDailyWage:       rj.BaseDailyWage,
		BaseHours:           rj.BaseHours,
		OvertimeRateNormal:  rj.OvertimeRateNormal,
		OvertimeRateLate:    rj.OvertimeRateLate,
		OvertimeRateHoliday: rj.OvertimeRateHoliday,
		Window:              window,
		IsActive:            rj.IsActive == nil || *rj.IsActive,
	}

	if rj.Company != nil {
		if rj.Company.CompanyID == "" {
			rj.Company.CompanyID = rj.CompanyID
		}
		policy, err := PolicyFromJSON(*rj.Company)
		if err != nil {
			return wage.WageRule{}, err
		}
		rule.Company = policy
	}

	return rule, nil
}

// RuleToJSON converts a WageRule to RuleJSON, including its company policy.
func RuleToJSON(r wage.WageRule) RuleJSON {
	active := r.IsActive
	rj := RuleJSON{
		ID:                  r.ID,
		CompanyID:           r.CompanyID,
		VehicleTypeID:       r.VehicleTypeID,
		BaseDailyWage:       r.BaseDailyWage,
		BaseHours:           r.BaseHours,
		OvertimeRateNormal:  r.OvertimeRateNormal,
		OvertimeRateLate:    r.OvertimeRateLate,
		OvertimeRateHoliday: r.OvertimeRateHoliday,
		EffectiveFrom:       r.Window.From.Format(wage.DateLayout),
		IsActive:            &active,
	}
	if r.Window.To != nil {
		to := r.Window.To.Format(wage.DateLayout)
		rj.EffectiveTo = &to
	}
	if r.Company.CompanyID != "" {
		pj := PolicyToJSON(r.Company)
		rj.Company = &pj
	}
	return rj
}

// =============================================================================
// COMPANY POLICIES
// =============================================================================

// ParseCompanyPolicy parses a JSON string into a CompanyPolicy.
func ParseCompanyPolicy(jsonStr string) (wage.CompanyPolicy, error) {
	var pj CompanyPolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return wage.CompanyPolicy{}, fmt.Errorf("failed to parse company policy JSON: %w", err)
	}
	return PolicyFromJSON(pj)
}

// PolicyFromJSON validates pj and converts it to a CompanyPolicy.
// An empty rounding method defaults to floor.
func PolicyFromJSON(pj CompanyPolicyJSON) (wage.CompanyPolicy, error) {
	if pj.CompanyID == "" {
		return wage.CompanyPolicy{}, invalid("company_id", "required")
	}
	if pj.OvertimeUnit < 0 {
		return wage.CompanyPolicy{}, invalid("overtime_unit", "must not be negative")
	}
	method := wage.RoundingMethod(pj.RoundingMethod)
	if method == "" {
		method = wage.RoundFloor
	}
	if !method.Valid() {
		return wage.CompanyPolicy{}, invalid("rounding_method", fmt.Sprintf("unknown method %q", pj.RoundingMethod))
	}

	policy := wage.CompanyPolicy{
		CompanyID:      pj.CompanyID,
		OvertimeUnit:   pj.OvertimeUnit,
		RoundingMethod: method,
	}
	if pj.RestraintRule != nil {
		rr, err := RestraintFromJSON(*pj.RestraintRule)
		if err != nil {
			return wage.CompanyPolicy{}, err
		}
		policy.RestraintRule = rr
	}
	return policy, nil
}

// PolicyToJSON converts a CompanyPolicy to CompanyPolicyJSON.
func PolicyToJSON(p wage.CompanyPolicy) CompanyPolicyJSON {
	pj := CompanyPolicyJSON{
		CompanyID:      p.CompanyID,
		OvertimeUnit:   p.OvertimeUnit,
		RoundingMethod: string(p.RoundingMethod),
	}
	if p.RestraintRule != nil {
		rj := RestraintToJSON(*p.RestraintRule)
		pj.RestraintRule = &rj
	}
	return pj
}

// =============================================================================
// RESTRAINT RULES
// =============================================================================

// ParseRestraintRule parses the stored JSON form of a restraint rule.
// An empty string or "null" is no rule.
func ParseRestraintRule(jsonStr string) (*wage.RestraintRule, error) {
	if jsonStr == "" || jsonStr == "null" {
		return nil, nil
	}
	var rj RestraintRuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse restraint rule JSON: %w", err)
	}
	return RestraintFromJSON(rj)
}

// MarshalRestraintRule returns the stored JSON form, "null" for no rule.
func MarshalRestraintRule(r *wage.RestraintRule) (string, error) {
	if r == nil {
		return "null", nil
	}
	b, err := json.Marshal(RestraintToJSON(*r))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RestraintFromJSON validates and converts a restraint rule.
func RestraintFromJSON(rj RestraintRuleJSON) (*wage.RestraintRule, error) {
	typ := wage.RestraintType(rj.Type)
	if typ == "" {
		typ = wage.RestraintThreshold
	}
	if typ != wage.RestraintThreshold && typ != wage.RestraintHourly {
		return nil, invalid("restraint_rule.type", fmt.Sprintf("unknown type %q", rj.Type))
	}

	rule := &wage.RestraintRule{Type: typ, IncludesBreak: rj.IncludesBreak}
	for i, c := range rj.Conditions {
		field := fmt.Sprintf("restraint_rule.conditions[%d]", i)
		if c.MinHours.IsNegative() {
			return nil, invalid(field+".min_hours", "must not be negative")
		}
		if c.MaxHours != nil && !c.MaxHours.GreaterThan(c.MinHours) {
			return nil, invalid(field+".max_hours", "must be greater than min_hours")
		}
		cond := wage.RestraintCondition{MinHours: c.MinHours, Allowance: c.Allowance}
		if c.MaxHours != nil {
			m := *c.MaxHours
			cond.MaxHours = &m
		}
		rule.Conditions = append(rule.Conditions, cond)
	}
	return rule, nil
}

// RestraintToJSON converts a restraint rule to its JSON form.
func RestraintToJSON(r wage.RestraintRule) RestraintRuleJSON {
	rj := RestraintRuleJSON{
		Type:          string(r.Type),
		IncludesBreak: r.IncludesBreak,
		Conditions:    make([]RestraintConditionJSON, 0, len(r.Conditions)),
	}
	for _, c := range r.Conditions {
		rj.Conditions = append(rj.Conditions, RestraintConditionJSON{
			MinHours:  c.MinHours,
			MaxHours:  c.MaxHours,
			Allowance: c.Allowance,
		})
	}
	return rj
}

func invalid(field, reason string) error {
	return &wage.InputError{Field: field, Reason: reason}
}
