/*
calculator.go - The wage derivation pipeline

PURPOSE:
  Calculate turns one attendance record into a CalculationResult by running
  a fixed sequence of steps, logging each one as it goes. Any failure aborts
  the whole record; there is no partially filled result.

PIPELINE (log order is part of the contract):
   1. Resolve the rule in force
   2. Worked minutes        = span - break (overnight aware, >= 0)
   3. Overtime minutes      = round(max(0, worked - base hours), unit, method)
   4. Night minutes         = night band overlap, only for night shifts
   5. Base wage             = rule base daily wage
   6. Overtime wage         = floor(rate x overtime / 60)
                              rate: holiday if holiday, else late if night shift, else normal
   7. Night wage            = floor(late rate x night / 60 x 0.25)
   8. Holiday wage          = floor(base wage x 0.35) on holidays
   9. Restraint allowance   = first matching band of the company restraint rule
  10. Total                 = sum of 5..9

ROUNDING:
  Every currency amount is floored to whole units, never rounded up.

NIGHT DIFFERENTIAL:
  Night wage is only the 25% surcharge on the late rate. When a record is
  both night shift and overtime, the late-rate overtime wage in step 6
  already pays the base late rate.

CONCURRENCY:
  Calculator is stateless apart from its injected RuleStore and may be used
  from any number of goroutines.

SEE ALSO:
  - batch.go: CalculateBatch
  - time.go: Clock arithmetic
  - restraint.go: Allowance bands
*/
package wage

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

var (
	nightSurchargeRate   = decimal.RequireFromString("0.25")
	holidaySurchargeRate = decimal.RequireFromString("0.35")
)

// DefaultGroupSize is how many records of a batch run at the same time.
const DefaultGroupSize = 10

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	resolver  Resolver
	logger    *slog.Logger
	groupSize int
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithGroupSize sets the batch group size. Values below 1 are ignored.
func WithGroupSize(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.groupSize = n
		}
	}
}

// NewCalculator creates a calculator that resolves rules from store.
func NewCalculator(store RuleStore, opts ...Option) *Calculator {
	c := &Calculator{
		resolver:  Resolver{Store: store},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		groupSize: DefaultGroupSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GroupSize returns the number of records a batch runs concurrently.
func (c *Calculator) GroupSize() int { return c.groupSize }

// Resolve exposes rule resolution on its own, for callers that want to
// preview which rule a record would use.
func (c *Calculator) Resolve(ctx context.Context, companyID, vehicleTypeID string, workDate time.Time) (WageRule, error) {
	return c.resolver.Resolve(ctx, companyID, vehicleTypeID, workDate)
}

// Calculate runs the pipeline for one record.
func (c *Calculator) Calculate(ctx context.Context, in CalculationInput) (*CalculationResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var log calcLog

	// 1. Rule
	rule, err := c.resolver.Resolve(ctx, in.CompanyID, in.VehicleTypeID, in.WorkDate)
	if err != nil {
		return nil, err
	}
	log.add(StepRuleResolved,
		"rule_id", rule.ID,
		"base_daily_wage", rule.BaseDailyWage.String(),
		"base_hours", rule.BaseHours.String(),
	)

	// 2. Worked minutes
	shift, err := ParseShift(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}
	workMinutes := shift.Worked(in.BreakMinutes)
	log.add(StepWorkMinutes,
		"start_time", in.StartTime,
		"end_time", in.EndTime,
		"break_minutes", in.BreakMinutes,
		"work_minutes", workMinutes,
	)

	// 3. Overtime minutes
	policy := rule.Company
	baseMinutes := int(rule.BaseHours.Mul(sixty).Floor().IntPart())
	rawOvertime := max(0, workMinutes-baseMinutes)
	overtimeMinutes := RoundOvertimeMinutes(rawOvertime, policy.OvertimeUnit, policy.RoundingMethod)
	log.add(StepOvertimeMinutes,
		"base_minutes", baseMinutes,
		"raw_overtime_minutes", rawOvertime,
		"overtime_unit", policy.OvertimeUnit,
		"rounding_method", string(policy.RoundingMethod),
		"overtime_minutes", overtimeMinutes,
	)

	// 4. Night minutes
	nightMinutes := 0
	if in.IsNightShift {
		nightMinutes = shift.Night(in.BreakMinutes)
	}
	log.add(StepNightMinutes, "night_minutes", nightMinutes)

	// 5. Base wage
	baseWage := rule.BaseDailyWage
	log.add(StepBaseWage, "value", baseWage.String())

	// 6. Overtime wage
	rate := overtimeRate(rule, in)
	overtimeWage := rate.Mul(decimal.NewFromInt(int64(overtimeMinutes))).Div(sixty).Floor()
	log.add(StepOvertimeWage,
		"overtime_minutes", overtimeMinutes,
		"overtime_rate", rate.String(),
		"overtime_wage", overtimeWage.String(),
	)

	// 7. Night wage (surcharge only)
	lateRate := rateOrZero(rule.OvertimeRateLate)
	nightWage := lateRate.
		Mul(decimal.NewFromInt(int64(nightMinutes))).
		Mul(nightSurchargeRate).
		Div(sixty).
		Floor()
	log.add(StepNightWage,
		"night_minutes", nightMinutes,
		"night_wage", nightWage.String(),
	)

	// 8. Holiday wage
	holidayWage := decimal.Zero
	if in.IsHoliday {
		holidayWage = baseWage.Mul(holidaySurchargeRate).Floor()
	}
	log.add(StepHolidayWage,
		"is_holiday", in.IsHoliday,
		"holiday_wage", holidayWage.String(),
	)

	// 9. Restraint allowance
	restraintMinutes := shift.Span()
	restraintAllowance := EvaluateRestraintAllowance(restraintMinutes, policy.RestraintRule)
	log.add(StepRestraintAllowance,
		"restraint_minutes", restraintMinutes,
		"restraint_hours", RestraintHours(restraintMinutes),
		"restraint_allowance", restraintAllowance.String(),
	)

	// 10. Total
	otherAllowances := decimal.Zero
	totalWage := baseWage.
		Add(overtimeWage).
		Add(nightWage).
		Add(holidayWage).
		Add(restraintAllowance).
		Add(otherAllowances)
	log.add(StepTotal, "total_wage", totalWage.String())

	c.logger.DebugContext(ctx, "wage calculated",
		slog.String("worker_id", in.WorkerID),
		slog.String("work_date", in.WorkDate.Format(DateLayout)),
		slog.String("rule_id", rule.ID),
		slog.String("total_wage", totalWage.String()),
	)

	return &CalculationResult{
		WorkMinutes:        workMinutes,
		OvertimeMinutes:    overtimeMinutes,
		NightMinutes:       nightMinutes,
		BaseWage:           baseWage,
		OvertimeWage:       overtimeWage,
		NightWage:          nightWage,
		HolidayWage:        holidayWage,
		RestraintAllowance: restraintAllowance,
		OtherAllowances:    otherAllowances,
		TotalWage:          totalWage,
		Log:                log.entries(),
		AppliedRule:        rule,
	}, nil
}

// overtimeRate picks the hourly rate for overtime: holiday, then late, then
// normal. An unset normal rate prices overtime at zero.
func overtimeRate(rule WageRule, in CalculationInput) decimal.Decimal {
	switch {
	case in.IsHoliday && rule.OvertimeRateHoliday.Valid:
		return rule.OvertimeRateHoliday.Decimal
	case in.IsNightShift && rule.OvertimeRateLate.Valid:
		return rule.OvertimeRateLate.Decimal
	default:
		return rateOrZero(rule.OvertimeRateNormal)
	}
}

func rateOrZero(r decimal.NullDecimal) decimal.Decimal {
	if !r.Valid {
		return decimal.Zero
	}
	return r.Decimal
}

func validateInput(in CalculationInput) error {
	switch {
	case in.CompanyID == "":
		return &InputError{Field: "company_id", Reason: "required"}
	case in.VehicleTypeID == "":
		return &InputError{Field: "vehicle_type_id", Reason: "required"}
	case in.WorkDate.IsZero():
		return &InputError{Field: "work_date", Reason: "required"}
	case in.BreakMinutes < 0:
		return &InputError{Field: "break_minutes", Reason: "must not be negative"}
	}
	return nil
}
