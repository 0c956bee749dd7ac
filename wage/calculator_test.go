package wage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/wage"
)

func newTestCalculator(t *testing.T, extra ...wage.WageRule) *wage.Calculator {
	return wage.NewCalculator(newFixtureStore(t, extra...))
}

// =============================================================================
// PIPELINE SCENARIOS
// =============================================================================

func TestCalculate_StandardDay_NoOvertime(t *testing.T) {
	// GIVEN: 08:00-17:00 with an hour break against an 8 hour base
	// WHEN: Calculating
	// THEN: Exactly the base day is worked and only the base wage is paid
	calc := newTestCalculator(t)

	res, err := calc.Calculate(context.Background(), dayShift("w-1", "08:00", "17:00", 60))
	require.NoError(t, err)

	assert.Equal(t, 480, res.WorkMinutes)
	assert.Equal(t, 0, res.OvertimeMinutes)
	assert.Equal(t, 0, res.NightMinutes)
	assertDecimal(t, "11000", res.BaseWage)
	assertDecimal(t, "0", res.OvertimeWage)
	assertDecimal(t, "0", res.RestraintAllowance)
	assertDecimal(t, "11000", res.TotalWage)
	assert.Equal(t, "rule-a-4t-2024", res.AppliedRule.ID)
}

func TestCalculate_Overtime_NormalRate(t *testing.T) {
	// GIVEN: 08:00-19:30 with an hour break, 150 minutes over the base
	// WHEN: Calculating at 1500/h with 15 minute floor rounding
	// THEN: floor(1500 x 150 / 60) = 3750
	calc := newTestCalculator(t)

	res, err := calc.Calculate(context.Background(), dayShift("w-1", "08:00", "19:30", 60))
	require.NoError(t, err)

	assert.Equal(t, 630, res.WorkMinutes)
	assert.Equal(t, 150, res.OvertimeMinutes)
	assertDecimal(t, "3750", res.OvertimeWage)
	assertDecimal(t, "14750", res.TotalWage)
}

func TestCalculate_OvertimeRoundedDownToUnit(t *testing.T) {
	// 52 raw overtime minutes floor to 45
	calc := newTestCalculator(t)

	res, err := calc.Calculate(context.Background(), dayShift("w-1", "08:00", "17:52", 60))
	require.NoError(t, err)

	assert.Equal(t, 532, res.WorkMinutes)
	assert.Equal(t, 45, res.OvertimeMinutes)
	assertDecimal(t, "1125", res.OvertimeWage)

	raw := res.Log[2]
	assert.Equal(t, wage.StepOvertimeMinutes, raw.Step)
	assert.Equal(t, 52, raw.Field("raw_overtime_minutes"))
	assert.Equal(t, 480, raw.Field("base_minutes"))
	assert.Equal(t, "floor", raw.Field("rounding_method"))
}

func TestCalculate_NightShift_Overnight(t *testing.T) {
	// GIVEN: 23:00-06:00 night shift with no break
	// WHEN: Calculating
	// THEN: 360 night minutes earn the 25% surcharge on the late rate
	calc := newTestCalculator(t)
	in := dayShift("w-1", "23:00", "06:00", 0)
	in.IsNightShift = true

	res, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 420, res.WorkMinutes)
	assert.Equal(t, 0, res.OvertimeMinutes)
	assert.Equal(t, 360, res.NightMinutes)
	// floor(1875 x 360 / 60 x 0.25) = floor(2812.5)
	assertDecimal(t, "2812", res.NightWage)
	assertDecimal(t, "13812", res.TotalWage)
}

func TestCalculate_NightMinutesOnlyForNightShifts(t *testing.T) {
	calc := newTestCalculator(t)

	res, err := calc.Calculate(context.Background(), dayShift("w-1", "23:00", "06:00", 0))
	require.NoError(t, err)

	assert.Equal(t, 0, res.NightMinutes)
	assertDecimal(t, "0", res.NightWage)
}

func TestCalculate_NightShiftWithOvertime_UsesLateRate(t *testing.T) {
	// GIVEN: 18:00-06:00 night shift, 60 minute break
	// THEN: 180 overtime minutes at the late rate, a prorated night surcharge
	// and the 12h restraint band
	calc := newTestCalculator(t)
	in := dayShift("w-1", "18:00", "06:00", 60)
	in.IsNightShift = true

	res, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 660, res.WorkMinutes)
	assert.Equal(t, 180, res.OvertimeMinutes)
	assertDecimal(t, "5625", res.OvertimeWage)
	// night 420 less 60 x 420 / 720 = 35
	assert.Equal(t, 385, res.NightMinutes)
	assertDecimal(t, "3007", res.NightWage)
	assertDecimal(t, "500", res.RestraintAllowance)
	assertDecimal(t, "20132", res.TotalWage)
}

func TestCalculate_Holiday(t *testing.T) {
	// GIVEN: A holiday with 150 overtime minutes
	// THEN: Holiday rate for overtime plus 35% of the base wage
	calc := newTestCalculator(t)
	in := dayShift("w-1", "08:00", "19:30", 60)
	in.IsHoliday = true

	res, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)

	assertDecimal(t, "5000", res.OvertimeWage)
	assertDecimal(t, "3850", res.HolidayWage)
	assertDecimal(t, "19850", res.TotalWage)
}

func TestCalculate_RateFallbacks(t *testing.T) {
	// GIVEN: A rule with only a late rate set
	lateOnly := wage.WageRule{
		ID:               "rule-a-2t-2024",
		CompanyID:        "co-a",
		VehicleTypeID:    "2t",
		BaseDailyWage:    dec("10000"),
		BaseHours:        dec("8"),
		OvertimeRateLate: rate("1800"),
		Window:           wage.EffectiveWindow{From: wage.Date(2024, time.January, 1)},
		IsActive:         true,
	}
	calc := newTestCalculator(t, lateOnly)
	ctx := context.Background()

	in := dayShift("w-1", "08:00", "18:00", 60) // 60 overtime minutes
	in.VehicleTypeID = "2t"

	// WHEN: Holiday night shift without a holiday rate
	// THEN: The late rate applies
	nightHoliday := in
	nightHoliday.IsHoliday = true
	nightHoliday.IsNightShift = true
	res, err := calc.Calculate(ctx, nightHoliday)
	require.NoError(t, err)
	assertDecimal(t, "1800", res.OvertimeWage)

	// WHEN: A plain day with no normal rate
	// THEN: Overtime is priced at zero
	res, err = calc.Calculate(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 60, res.OvertimeMinutes)
	assertDecimal(t, "0", res.OvertimeWage)
}

func TestCalculate_LongRestraint(t *testing.T) {
	// 06:00-20:12 is 14.2h of restraint
	calc := newTestCalculator(t)

	res, err := calc.Calculate(context.Background(), dayShift("w-1", "06:00", "20:12", 60))
	require.NoError(t, err)

	assertDecimal(t, "1200", res.RestraintAllowance)
	assert.Equal(t, 300, res.OvertimeMinutes)
	assertDecimal(t, "7500", res.OvertimeWage)
	assertDecimal(t, "19700", res.TotalWage)

	entry := res.Log[8]
	assert.Equal(t, wage.StepRestraintAllowance, entry.Step)
	assert.Equal(t, 852, entry.Field("restraint_minutes"))
	assert.Equal(t, "14.20", entry.Field("restraint_hours"))
}

func TestCalculate_FractionalBaseHours(t *testing.T) {
	// 7.5 base hours is 450 minutes
	r := rule4t()
	r.ID = "rule-a-10t-2024"
	r.VehicleTypeID = "10t"
	r.BaseHours = dec("7.5")
	calc := newTestCalculator(t, r)

	in := dayShift("w-1", "08:00", "17:00", 60)
	in.VehicleTypeID = "10t"
	res, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 30, res.OvertimeMinutes)
	assertDecimal(t, "750", res.OvertimeWage)
}

// =============================================================================
// RULE RESOLUTION THROUGH THE PIPELINE
// =============================================================================

func TestCalculate_PicksVersionInForce(t *testing.T) {
	// GIVEN: A 2023 rule closed on 2023-12-31 and the open 2024 rule
	end2023 := wage.Date(2023, time.December, 31)
	old := rule4t()
	old.ID = "rule-a-4t-2023"
	old.BaseDailyWage = dec("10000")
	old.Window = wage.EffectiveWindow{From: wage.Date(2023, time.January, 1), To: &end2023}
	calc := newTestCalculator(t, old)
	ctx := context.Background()

	in := dayShift("w-1", "08:00", "17:00", 60)

	in.WorkDate = end2023
	res, err := calc.Calculate(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "rule-a-4t-2023", res.AppliedRule.ID, "window end is inclusive")
	assertDecimal(t, "10000", res.TotalWage)

	in.WorkDate = wage.Date(2024, time.January, 1)
	res, err = calc.Calculate(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "rule-a-4t-2024", res.AppliedRule.ID)

	in.WorkDate = wage.Date(2022, time.December, 31)
	_, err = calc.Calculate(ctx, in)
	assert.ErrorIs(t, err, wage.ErrRuleNotFound)
}

func TestCalculate_RuleNotFound(t *testing.T) {
	// GIVEN: No rule for the vehicle type
	// WHEN: Calculating
	// THEN: RuleNotFoundError carries company, vehicle type and date
	calc := newTestCalculator(t)
	in := dayShift("w-1", "08:00", "17:00", 60)
	in.VehicleTypeID = "trailer"

	res, err := calc.Calculate(context.Background(), in)
	assert.Nil(t, res)

	var nf *wage.RuleNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "co-a", nf.CompanyID)
	assert.Equal(t, "trailer", nf.VehicleTypeID)
	assert.True(t, nf.WorkDate.Equal(wage.Date(2024, time.June, 3)))
	assert.True(t, wage.IsNotFound(err))
	assert.Contains(t, err.Error(), "company=co-a, vehicle_type=trailer, date=2024-06-03")
}

func TestCalculate_InactiveRuleIgnored(t *testing.T) {
	r := rule4t()
	r.ID = "rule-a-8t-2024"
	r.VehicleTypeID = "8t"
	r.IsActive = false
	calc := newTestCalculator(t, r)

	in := dayShift("w-1", "08:00", "17:00", 60)
	in.VehicleTypeID = "8t"
	_, err := calc.Calculate(context.Background(), in)
	assert.ErrorIs(t, err, wage.ErrRuleNotFound)
}

// =============================================================================
// FAILURES
// =============================================================================

func TestCalculate_InvalidTime(t *testing.T) {
	calc := newTestCalculator(t)

	res, err := calc.Calculate(context.Background(), dayShift("w-1", "8am", "17:00", 60))
	assert.Nil(t, res)

	var tfe *wage.TimeFormatError
	require.ErrorAs(t, err, &tfe)
	assert.Equal(t, "start_time", tfe.Field)
	assert.True(t, wage.IsClientError(err))
}

func TestCalculate_RuleLookupPrecedesTimeParsing(t *testing.T) {
	calc := newTestCalculator(t)
	in := dayShift("w-1", "8am", "17:00", 60)
	in.CompanyID = "co-unknown"

	_, err := calc.Calculate(context.Background(), in)
	assert.ErrorIs(t, err, wage.ErrRuleNotFound)
}

func TestCalculate_InvalidInput(t *testing.T) {
	calc := newTestCalculator(t)
	ctx := context.Background()

	neg := dayShift("w-1", "08:00", "17:00", -5)
	_, err := calc.Calculate(ctx, neg)
	assert.ErrorIs(t, err, wage.ErrInvalidInput)

	noCompany := dayShift("w-1", "08:00", "17:00", 60)
	noCompany.CompanyID = ""
	_, err = calc.Calculate(ctx, noCompany)
	var ie *wage.InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "company_id", ie.Field)

	noDate := dayShift("w-1", "08:00", "17:00", 60)
	noDate.WorkDate = time.Time{}
	_, err = calc.Calculate(ctx, noDate)
	assert.ErrorIs(t, err, wage.ErrInvalidInput)
}

func TestCalculate_StoreErrorPassedThrough(t *testing.T) {
	dbErr := errors.New("connection refused")
	calc := wage.NewCalculator(wage.RuleStoreFunc(
		func(context.Context, string, string, time.Time) (*wage.WageRule, error) {
			return nil, dbErr
		}))

	_, err := calc.Calculate(context.Background(), dayShift("w-1", "08:00", "17:00", 60))
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, wage.IsNotFound(err), "a failed lookup is not a missing rule")
}

func TestCalculate_NoStore(t *testing.T) {
	calc := wage.NewCalculator(nil)

	_, err := calc.Calculate(context.Background(), dayShift("w-1", "08:00", "17:00", 60))
	assert.ErrorIs(t, err, wage.ErrStoreRequired)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestCalculate_LogOrder(t *testing.T) {
	calc := newTestCalculator(t)

	res, err := calc.Calculate(context.Background(), dayShift("w-1", "08:00", "19:30", 60))
	require.NoError(t, err)

	steps := make([]wage.Step, 0, len(res.Log))
	for _, e := range res.Log {
		steps = append(steps, e.Step)
	}
	assert.Equal(t, wage.StepOrder, steps)

	assert.Equal(t, "rule-a-4t-2024", res.Log[0].Field("rule_id"))
	assert.Equal(t, 630, res.Log[1].Field("work_minutes"))
	assert.Equal(t, "1500", res.Log[5].Field("overtime_rate"))
	assert.Equal(t, "3750", res.Log[5].Field("overtime_wage"))
	assert.Equal(t, "14750", res.Log[9].Field("total_wage"))
}

// =============================================================================
// LAWS
// =============================================================================

func TestCalculate_Idempotent(t *testing.T) {
	calc := newTestCalculator(t)
	in := dayShift("w-1", "18:00", "06:00", 45)
	in.IsNightShift = true

	first, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)
	second, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCalculate_TotalIsSumOfComponents(t *testing.T) {
	calc := newTestCalculator(t)
	ctx := context.Background()
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("total equals the logged components", prop.ForAll(
		func(start, end, brk int, holiday, night bool) bool {
			in := dayShift("w-1", wage.MinutesToClock(start), wage.MinutesToClock(end), brk)
			in.IsHoliday = holiday
			in.IsNightShift = night

			res, err := calc.Calculate(ctx, in)
			if err != nil {
				return false
			}
			total, err := decimal.NewFromString(res.Log[9].Field("total_wage").(string))
			return err == nil &&
				res.TotalWage.Equal(res.ComponentSum()) &&
				res.TotalWage.Equal(total) &&
				res.OvertimeWage.Equal(res.OvertimeWage.Floor()) &&
				res.NightWage.Equal(res.NightWage.Floor())
		},
		gen.IntRange(0, 1439),
		gen.IntRange(0, 1439),
		gen.IntRange(0, 240),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
