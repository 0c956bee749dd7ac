package wage_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/wage"
	"github.com/warp/wage-engine/wage/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rate(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func hours(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// tieredRestraint is the three-band table used across the calculator tests:
// nothing below 12h, 500 up to 14h, 1200 beyond.
func tieredRestraint() *wage.RestraintRule {
	return &wage.RestraintRule{
		Type:          wage.RestraintThreshold,
		IncludesBreak: true,
		Conditions: []wage.RestraintCondition{
			{MinHours: dec("0"), MaxHours: hours("12"), Allowance: dec("0")},
			{MinHours: dec("12"), MaxHours: hours("14"), Allowance: dec("500")},
			{MinHours: dec("14"), MaxHours: nil, Allowance: dec("1200")},
		},
	}
}

func companyA() wage.CompanyPolicy {
	return wage.CompanyPolicy{
		CompanyID:      "co-a",
		OvertimeUnit:   15,
		RoundingMethod: wage.RoundFloor,
		RestraintRule:  tieredRestraint(),
	}
}

func rule4t() wage.WageRule {
	return wage.WageRule{
		ID:                  "rule-a-4t-2024",
		CompanyID:           "co-a",
		VehicleTypeID:       "4t",
		BaseDailyWage:       dec("11000"),
		BaseHours:           dec("8"),
		OvertimeRateNormal:  rate("1500"),
		OvertimeRateLate:    rate("1875"),
		OvertimeRateHoliday: rate("2000"),
		Window:              wage.EffectiveWindow{From: wage.Date(2024, time.January, 1)},
		IsActive:            true,
	}
}

// newFixtureStore returns a memory store holding company A and its 4t rule.
func newFixtureStore(t *testing.T, extra ...wage.WageRule) *store.Memory {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.SaveCompanyPolicy(ctx, companyA()))
	require.NoError(t, s.SaveRule(ctx, rule4t()))
	for _, r := range extra {
		require.NoError(t, s.SaveRule(ctx, r))
	}
	return s
}

func dayShift(worker, start, end string, breakMinutes int) wage.CalculationInput {
	return wage.CalculationInput{
		WorkDate:      wage.Date(2024, time.June, 3),
		WorkerID:      worker,
		CompanyID:     "co-a",
		VehicleTypeID: "4t",
		StartTime:     start,
		EndTime:       end,
		BreakMinutes:  breakMinutes,
	}
}
