package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/store/sqlite"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	max14 := decimal.NewFromInt(14)
	require.NoError(t, store.SaveCompanyPolicy(context.Background(), wage.CompanyPolicy{
		CompanyID:      "co-a",
		OvertimeUnit:   15,
		RoundingMethod: wage.RoundFloor,
		RestraintRule: &wage.RestraintRule{
			Type:          wage.RestraintThreshold,
			IncludesBreak: true,
			Conditions: []wage.RestraintCondition{
				{MinHours: decimal.NewFromInt(12), MaxHours: &max14, Allowance: decimal.NewFromInt(500)},
				{MinHours: decimal.NewFromInt(14), Allowance: decimal.NewFromInt(1200)},
			},
		},
	}))
	return store
}

func rule(id string, from time.Time, to *time.Time) wage.WageRule {
	return wage.WageRule{
		ID:                 id,
		CompanyID:          "co-a",
		VehicleTypeID:      "4t",
		BaseDailyWage:      decimal.RequireFromString("11000"),
		BaseHours:          decimal.RequireFromString("7.5"),
		OvertimeRateNormal: decimal.NewNullDecimal(decimal.RequireFromString("1500.50")),
		Window:             wage.EffectiveWindow{From: from, To: to},
		IsActive:           true,
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestStore_SaveAndGetRule_RoundTripsDecimals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	end := wage.Date(2024, time.December, 31)

	require.NoError(t, store.SaveRule(ctx, rule("r-1", wage.Date(2024, time.January, 1), &end)))

	got, err := store.GetRule(ctx, "r-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, got.BaseHours.Equal(decimal.RequireFromString("7.5")))
	assert.True(t, got.OvertimeRateNormal.Valid)
	assert.Equal(t, "1500.5", got.OvertimeRateNormal.Decimal.String())
	assert.False(t, got.OvertimeRateLate.Valid, "unset rate stays NULL")
	require.NotNil(t, got.Window.To)
	assert.True(t, got.Window.To.Equal(end))

	// Company policy is joined in
	assert.Equal(t, 15, got.Company.OvertimeUnit)
	require.NotNil(t, got.Company.RestraintRule)
	assert.Len(t, got.Company.RestraintRule.Conditions, 2)
	assert.Nil(t, got.Company.RestraintRule.Conditions[1].MaxHours)

	missing, err := store.GetRule(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_FindApplicableRule(t *testing.T) {
	// GIVEN: A closed 2023 rule, an open 2024 rule, and an inactive 2025 rule
	store := newTestStore(t)
	ctx := context.Background()
	end2023 := wage.Date(2023, time.December, 31)

	require.NoError(t, store.SaveRule(ctx, rule("r-2023", wage.Date(2023, time.January, 1), &end2023)))
	require.NoError(t, store.SaveRule(ctx, rule("r-2024", wage.Date(2024, time.January, 1), nil)))
	inactive := rule("r-2025", wage.Date(2025, time.January, 1), nil)
	inactive.IsActive = false
	require.NoError(t, store.SaveRule(ctx, inactive))

	cases := map[time.Time]string{
		wage.Date(2023, time.June, 1):      "r-2023",
		wage.Date(2023, time.December, 31): "r-2023",
		wage.Date(2024, time.January, 1):   "r-2024",
		wage.Date(2025, time.June, 1):      "r-2024",
	}
	for day, want := range cases {
		got, err := store.FindApplicableRule(ctx, "co-a", "4t", day)
		require.NoError(t, err)
		require.NotNil(t, got, day.Format(wage.DateLayout))
		assert.Equal(t, want, got.ID, day.Format(wage.DateLayout))
	}

	got, err := store.FindApplicableRule(ctx, "co-a", "4t", wage.Date(2022, time.December, 31))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_FindApplicableRule_TieBreaksOnID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRule(ctx, rule("r-b", wage.Date(2024, time.January, 1), nil)))
	require.NoError(t, store.SaveRule(ctx, rule("r-a", wage.Date(2024, time.January, 1), nil)))

	got, err := store.FindApplicableRule(ctx, "co-a", "4t", wage.Date(2024, time.May, 1))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r-a", got.ID)
}

func TestStore_SaveRule_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := rule("r-1", wage.Date(2024, time.January, 1), nil)
	require.NoError(t, store.SaveRule(ctx, r))
	r.BaseDailyWage = decimal.NewFromInt(12000)
	require.NoError(t, store.SaveRule(ctx, r))

	rules, err := store.ListRules(ctx, "co-a")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "12000", rules[0].BaseDailyWage.String())
}

func TestStore_SaveRule_UnknownCompany(t *testing.T) {
	store := newTestStore(t)

	r := rule("r-1", wage.Date(2024, time.January, 1), nil)
	r.CompanyID = "co-missing"
	err := store.SaveRule(context.Background(), r)

	assert.ErrorIs(t, err, wage.ErrInvalidInput)
}

func TestStore_SaveRule_WithEmbeddedPolicy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := rule("r-b", wage.Date(2024, time.January, 1), nil)
	r.CompanyID = "co-b"
	r.Company = wage.CompanyPolicy{CompanyID: "co-b", OvertimeUnit: 30, RoundingMethod: wage.RoundCeil}
	require.NoError(t, store.SaveRule(ctx, r))

	p, err := store.GetCompanyPolicy(ctx, "co-b")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 30, p.OvertimeUnit)
	assert.Nil(t, p.RestraintRule)
}

func TestStore_WorksWithCalculatorBatch(t *testing.T) {
	// GIVEN: A SQLite-backed calculator
	// WHEN: A batch runs ten concurrent lookups against one connection
	// THEN: Every record resolves
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRule(ctx, rule("r-2024", wage.Date(2024, time.January, 1), nil)))

	calc := wage.NewCalculator(store)
	inputs := make([]wage.CalculationInput, 20)
	for i := range inputs {
		inputs[i] = wage.CalculationInput{
			WorkDate:      wage.Date(2024, time.June, 1+i),
			WorkerID:      "w-1",
			CompanyID:     "co-a",
			VehicleTypeID: "4t",
			StartTime:     "06:00",
			EndTime:       "20:30",
			BreakMinutes:  60,
		}
	}

	outcomes := calc.CalculateBatch(ctx, inputs)

	summary := wage.Summarize(outcomes)
	assert.Equal(t, 20, summary.Succeeded)
	for _, o := range outcomes {
		assert.Equal(t, "1200", o.Result.RestraintAllowance.String())
	}
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRule(ctx, rule("r-1", wage.Date(2024, time.January, 1), nil)))

	require.NoError(t, store.Reset(ctx))

	rules, err := store.ListRules(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rules)
	p, err := store.GetCompanyPolicy(ctx, "co-a")
	require.NoError(t, err)
	assert.Nil(t, p)
}
