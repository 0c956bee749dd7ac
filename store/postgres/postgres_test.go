package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/store/postgres"
	"github.com/warp/wage-engine/wage"
)

// newTestStore connects to TEST_DATABASE_URL and empties the tables.
// Tests are skipped when no database is configured.
func newTestStore(t *testing.T) *postgres.Store {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := postgres.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx))
	t.Cleanup(func() {
		_ = store.Reset(ctx)
		store.Close()
	})
	return store
}

func TestStore_RoundTripAndResolve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	max12 := decimal.NewFromInt(12)
	require.NoError(t, store.SaveCompanyPolicy(ctx, wage.CompanyPolicy{
		CompanyID:      "co-a",
		OvertimeUnit:   15,
		RoundingMethod: wage.RoundHalf,
		RestraintRule: &wage.RestraintRule{
			Type: wage.RestraintThreshold,
			Conditions: []wage.RestraintCondition{
				{MinHours: decimal.Zero, MaxHours: &max12, Allowance: decimal.Zero},
				{MinHours: max12, Allowance: decimal.NewFromInt(800)},
			},
		},
	}))

	end := wage.Date(2023, time.December, 31)
	for _, r := range []wage.WageRule{
		{
			ID: "r-2023", CompanyID: "co-a", VehicleTypeID: "4t",
			BaseDailyWage: decimal.NewFromInt(10000), BaseHours: decimal.NewFromInt(8),
			Window:   wage.EffectiveWindow{From: wage.Date(2023, time.January, 1), To: &end},
			IsActive: true,
		},
		{
			ID: "r-2024", CompanyID: "co-a", VehicleTypeID: "4t",
			BaseDailyWage: decimal.NewFromInt(11000), BaseHours: decimal.RequireFromString("7.5"),
			OvertimeRateLate: decimal.NewNullDecimal(decimal.RequireFromString("1875.25")),
			Window:           wage.EffectiveWindow{From: wage.Date(2024, time.January, 1)},
			IsActive:         true,
		},
	} {
		require.NoError(t, store.SaveRule(ctx, r))
	}

	got, err := store.FindApplicableRule(ctx, "co-a", "4t", wage.Date(2023, time.December, 31))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r-2023", got.ID)

	got, err = store.FindApplicableRule(ctx, "co-a", "4t", wage.Date(2024, time.March, 1))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r-2024", got.ID)
	assert.True(t, got.BaseHours.Equal(decimal.RequireFromString("7.5")))
	assert.True(t, got.OvertimeRateLate.Decimal.Equal(decimal.RequireFromString("1875.25")))
	assert.False(t, got.OvertimeRateNormal.Valid)
	assert.Nil(t, got.Window.To)
	assert.Equal(t, wage.RoundHalf, got.Company.RoundingMethod)
	require.NotNil(t, got.Company.RestraintRule)
	assert.Len(t, got.Company.RestraintRule.Conditions, 2)

	none, err := store.FindApplicableRule(ctx, "co-a", "2t", wage.Date(2024, time.March, 1))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStore_SaveRule_UnknownCompany(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveRule(context.Background(), wage.WageRule{
		ID: "r-x", CompanyID: "co-missing", VehicleTypeID: "4t",
		BaseDailyWage: decimal.NewFromInt(1), BaseHours: decimal.NewFromInt(8),
		Window:   wage.EffectiveWindow{From: wage.Date(2024, time.January, 1)},
		IsActive: true,
	})

	assert.ErrorIs(t, err, wage.ErrInvalidInput)
}
