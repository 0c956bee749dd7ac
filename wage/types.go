/*
Package wage provides the daily wage calculation engine.

PURPOSE:
  Turns one day's attendance record (clock-in, clock-out, break, holiday and
  night-shift flags) plus the pay rule in force for that company and vehicle
  type into a fully itemised wage with an audit log of every derivation step.
  The same engine runs large batches of records with per-record isolation.

KEY CONCEPTS IN THIS FILE (types.go):
  - WageRule: A versioned pay rule, in force during its effective window
  - CompanyPolicy: Overtime rounding and restraint allowance settings
  - CalculationInput: One worker, one day
  - CalculationResult: The wage breakdown and its audit log

DESIGN PRINCIPLES:
  1. Precision: All money uses decimal.Decimal, never float64
  2. Immutability: Results and log entries are built once and never mutated
  3. Statelessness: The Calculator holds nothing but its RuleStore
  4. Auditability: Every step of the derivation is logged in a fixed order

USAGE:
  calc := wage.NewCalculator(store.NewMemory())
  result, err := calc.Calculate(ctx, wage.CalculationInput{
      WorkDate:      wage.Date(2025, time.January, 28),
      WorkerID:      "drv-001",
      CompanyID:     "co-a",
      VehicleTypeID: "4t",
      StartTime:     "08:00",
      EndTime:       "19:30",
      BreakMinutes:  60,
  })

SEE ALSO:
  - time.go: Clock arithmetic
  - resolver.go: Rule selection
  - calculator.go: The derivation pipeline
  - batch.go: Concurrent batch execution
*/
package wage

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WAGE RULE - Versioned pay rule for a (company, vehicle type) pair
// =============================================================================

// WageRule is immutable once stored. A new version is a new rule with a
// later EffectiveFrom; the resolver picks the latest one covering a date.
type WageRule struct {
	ID            string
	CompanyID     string
	VehicleTypeID string

	BaseDailyWage decimal.Decimal
	BaseHours     decimal.Decimal

	// Hourly overtime rates. Invalid (unset) rates fall through during
	// rate selection; see Calculator.overtimeRate.
	OvertimeRateNormal  decimal.NullDecimal
	OvertimeRateLate    decimal.NullDecimal
	OvertimeRateHoliday decimal.NullDecimal

	Window   EffectiveWindow
	IsActive bool

	// Company is attached by the store at lookup time.
	Company CompanyPolicy
}

// =============================================================================
// COMPANY POLICY - Rounding and restraint settings owned by the company
// =============================================================================

type CompanyPolicy struct {
	CompanyID      string
	OvertimeUnit   int // minutes; <= 0 disables rounding
	RoundingMethod RoundingMethod
	RestraintRule  *RestraintRule
}

type RoundingMethod string

const (
	RoundFloor RoundingMethod = "floor"
	RoundCeil  RoundingMethod = "ceil"
	RoundHalf  RoundingMethod = "round"
)

// Valid reports whether m is one of the known rounding methods.
func (m RoundingMethod) Valid() bool {
	switch m {
	case RoundFloor, RoundCeil, RoundHalf:
		return true
	}
	return false
}

// =============================================================================
// RESTRAINT RULE - Tiered allowance for long duty spans
// =============================================================================

type RestraintType string

const (
	RestraintThreshold RestraintType = "threshold"
	RestraintHourly    RestraintType = "hourly"
)

// RestraintRule maps total restraint hours to a flat allowance.
// Conditions are evaluated in order and the first match wins.
type RestraintRule struct {
	Type          RestraintType
	Conditions    []RestraintCondition
	IncludesBreak bool
}

// RestraintCondition matches restraint hours in [MinHours, MaxHours).
// A nil MaxHours is unbounded.
type RestraintCondition struct {
	MinHours  decimal.Decimal
	MaxHours  *decimal.Decimal
	Allowance decimal.Decimal
}

// =============================================================================
// CALCULATION INPUT - One attendance record
// =============================================================================

type CalculationInput struct {
	WorkDate      time.Time
	WorkerID      string
	CompanyID     string
	VehicleTypeID string
	StartTime     string // "HH:mm"
	EndTime       string // "HH:mm"; earlier than StartTime means overnight
	BreakMinutes  int
	IsHoliday     bool
	IsNightShift  bool

	// ManualAdjustments are carried with the record but not applied by the
	// pipeline. OtherAllowances is always zero until they are.
	ManualAdjustments []ManualAdjustment
}

type AdjustmentType string

const (
	AdjustAdd      AdjustmentType = "add"
	AdjustSubtract AdjustmentType = "subtract"
	AdjustOverride AdjustmentType = "override"
)

type ManualAdjustment struct {
	Type   AdjustmentType
	Field  string // "baseWage", "overtimeWage", "otherAllowances"
	Amount decimal.Decimal
	Reason string
}

// =============================================================================
// CALCULATION RESULT - Full wage breakdown
// =============================================================================

// CalculationResult is produced only by a fully successful calculation.
// TotalWage always equals the sum of the other wage components.
type CalculationResult struct {
	WorkMinutes     int
	OvertimeMinutes int
	NightMinutes    int

	BaseWage           decimal.Decimal
	OvertimeWage       decimal.Decimal
	NightWage          decimal.Decimal
	HolidayWage        decimal.Decimal
	RestraintAllowance decimal.Decimal
	OtherAllowances    decimal.Decimal
	TotalWage          decimal.Decimal

	Log         []LogEntry
	AppliedRule WageRule
}

// ComponentSum recomputes the total from the individual components.
func (r CalculationResult) ComponentSum() decimal.Decimal {
	return r.BaseWage.
		Add(r.OvertimeWage).
		Add(r.NightWage).
		Add(r.HolidayWage).
		Add(r.RestraintAllowance).
		Add(r.OtherAllowances)
}
