/*
store.go - Rule lookup interface between the engine and persistence

PURPOSE:
  The engine never reads a database itself. It asks a RuleStore for the rule
  in force for a (company, vehicle type, date) triple. Stores attach the
  owning company's policy (overtime unit, rounding method, restraint rule)
  to each rule they return.

CONTRACT:
  FindApplicableRule returns the active rule whose effective window contains
  the date, preferring the latest EffectiveFrom. No match is (nil, nil), not
  an error; the Resolver turns that into a RuleNotFoundError. Any other
  error is a lookup failure and is passed through to the caller.

  Lookups must be safe for concurrent use: a batch issues up to one lookup
  per record in the running group simultaneously.

IMPLEMENTATIONS:
  - wage/store/memory.go: In-memory for tests and development
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL via pgx

SEE ALSO:
  - resolver.go: Selection rule shared by in-process stores
*/
package wage

import (
	"context"
	"time"
)

// RuleStore finds the pay rule in force for a record.
type RuleStore interface {
	FindApplicableRule(ctx context.Context, companyID, vehicleTypeID string, workDate time.Time) (*WageRule, error)
}

// RuleStoreFunc adapts a plain function to the RuleStore interface.
type RuleStoreFunc func(ctx context.Context, companyID, vehicleTypeID string, workDate time.Time) (*WageRule, error)

func (f RuleStoreFunc) FindApplicableRule(ctx context.Context, companyID, vehicleTypeID string, workDate time.Time) (*WageRule, error) {
	return f(ctx, companyID, vehicleTypeID, workDate)
}
